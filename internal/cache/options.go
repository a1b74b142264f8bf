package cache

import (
	"fmt"
	"strings"
	"time"
)

// ReadOptions 是读取层级的位集合。
type ReadOptions uint8

const (
	ReadMemory ReadOptions = 1 << iota
	ReadDisk
	ReadNetwork

	// ReadCache 仅查询本地两级存储，不回源。
	ReadCache = ReadMemory | ReadDisk
	// ReadAny 依次查询内存、磁盘并允许回源。
	ReadAny = ReadMemory | ReadDisk | ReadNetwork
)

// Contains 报告 o 中的所有位是否都已设置。
func (r ReadOptions) Contains(o ReadOptions) bool {
	return o != 0 && r&o == o
}

// ContainsAny 报告是否至少包含 o 中的一位。
func (r ReadOptions) ContainsAny(o ReadOptions) bool {
	return r&o != 0
}

func (r ReadOptions) String() string {
	switch r {
	case ReadAny:
		return "any"
	case ReadCache:
		return "cache"
	}
	return joinNames(uint8(r), []string{"memory", "disk", "network"})
}

// WriteOptions 是写入层级的位集合，WriteOptional 为正交修饰位。
type WriteOptions uint8

const (
	WriteMemory WriteOptions = 1 << iota
	WriteDisk
	// WriteOptional 表示已存在相同记录时跳过写入。
	WriteOptional

	// WriteCache 同时写入内存与磁盘。
	WriteCache = WriteMemory | WriteDisk
)

// Contains 报告 o 中的所有位是否都已设置。
func (w WriteOptions) Contains(o WriteOptions) bool {
	return o != 0 && w&o == o
}

// ContainsAny 报告是否至少包含 o 中的一位。
func (w WriteOptions) ContainsAny(o WriteOptions) bool {
	return w&o != 0
}

// Optional 报告是否设置了 WriteOptional。
func (w WriteOptions) Optional() bool {
	return w&WriteOptional != 0
}

func (w WriteOptions) String() string {
	base := w &^ WriteOptional
	name := joinNames(uint8(base), []string{"memory", "disk"})
	if base == WriteCache {
		name = "cache"
	}
	if w.Optional() {
		if name == "none" {
			return "optional"
		}
		return name + "|optional"
	}
	return name
}

func joinNames(bits uint8, names []string) string {
	var parts []string
	for i, name := range names {
		if bits&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseReadOptions 解析 "memory|disk"、"cache"、"any" 等写法，空串返回 ReadAny。
func ParseReadOptions(raw string) (ReadOptions, error) {
	if strings.TrimSpace(raw) == "" {
		return ReadAny, nil
	}
	var opts ReadOptions
	for _, token := range splitOptions(raw) {
		switch token {
		case "memory":
			opts |= ReadMemory
		case "disk":
			opts |= ReadDisk
		case "network":
			opts |= ReadNetwork
		case "cache":
			opts |= ReadCache
		case "any":
			opts |= ReadAny
		default:
			return 0, fmt.Errorf("unknown read option %q", token)
		}
	}
	return opts, nil
}

// ParseWriteOptions 解析 "memory|disk|optional"、"cache" 等写法，空串返回 WriteCache。
func ParseWriteOptions(raw string) (WriteOptions, error) {
	if strings.TrimSpace(raw) == "" {
		return WriteCache, nil
	}
	var opts WriteOptions
	for _, token := range splitOptions(raw) {
		switch token {
		case "memory":
			opts |= WriteMemory
		case "disk":
			opts |= WriteDisk
		case "cache":
			opts |= WriteCache
		case "optional":
			opts |= WriteOptional
		case "none":
		default:
			return 0, fmt.Errorf("unknown write option %q", token)
		}
	}
	return opts, nil
}

func splitOptions(raw string) []string {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return r == '|' || r == ',' || r == '+' || r == ' '
	})
	return fields
}

// Parameters 组合单次请求的读写策略与可选过期时间，请求处理期间不可变。
type Parameters struct {
	Read      ReadOptions
	Write     WriteOptions
	ExpiresAt *time.Time
}

// DefaultParameters 返回 {ReadAny, WriteCache, 永不过期}。
func DefaultParameters() Parameters {
	return Parameters{Read: ReadAny, Write: WriteCache}
}

// WithTTL 返回以 now+ttl 作为过期时间的副本；ttl <= 0 表示不过期。
func (p Parameters) WithTTL(ttl time.Duration, now time.Time) Parameters {
	if ttl <= 0 {
		p.ExpiresAt = nil
		return p
	}
	expiry := now.Add(ttl)
	p.ExpiresAt = &expiry
	return p
}

// Policy 是未显式指定读写策略的请求所使用的默认值，TTL 在每次请求时换算为过期时间。
type Policy struct {
	Read  ReadOptions
	Write WriteOptions
	TTL   time.Duration
}

// Parameters 以 now 为基准构建单次请求的参数。
func (p Policy) Parameters(now time.Time) Parameters {
	return Parameters{Read: p.Read, Write: p.Write}.WithTTL(p.TTL, now)
}
