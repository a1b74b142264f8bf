package cache

import (
	"bytes"
	"time"
)

// Expirable 是存储层依赖的最小能力：身份 + 可选过期时间 + 有效性判断。
type Expirable interface {
	ID() string
	Expiry() (time.Time, bool)
	IsValid(now time.Time) bool
}

// Asset 是存储单元：标识符、不透明负载与可选过期时间。
type Asset struct {
	Identifier string
	Payload    []byte
	ExpiresAt  *time.Time
}

var _ Expirable = Asset{}

// NewAsset 构造资产；expiresAt 为 nil 表示不按策略过期。
func NewAsset(identifier string, payload []byte, expiresAt *time.Time) Asset {
	return Asset{Identifier: identifier, Payload: payload, ExpiresAt: expiresAt}
}

func (a Asset) ID() string {
	return a.Identifier
}

func (a Asset) Expiry() (time.Time, bool) {
	if a.ExpiresAt == nil {
		return time.Time{}, false
	}
	return *a.ExpiresAt, true
}

// IsValid 在访问时计算：未设置过期时间，或过期时间严格晚于 now。
func (a Asset) IsValid(now time.Time) bool {
	return a.ExpiresAt == nil || now.Before(*a.ExpiresAt)
}

// Equal 比较标识符、负载字节与过期时间，仅用于 optional 写入去重。
func (a Asset) Equal(other Asset) bool {
	if a.Identifier != other.Identifier || !bytes.Equal(a.Payload, other.Payload) {
		return false
	}
	switch {
	case a.ExpiresAt == nil && other.ExpiresAt == nil:
		return true
	case a.ExpiresAt == nil || other.ExpiresAt == nil:
		return false
	default:
		return a.ExpiresAt.Equal(*other.ExpiresAt)
	}
}
