package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 表示请求的层级中不存在该条目，驱动 memory → disk 回退。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalid 表示条目存在但已过期，读取时会被异步删除。
	ErrInvalid = errors.New("cache entry expired")
	// ErrOptionalSkip 表示 optional 写入发现了相同的记录，所有请求层级均跳过。
	ErrOptionalSkip = errors.New("optional write skipped: entry unchanged")
	// ErrBadPath 表示无法解析磁盘位置，属于配置问题。
	ErrBadPath = errors.New("cache path unresolvable")
	// ErrNoRead 表示读取策略未包含任何存储层级。
	ErrNoRead = errors.New("read options exclude every storage tier")
	// ErrNoWrite 表示写入策略未包含任何存储层级。
	ErrNoWrite = errors.New("write options exclude every storage tier")
	// ErrBadRequest 表示无法从请求推导缓存键，或策略拒绝了所有恢复路径。
	ErrBadRequest = errors.New("bad request")
)

// StorageError 包装文件系统/序列化失败，保留底层原因用于诊断。
type StorageError struct {
	Op         string
	Identifier string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Identifier, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func wrapErr(op, identifier string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	for _, sentinel := range []error{ErrNotFound, ErrInvalid, ErrOptionalSkip, ErrBadPath, ErrNoRead, ErrNoWrite, ErrBadRequest} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &StorageError{Op: op, Identifier: identifier, Err: err}
}
