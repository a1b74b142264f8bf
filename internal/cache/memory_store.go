package cache

import (
	"context"
	"sync"
)

// memoryTier 以标识符 → 编码后记录的映射保存条目，所有操作同步完成。
type memoryTier struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryTier 构建进程内存层级。
func NewMemoryTier() Tier {
	return &memoryTier{entries: make(map[string][]byte)}
}

func (m *memoryTier) Name() string {
	return "memory"
}

func (m *memoryTier) Get(_ context.Context, identifier string) (Asset, error) {
	m.mu.RLock()
	data, ok := m.entries[identifier]
	m.mu.RUnlock()
	if !ok {
		return Asset{}, ErrNotFound
	}
	asset, err := DecodeAsset(data)
	if err != nil {
		return Asset{}, wrapErr("memory_get", identifier, err)
	}
	return asset, nil
}

func (m *memoryTier) Put(_ context.Context, asset Asset) error {
	data, err := EncodeAsset(asset)
	if err != nil {
		return wrapErr("memory_put", asset.Identifier, err)
	}
	m.mu.Lock()
	m.entries[asset.Identifier] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryTier) RemoveIf(_ context.Context, identifier string, match func(Asset) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.entries[identifier]
	if !ok {
		return nil
	}
	if match != nil {
		asset, err := DecodeAsset(data)
		// 无法解码的记录同样清除。
		if err == nil && !match(asset) {
			return nil
		}
	}
	delete(m.entries, identifier)
	return nil
}

func (m *memoryTier) Clear(context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string][]byte)
	m.mu.Unlock()
	return nil
}

func (m *memoryTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
