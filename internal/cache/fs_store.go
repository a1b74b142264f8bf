package cache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	// maxFileNameLen 之内使用可逆的 base64url 文件名，超出后改用摘要。
	maxFileNameLen = 200
	tempPrefix     = ".asset-"
	clearParallel  = 8
)

// ResolveDir 计算 <root>/<namespace> 的绝对路径；root 为空时使用系统缓存目录。
func ResolveDir(root, namespace string) (string, error) {
	ns := strings.TrimSpace(namespace)
	if ns == "" || ns == "." || ns == ".." || strings.ContainsAny(ns, `/\`) {
		return "", fmt.Errorf("namespace %q: %w", namespace, ErrBadPath)
	}

	if root == "" {
		dir, err := os.UserCacheDir()
		if err != nil || dir == "" {
			dir = os.TempDir()
		}
		root = dir
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve storage root: %v: %w", err, ErrBadPath)
	}
	return filepath.Join(abs, ns), nil
}

// NewFileTier 以 dir 为根目录构建磁盘层级；目录在首次写入时按需创建。
func NewFileTier(dir string) (Tier, error) {
	if dir == "" {
		return nil, ErrBadPath
	}
	return &fileTier{
		dir:   dir,
		locks: make(map[string]*entryLock),
	}, nil
}

// fileTier 通过 entryLock 避免同一标识符并发写入/删除交错。
type fileTier struct {
	dir string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileTier) Name() string {
	return "disk"
}

// Dir 返回层级根目录。
func (s *fileTier) Dir() string {
	return s.dir
}

func (s *fileTier) Get(ctx context.Context, identifier string) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	filePath, err := s.entryPath(identifier)
	if err != nil {
		return Asset{}, err
	}
	return s.read(identifier, filePath)
}

func (s *fileTier) read(identifier, filePath string) (Asset, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, wrapErr("disk_stat", identifier, err)
	}
	if info.IsDir() {
		return Asset{}, ErrNotFound
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, wrapErr("disk_read", identifier, err)
	}
	asset, err := DecodeAsset(data)
	if err != nil {
		return Asset{}, wrapErr("disk_decode", identifier, err)
	}
	return asset, nil
}

func (s *fileTier) Put(ctx context.Context, asset Asset) error {
	unlock := s.lockEntry(asset.Identifier)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.entryPath(asset.Identifier)
	if err != nil {
		return err
	}
	data, err := EncodeAsset(asset)
	if err != nil {
		return wrapErr("disk_encode", asset.Identifier, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return wrapErr("disk_mkdir", asset.Identifier, err)
	}

	tempFile, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return wrapErr("disk_create", asset.Identifier, err)
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return wrapErr("disk_write", asset.Identifier, err)
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return wrapErr("disk_rename", asset.Identifier, err)
	}
	return nil
}

func (s *fileTier) RemoveIf(ctx context.Context, identifier string, match func(Asset) bool) error {
	unlock := s.lockEntry(identifier)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.entryPath(identifier)
	if err != nil {
		return err
	}
	if match != nil {
		asset, err := s.read(identifier, filePath)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil
		case err == nil && !match(asset):
			return nil
		}
		// 损坏的记录同样删除。
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapErr("disk_remove", identifier, err)
	}
	return nil
}

func (s *fileTier) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return wrapErr("disk_clear", "", err)
	}

	// 单个条目失败不影响其余条目的删除，返回首个错误。
	var g errgroup.Group
	g.SetLimit(clearParallel)
	for _, entry := range entries {
		name := entry.Name()
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := os.RemoveAll(filepath.Join(s.dir, name))
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return wrapErr("disk_clear", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *fileTier) Len() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		count++
	}
	return count
}

func (s *fileTier) lockEntry(identifier string) func() {
	s.mu.Lock()
	lock := s.locks[identifier]
	if lock == nil {
		lock = &entryLock{}
		s.locks[identifier] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, identifier)
		}
		s.mu.Unlock()
	}
}

// entryPath 将标识符编码为文件系统安全的文件名。
func (s *fileTier) entryPath(identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("empty identifier: %w", ErrBadPath)
	}
	name := base64.RawURLEncoding.EncodeToString([]byte(identifier))
	if len(name) > maxFileNameLen {
		sum := sha256.Sum256([]byte(identifier))
		name = "h-" + hex.EncodeToString(sum[:])
	}
	// base64url 可能以 '-' 开头，但不会出现 '.'，因此不会与临时文件冲突。
	filePath := filepath.Join(s.dir, name)
	if filepath.Dir(filePath) != filepath.Clean(s.dir) {
		return "", fmt.Errorf("invalid cache path for %q: %w", identifier, ErrBadPath)
	}
	return filePath, nil
}
