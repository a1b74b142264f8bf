package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/task"
)

// EngineOptions 描述 Engine 的全部依赖，组合根负责填充。
type EngineOptions struct {
	// Root 为磁盘缓存根目录，空值时使用系统缓存目录。
	Root string
	// Namespace 将缓存限定在 Root 下的子目录；相同 Namespace 的实例共享磁盘状态。
	Namespace string
	Logger    logrus.FieldLogger
	// Runner 执行删除队列，通常为共享的 task.Pool。
	Runner task.Runner
	Now    func() time.Time

	// Memory/Disk 允许测试注入自定义层级。
	Memory Tier
	Disk   Tier
}

// Stats 汇总诊断信息。
type Stats struct {
	MemoryEntries  int    `json:"memory_entries"`
	DiskEntries    int    `json:"disk_entries"`
	Dir            string `json:"dir"`
	PendingDeletes int    `json:"pending_deletes"`
}

// Engine 持有内存与磁盘两个层级，并实现策略化的读、写、删除。
type Engine struct {
	memory Tier
	disk   Tier
	dir    string
	runner task.Runner
	logger logrus.FieldLogger
	now    func() time.Time

	// tombstones 标记已判定过期、正在排队删除的磁盘条目，值为调度代数。
	tombMu     sync.Mutex
	tombstones map[string]uint64
	tombGen    uint64

	deletes sync.WaitGroup
}

// NewEngine 解析磁盘目录并组装两个层级。
func NewEngine(opts EngineOptions) (*Engine, error) {
	dir, err := ResolveDir(opts.Root, opts.Namespace)
	if err != nil {
		return nil, err
	}

	memory := opts.Memory
	if memory == nil {
		memory = NewMemoryTier()
	}
	disk := opts.Disk
	if disk == nil {
		disk, err = NewFileTier(dir)
		if err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		memory:     memory,
		disk:       disk,
		dir:        dir,
		runner:     opts.Runner,
		logger:     logger,
		now:        now,
		tombstones: make(map[string]uint64),
	}, nil
}

// Dir 返回磁盘层级所在目录。
func (e *Engine) Dir() string {
	return e.dir
}

// Fetch 按读取策略查询存储层级：memory 未命中时回退 disk，其它 memory 错误直接返回。
// 读到过期条目时触发异步删除并返回 ErrInvalid。
func (e *Engine) Fetch(ctx context.Context, identifier string, opts ReadOptions) (Asset, error) {
	if !opts.ContainsAny(ReadCache) {
		return Asset{}, ErrNoRead
	}

	var (
		asset Asset
		err   error
	)
	switch {
	case opts.Contains(ReadCache):
		asset, err = e.memory.Get(ctx, identifier)
		if errors.Is(err, ErrNotFound) {
			asset, err = e.readDisk(ctx, identifier)
		}
	case opts.Contains(ReadMemory):
		asset, err = e.memory.Get(ctx, identifier)
	default:
		asset, err = e.readDisk(ctx, identifier)
	}
	if err != nil {
		return Asset{}, err
	}

	if !asset.IsValid(e.now()) {
		e.evict(identifier)
		return Asset{}, ErrInvalid
	}
	return asset, nil
}

// Store 按写入策略独立处理 disk 与 memory 两个分支，再汇总结果：
// 全部跳过返回 ErrOptionalSkip；任一层级写入成功即成功；否则返回失败原因。
func (e *Engine) Store(ctx context.Context, asset Asset, opts WriteOptions) (Asset, error) {
	var tiers []Tier
	if opts.Contains(WriteDisk) {
		tiers = append(tiers, e.disk)
	}
	if opts.Contains(WriteMemory) {
		tiers = append(tiers, e.memory)
	}
	if len(tiers) == 0 {
		return Asset{}, ErrNoWrite
	}

	var (
		written int
		errs    []error
	)
	for _, tier := range tiers {
		outcome, err := e.storeTier(ctx, tier, asset, opts.Optional())
		switch outcome {
		case outcomeWritten:
			written++
		case outcomeFailed:
			errs = append(errs, err)
		}
	}

	switch {
	case written > 0:
		if len(errs) > 0 {
			e.logger.WithError(errors.Join(errs...)).WithFields(logrus.Fields{
				"action":     "cache_store_partial",
				"identifier": asset.Identifier,
				"options":    opts.String(),
			}).Warn("cache_store_tier_failed")
		}
		return asset, nil
	case len(errs) == 1:
		return Asset{}, errs[0]
	case len(errs) > 1:
		return Asset{}, errors.Join(errs...)
	default:
		return Asset{}, ErrOptionalSkip
	}
}

type storeOutcome int

const (
	outcomeSkipped storeOutcome = iota
	outcomeWritten
	outcomeFailed
)

func (e *Engine) storeTier(ctx context.Context, tier Tier, asset Asset, optional bool) (storeOutcome, error) {
	if optional {
		existing, err := e.get(ctx, tier, asset.Identifier)
		switch {
		case err == nil && existing.Equal(asset):
			return outcomeSkipped, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return outcomeFailed, err
		}
	}

	if err := tier.Put(ctx, asset); err != nil {
		return outcomeFailed, err
	}
	if tier == e.disk {
		e.clearTombstone(asset.Identifier, 0)
	}
	return outcomeWritten, nil
}

func (e *Engine) get(ctx context.Context, tier Tier, identifier string) (Asset, error) {
	if tier == e.disk {
		return e.readDisk(ctx, identifier)
	}
	return tier.Get(ctx, identifier)
}

// readDisk 在删除排队期间把条目视为不存在，保证过期条目不会被再次读到。
func (e *Engine) readDisk(ctx context.Context, identifier string) (Asset, error) {
	e.tombMu.Lock()
	_, pending := e.tombstones[identifier]
	e.tombMu.Unlock()
	if pending {
		return Asset{}, ErrNotFound
	}
	return e.disk.Get(ctx, identifier)
}

// Delete 从两个层级删除标识符，两个删除互不影响。
func (e *Engine) Delete(ctx context.Context, identifier string) error {
	memErr := e.memory.RemoveIf(ctx, identifier, nil)
	diskErr := e.disk.RemoveIf(ctx, identifier, nil)
	if diskErr == nil {
		e.clearTombstone(identifier, 0)
	}
	return errors.Join(memErr, diskErr)
}

// ClearMemoryStorage 清空内存层级。
func (e *Engine) ClearMemoryStorage() {
	_ = e.memory.Clear(context.Background())
}

// ClearDiskStorage 删除命名空间目录下的全部条目，已不存在的文件视为成功。
func (e *Engine) ClearDiskStorage(ctx context.Context) error {
	err := e.disk.Clear(ctx)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"action": "cache_clear",
			"dir":    e.dir,
		}).Warn("cache_clear_disk_failed")
	}
	return err
}

// Stats 返回当前条目数量等诊断信息。
func (e *Engine) Stats() Stats {
	e.tombMu.Lock()
	pending := len(e.tombstones)
	e.tombMu.Unlock()
	return Stats{
		MemoryEntries:  e.memory.Len(),
		DiskEntries:    e.disk.Len(),
		Dir:            e.dir,
		PendingDeletes: pending,
	}
}

// Close 等待删除队列中的任务完成。
func (e *Engine) Close() {
	e.deletes.Wait()
}

// evict 同步移除内存中的过期记录，并把磁盘删除交给删除队列，读取方不会阻塞在磁盘 I/O 上。
// 两侧删除均只作用于仍然过期的记录，期间被重新写入的条目不受影响。
func (e *Engine) evict(identifier string) {
	now := e.now()
	expired := func(a Asset) bool { return !a.IsValid(now) }

	if err := e.memory.RemoveIf(context.Background(), identifier, expired); err != nil {
		e.logDeleteFailure(e.memory, identifier, err)
	}

	e.tombMu.Lock()
	e.tombGen++
	gen := e.tombGen
	e.tombstones[identifier] = gen
	e.tombMu.Unlock()

	e.deletes.Add(1)
	e.dispatch(func() {
		defer e.deletes.Done()
		if err := e.disk.RemoveIf(context.Background(), identifier, expired); err != nil {
			e.logDeleteFailure(e.disk, identifier, err)
		}
		e.clearTombstone(identifier, gen)
	})
}

func (e *Engine) dispatch(fn func()) {
	if e.runner == nil {
		go fn()
		return
	}
	e.runner.Go(fn)
}

// clearTombstone 移除标记；gen 非零时仅当标记仍属于该次调度才移除。
func (e *Engine) clearTombstone(identifier string, gen uint64) {
	e.tombMu.Lock()
	defer e.tombMu.Unlock()
	current, ok := e.tombstones[identifier]
	if !ok {
		return
	}
	if gen != 0 && current != gen {
		return
	}
	delete(e.tombstones, identifier)
}

func (e *Engine) logDeleteFailure(tier Tier, identifier string, err error) {
	e.logger.WithError(err).WithFields(logrus.Fields{
		"action":     "cache_delete",
		"tier":       tier.Name(),
		"identifier": identifier,
	}).Warn("cache_delete_failed")
}
