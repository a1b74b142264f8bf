package cache

import "context"

// Tier 是单个存储层级（内存或磁盘）的读写原语，Engine 在其上实现策略组合。
// 磁盘布局遵循：
//
//	<Root>/<Namespace>/<encoded identifier>    # CBOR 编码的 Asset 记录
//
// 每个标识符仅对应一个文件，不维护任何持久化索引。
type Tier interface {
	// Name 返回层级名称，用于日志字段。
	Name() string

	// Get 返回存储的 Asset，不做有效性判断。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, identifier string) (Asset, error)

	// Put 覆盖写入 Asset。磁盘实现需通过临时文件 + rename 保证原子性。
	Put(ctx context.Context, asset Asset) error

	// RemoveIf 在持有条目锁的情况下读取当前记录，仅当 match 返回 true 时删除；
	// match 为 nil 时无条件删除。条目不存在视为成功。
	RemoveIf(ctx context.Context, identifier string, match func(Asset) bool) error

	// Clear 清空整个层级，尽力而为。
	Clear(ctx context.Context) error

	// Len 返回当前条目数量（磁盘层级可能需要扫描目录）。
	Len() int
}
