package task

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool 是有界 worker 池：Go 不阻塞提交方，实际并发受信号量限制。
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPool 返回容量为 size 的池，size <= 0 时退回 GOMAXPROCS。
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Go 异步执行 fn，排队等待空闲槽位。
func (p *Pool) Go(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Acquire 只会在 ctx 结束时失败，Background 永不结束。
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}

// Wait 阻塞直到所有已提交的工作完成。
func (p *Pool) Wait() {
	p.wg.Wait()
}
