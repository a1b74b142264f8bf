package task

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled 表示任务在产出结果前被取消。
var ErrCancelled = errors.New("task cancelled")

// State 描述任务所处阶段。
type State int32

const (
	StatePending State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Func 是任务实际执行的工作，ctx 会在 Cancel 时被取消。
type Func[T any] func(ctx context.Context) (T, error)

// Runner 负责调度任务主体，Pool 实现了该接口。
type Runner interface {
	Go(fn func())
}

// Task 表示一次可取消的延迟工作，终态结果只会被通知一次。
type Task[T any] struct {
	fn     Func[T]
	runner Runner

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	cancelled bool
	value     T
	err       error
	callbacks []func(T, error)
	done      chan struct{}
}

// New 构造处于 pending 状态的任务；runner 为空时直接使用 goroutine。
// ctx 仅提供取值语义，父 ctx 的取消不会传播到任务主体。
func New[T any](ctx context.Context, fn Func[T], runner Runner) *Task[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Task[T]{
		fn:     fn,
		runner: runner,
		ctx:    workCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start 将任务从 pending 切换为 running 并交给 runner 执行，其它状态下为 no-op。
func (t *Task[T]) Start() {
	t.mu.Lock()
	if t.state != StatePending {
		t.mu.Unlock()
		return
	}
	t.state = StateRunning
	t.mu.Unlock()

	run := func() {
		if t.ctx.Err() != nil {
			var zero T
			t.finish(zero, ErrCancelled, false)
			return
		}
		value, err := t.fn(t.ctx)
		t.finish(value, err, false)
	}
	if t.runner == nil {
		go run()
		return
	}
	t.runner.Go(run)
}

// Cancel 终止 pending/running 任务并以 ErrCancelled 结束；已结束的任务不受影响。
func (t *Task[T]) Cancel() {
	var zero T
	t.finish(zero, ErrCancelled, true)
}

// finish 执行唯一一次 finished 迁移；回调先于 Done 关闭触发。
func (t *Task[T]) finish(value T, err error, cancelled bool) bool {
	t.mu.Lock()
	if t.state == StateFinished {
		t.mu.Unlock()
		return false
	}
	t.state = StateFinished
	t.cancelled = cancelled
	if cancelled {
		var zero T
		value = zero
	}
	t.value = value
	t.err = err
	callbacks := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	t.cancel()
	for _, cb := range callbacks {
		cb(value, err)
	}
	close(t.done)
	return true
}

// OnComplete 注册完成回调；若任务已结束则立即在调用方 goroutine 上执行。
func (t *Task[T]) OnComplete(cb func(T, error)) {
	if cb == nil {
		return
	}
	t.mu.Lock()
	if t.state != StateFinished {
		t.callbacks = append(t.callbacks, cb)
		t.mu.Unlock()
		return
	}
	value, err := t.value, t.err
	t.mu.Unlock()
	cb(value, err)
}

// Wait 阻塞直到任务结束或 ctx 结束。ctx 结束不会取消任务本身。
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done 在任务结束且所有回调执行完毕后关闭。
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// State 返回当前状态快照。
func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cancelled 报告任务是否以取消结束。
func (t *Task[T]) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}
