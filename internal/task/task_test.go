package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskCompletesOnce(t *testing.T) {
	tk := New(context.Background(), func(context.Context) (string, error) {
		return "ok", nil
	}, nil)

	var calls int32
	tk.OnComplete(func(v string, err error) {
		atomic.AddInt32(&calls, 1)
		if v != "ok" || err != nil {
			t.Errorf("unexpected result %q %v", v, err)
		}
	})
	if tk.State() != StatePending {
		t.Fatalf("new task should be pending, got %s", tk.State())
	}

	tk.Start()
	tk.Start()
	value, err := tk.Wait(context.Background())
	if err != nil || value != "ok" {
		t.Fatalf("wait returned %q %v", value, err)
	}
	tk.Cancel()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("callback should fire exactly once, got %d", got)
	}
	if tk.Cancelled() {
		t.Fatalf("finished task must ignore cancel")
	}
}

func TestTaskCancelWhileRunning(t *testing.T) {
	started := make(chan struct{})
	tk := New(context.Background(), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 42, nil
	}, nil)

	var got []error
	var mu sync.Mutex
	tk.OnComplete(func(v int, err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
		if v != 0 {
			t.Errorf("cancelled task must not deliver a value, got %d", v)
		}
	})

	tk.Start()
	<-started
	tk.Cancel()

	_, err := tk.Wait(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	// 给被取消的工作函数返回的机会，确认其结果被丢弃。
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || !errors.Is(got[0], ErrCancelled) {
		t.Fatalf("expected single cancelled callback, got %v", got)
	}
}

func TestTaskCancelBeforeStart(t *testing.T) {
	var ran int32
	tk := New(context.Background(), func(context.Context) (int, error) {
		atomic.StoreInt32(&ran, 1)
		return 1, nil
	}, nil)

	tk.Cancel()
	tk.Start()

	if _, err := tk.Wait(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if tk.State() != StateFinished {
		t.Fatalf("expected finished state, got %s", tk.State())
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatalf("cancelled pending task must never run")
	}
}

func TestTaskCallbackRunsBeforeDone(t *testing.T) {
	var flag int32
	tk := New(context.Background(), func(context.Context) (int, error) {
		return 1, nil
	}, nil)
	tk.OnComplete(func(int, error) {
		atomic.StoreInt32(&flag, 1)
	})
	tk.Start()
	<-tk.Done()
	if atomic.LoadInt32(&flag) != 1 {
		t.Fatalf("callbacks must run before Done closes")
	}
}

func TestTaskLateCallbackInvokedImmediately(t *testing.T) {
	tk := New(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("boom")
	}, nil)
	tk.Start()
	<-tk.Done()

	var got error
	tk.OnComplete(func(_ int, err error) { got = err })
	if got == nil || got.Error() != "boom" {
		t.Fatalf("late callback should see the stored failure, got %v", got)
	}
}

func TestTaskWaitHonoursContext(t *testing.T) {
	tk := New(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, nil)
	tk.Start()
	defer tk.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := tk.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if tk.State() != StateRunning {
		t.Fatalf("waiter timeout must not finish the task, got %s", tk.State())
	}
}

func TestTaskConcurrentCancelAndComplete(t *testing.T) {
	for i := 0; i < 200; i++ {
		tk := New(context.Background(), func(context.Context) (int, error) {
			return 7, nil
		}, nil)
		var calls int32
		tk.OnComplete(func(v int, err error) {
			atomic.AddInt32(&calls, 1)
			if err == nil && v != 7 {
				t.Errorf("unexpected value %d", v)
			}
			if err != nil && v != 0 {
				t.Errorf("cancelled outcome carried value %d", v)
			}
		})
		tk.Start()
		go tk.Cancel()
		<-tk.Done()
		time.Sleep(time.Millisecond)
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Fatalf("iteration %d: expected one callback, got %d", i, got)
		}
	}
}
