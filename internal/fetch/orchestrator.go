package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/task"
)

const tracerName = "github.com/any-hub/any-cache/internal/fetch"

// Storage 是编排层依赖的存储能力，*cache.Engine 实现了该接口。
type Storage interface {
	Fetch(ctx context.Context, identifier string, opts cache.ReadOptions) (cache.Asset, error)
	Store(ctx context.Context, asset cache.Asset, opts cache.WriteOptions) (cache.Asset, error)
}

// Options 描述 Orchestrator 的依赖，Storage 与 Fetcher 为必填项。
type Options struct {
	Storage Storage
	Fetcher Fetcher
	Logger  logrus.FieldLogger
	// Runner 执行拉取任务与回写任务，通常为共享的 task.Pool。
	Runner  task.Runner
	KeyFunc KeyFunc
	Tracer  trace.Tracer
}

// Result 是一次编排的结果。Payload 在共享同一拉取的调用方之间共享，调用方不应修改。
type Result struct {
	Identifier string
	Payload    []byte
	// Hit 表示结果来自缓存。
	Hit bool
	// Shared 表示调用方复用了已在进行中的拉取。
	Shared bool
}

// Orchestrator 负责 “策略化读缓存 → 回源 → 异步写缓存” 的全流程，并对相同标识符的并发拉取去重。
type Orchestrator struct {
	storage Storage
	fetcher Fetcher
	logger  logrus.FieldLogger
	runner  task.Runner
	keyFunc KeyFunc
	tracer  trace.Tracer

	mu       sync.Mutex
	inflight map[string]*call

	stores sync.WaitGroup
}

// call 是某个标识符唯一的进行中拉取，waiters 记录仍在等待的调用方数量。
type call struct {
	task    *task.Task[Result]
	waiters int
}

// NewOrchestrator 校验依赖并补齐默认值。
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	keyFunc := opts.KeyFunc
	if keyFunc == nil {
		keyFunc = RequestKey
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Orchestrator{
		storage:  opts.Storage,
		fetcher:  opts.Fetcher,
		logger:   logger,
		runner:   opts.Runner,
		keyFunc:  keyFunc,
		tracer:   tracer,
		inflight: make(map[string]*call),
	}, nil
}

// Fetch 返回请求对应的字节内容，语义同 Do。
func (o *Orchestrator) Fetch(ctx context.Context, req Request, params cache.Parameters) ([]byte, error) {
	res, err := o.Do(ctx, req, params)
	if err != nil {
		return nil, err
	}
	return res.Payload, nil
}

// Do 计算标识符后加入或创建该标识符的进行中拉取，并等待其终态结果。
// ctx 结束时仅当前调用方脱离；最后一个调用方脱离时取消共享拉取。
func (o *Orchestrator) Do(ctx context.Context, req Request, params cache.Parameters) (Result, error) {
	id, err := o.keyFunc(req)
	if err != nil {
		if !errors.Is(err, cache.ErrBadRequest) {
			err = fmt.Errorf("%w: %v", cache.ErrBadRequest, err)
		}
		return Result{}, err
	}

	ctx, span := o.tracer.Start(ctx, "fetch", trace.WithAttributes(
		attribute.String("cache.key", id),
		attribute.String("cache.read", params.Read.String()),
		attribute.String("cache.write", params.Write.String()),
	))
	defer span.End()

	o.mu.Lock()
	c, shared := o.inflight[id]
	if !shared {
		c = o.newCall(ctx, id, req, params)
		o.inflight[id] = c
	}
	c.waiters++
	o.mu.Unlock()

	if !shared {
		c.task.Start()
	}

	res, err := c.task.Wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		o.detach(id, c)
	}

	span.SetAttributes(attribute.Bool("fetch.shared", shared))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", res.Hit))
	res.Shared = shared
	return res, nil
}

// InFlight 返回当前进行中的拉取数量。
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// Close 等待已调度的缓存回写完成。
func (o *Orchestrator) Close() {
	o.stores.Wait()
}

func (o *Orchestrator) newCall(ctx context.Context, id string, req Request, params cache.Parameters) *call {
	c := &call{}
	c.task = task.New(ctx, func(workCtx context.Context) (Result, error) {
		return o.run(workCtx, id, req, params)
	}, o.runner)
	// 在等待方观察到结果之前移除进行中记录，新的调用方不会加入已结束的拉取。
	c.task.OnComplete(func(Result, error) {
		o.forget(id, c)
	})
	return c
}

func (o *Orchestrator) forget(id string, c *call) {
	o.mu.Lock()
	if o.inflight[id] == c {
		delete(o.inflight, id)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) detach(id string, c *call) {
	o.mu.Lock()
	c.waiters--
	last := c.waiters <= 0
	if last && o.inflight[id] == c {
		delete(o.inflight, id)
	}
	o.mu.Unlock()

	if last {
		c.task.Cancel()
	}
}

func (o *Orchestrator) run(ctx context.Context, id string, req Request, params cache.Parameters) (Result, error) {
	asset, err := o.storage.Fetch(ctx, id, params.Read)
	if err == nil {
		return Result{Identifier: id, Payload: asset.Payload, Hit: true}, nil
	}
	if !isMiss(err) {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"action":     "cache_get",
			"identifier": id,
			"read":       params.Read.String(),
		}).Warn("cache_get_failed")
	}
	if !params.Read.Contains(cache.ReadNetwork) {
		return Result{}, fmt.Errorf("%w: %s not servable with read=%s: %w", cache.ErrBadRequest, id, params.Read, err)
	}

	payload, err := o.fetcher.Fetch(ctx, req)
	if err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"action":     "fetch",
			"identifier": id,
			"url":        req.URL,
		}).Warn("fetch_failed")
		return Result{}, err
	}
	// 所有调用方已离开时任务已以取消结束，不再回写，避免与新的拉取重叠写入。
	if ctx.Err() != nil {
		return Result{}, task.ErrCancelled
	}

	o.scheduleStore(cache.NewAsset(id, payload, params.ExpiresAt), params.Write)
	return Result{Identifier: id, Payload: payload}, nil
}

// scheduleStore 在 worker 池上回写缓存，失败只记录日志，不影响已返回的数据。
func (o *Orchestrator) scheduleStore(asset cache.Asset, opts cache.WriteOptions) {
	o.stores.Add(1)
	store := func() {
		defer o.stores.Done()
		_, err := o.storage.Store(context.Background(), asset, opts)
		if err == nil {
			return
		}
		entry := o.logger.WithError(err).WithFields(logrus.Fields{
			"action":     "cache_store",
			"identifier": asset.Identifier,
			"write":      opts.String(),
		})
		if errors.Is(err, cache.ErrOptionalSkip) || errors.Is(err, cache.ErrNoWrite) {
			entry.Debug("cache_store_skipped")
			return
		}
		entry.Warn("cache_store_failed")
	}
	if o.runner == nil {
		go store()
		return
	}
	o.runner.Go(store)
}

func isMiss(err error) bool {
	return errors.Is(err, cache.ErrNotFound) ||
		errors.Is(err, cache.ErrInvalid) ||
		errors.Is(err, cache.ErrNoRead)
}
