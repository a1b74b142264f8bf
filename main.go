package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/fetch"
	"github.com/any-hub/any-cache/internal/logging"
	"github.com/any-hub/any-cache/internal/proxy"
	"github.com/any-hub/any-cache/internal/server"
	"github.com/any-hub/any-cache/internal/server/routes"
	"github.com/any-hub/any-cache/internal/task"
	"github.com/any-hub/any-cache/internal/telemetry"
	"github.com/any-hub/any-cache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

const shutdownTimeout = 10 * time.Second

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["namespace"] = cfg.Global.Namespace
		fields["read_policy"] = cfg.Policy.ReadPolicy
		fields["write_policy"] = cfg.Policy.WritePolicy
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化链路追踪失败: %v\n", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.WithError(err).Warn("tracing_shutdown_failed")
		}
	}()

	// 启动顺序为“配置 → 任务池 → 缓存引擎 → 编排器 → Fiber server”，
	// 所有请求共享同一缓存实例与进行中拉取表。
	rt, err := newRuntime(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}
	defer rt.Close()

	fields := logging.CacheFields("startup", rt.engine.Dir(), cfg.Global.Namespace)
	fields["configPath"] = opts.configPath
	fields["listen_port"] = cfg.Global.ListenPort
	fields["workers"] = cfg.Global.Workers
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(ctx, cfg, rt, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// cacheRuntime 持有进程内共享的任务池、缓存引擎与编排器。
type cacheRuntime struct {
	pool    *task.Pool
	engine  *cache.Engine
	orch    *fetch.Orchestrator
	handler *proxy.Handler
}

func newRuntime(cfg *config.Config, logger *logrus.Logger) (*cacheRuntime, error) {
	policy, err := cfg.DefaultPolicy()
	if err != nil {
		return nil, err
	}

	pool := task.NewPool(cfg.Global.Workers)
	engine, err := cache.NewEngine(cache.EngineOptions{
		Root:      cfg.Global.StorageRoot,
		Namespace: cfg.Global.Namespace,
		Logger:    logger,
		Runner:    pool,
	})
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewHTTPFetcher(fetch.NewUpstreamClient(cfg.Global.UpstreamTimeout.DurationValue()))
	fetcher.MaxBodyBytes = cfg.Global.MaxBodyBytes

	orch, err := fetch.NewOrchestrator(fetch.Options{
		Storage: engine,
		Fetcher: fetcher,
		Logger:  logger,
		Runner:  pool,
	})
	if err != nil {
		return nil, err
	}

	return &cacheRuntime{
		pool:    pool,
		engine:  engine,
		orch:    orch,
		handler: proxy.NewHandler(orch, logger, policy),
	}, nil
}

// Close 等待排队中的回写与删除任务结束。
func (r *cacheRuntime) Close() {
	r.orch.Close()
	r.engine.Close()
	r.pool.Wait()
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("any-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ANY_CACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ANY_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(ctx context.Context, cfg *config.Config, rt *cacheRuntime, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Fetch:      rt.handler,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterCacheRoutes(app, rt.engine, rt.orch)

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(shutdownTimeout)
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
