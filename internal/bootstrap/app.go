// Package bootstrap 按配置组装并运行 discovery 服务端。
//
// 启动顺序：日志、指标、追踪 → 存储后端 → 带重试的存储初始化 → 快照重载循环 →
// 本地缓存与 HTTP 接口 → 自身公告。退出时按相反顺序释放。
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/ceyewan/discovery/api"
	"github.com/ceyewan/discovery/cache"
	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/metrics"
	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/trace"
	"github.com/ceyewan/discovery/xerrors"
)

// ServiceType 服务端自身公告的服务类型
const ServiceType = "discovery"

// Shutdown 释放一项资源
type Shutdown func(context.Context) error

// Option App 选项
type Option func(*App)

// WithLogger 使用外部 Logger，不再按 Config.Log 创建
func WithLogger(l clog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithClock 注入时钟，测试中控制公告与清理的节奏
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.clock = c }
}

// App 一个运行中的 discovery 节点
type App struct {
	cfg    *Config
	logger clog.Logger
	meter  metrics.Meter
	clock  clock.Clock

	backend     *backend
	events      *eventSink
	initializer *store.Initializer
	dynamic     *registry.DynamicStore
	static      *registry.StaticStore
	cache       *cache.LocalServiceCache
	client      *registry.LocalClient
	api         *api.Server

	serviceID string
	listener  net.Listener
	server    *http.Server

	shutdowns []Shutdown
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New 创建所有组件但不启动后台任务
func New(ctx context.Context, cfg *Config, opts ...Option) (a *App, err error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "config is required")
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	a = &App{cfg: cfg, clock: clock.New(), stop: make(chan struct{}), serviceID: uuid.NewString()}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			_ = a.release(context.Background())
		}
	}()

	if a.logger == nil {
		logger, err := clog.New(&cfg.Log, clog.WithNamespace("discovery"), clog.WithTraceContext())
		if err != nil {
			return nil, xerrors.Wrap(err, "init logger")
		}
		a.logger = logger
	}
	a.logger = a.logger.With(clog.String("node_id", cfg.App.NodeID))

	meter, err := metrics.New(&cfg.Metrics, metrics.WithLogger(a.logger))
	if err != nil {
		return nil, xerrors.Wrap(err, "init metrics")
	}
	a.meter = meter
	a.shutdowns = append(a.shutdowns, meter.Shutdown)

	traceShutdown, err := trace.Init(ctx, &cfg.Trace)
	if err != nil {
		return nil, xerrors.Wrap(err, "init trace")
	}
	a.shutdowns = append(a.shutdowns, Shutdown(traceShutdown))

	b, err := openBackend(ctx, &cfg.Store, a.clock, a.logger, meter, cfg.Trace.Enabled)
	if err != nil {
		return nil, xerrors.Wrapf(err, "open %s store", cfg.Store.Driver)
	}
	a.backend = b
	a.shutdowns = append(a.shutdowns, func(context.Context) error { return b.close() })
	b.withBreakers(cfg.Store.Breaker, a.logger)

	a.initializer = store.NewInitializer(store.Provisioners(b.dynamic, b.static), cfg.Store.Provision,
		store.WithLogger(a.logger), store.WithClock(a.clock))

	regOpts := []registry.Option{registry.WithLogger(a.logger), registry.WithMeter(meter), registry.WithClock(a.clock)}
	if a.dynamic, err = registry.NewDynamicStore(b.dynamic, &cfg.Registry, regOpts...); err != nil {
		return nil, err
	}
	if a.static, err = registry.NewStaticStore(b.static, &cfg.Registry, regOpts...); err != nil {
		return nil, err
	}
	view := registry.NewView(a.dynamic, a.static)

	a.cache, err = cache.New(view, &cfg.Cache,
		cache.WithLogger(a.logger), cache.WithMeter(meter), cache.WithClock(a.clock))
	if err != nil {
		return nil, err
	}
	a.client, err = registry.NewLocalClient(a.dynamic, a.cache, cfg.App.NodeInfo)
	if err != nil {
		return nil, err
	}

	if a.events, err = openEvents(ctx, &cfg.Events, a.logger, meter); err != nil {
		return nil, xerrors.Wrap(err, "init events")
	}
	a.shutdowns = append(a.shutdowns, a.events.close)

	apiOpts := []api.Option{api.WithLogger(a.logger), api.WithMeter(meter)}
	if cfg.Trace.Enabled {
		apiOpts = append(apiOpts, api.WithTracing(cfg.Trace.ServiceName))
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		apiOpts = append(apiOpts, api.WithMetricsHandler(cfg.Metrics.Path))
	}
	a.api, err = api.New(api.Deps{
		Environment: cfg.App.Environment,
		Dynamic:     a.dynamic,
		Static:      a.static,
		View:        view,
		Pools:       a.cache,
		Recorder:    a.events.recorder,
	}, &cfg.API, apiOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Start 初始化存储、启动重载循环与 HTTP 服务，返回时已可对外服务
func (a *App) Start(ctx context.Context) error {
	a.initializer.Start(ctx)
	if !a.initializer.Wait(ctx) {
		if err := a.initializer.Err(); err != nil {
			return xerrors.Wrap(err, "provision store")
		}
		return xerrors.Wrap(ctx.Err(), "provision store")
	}

	lis, err := net.Listen("tcp", a.cfg.App.HTTPAddr)
	if err != nil {
		return xerrors.Wrapf(err, "listen %s", a.cfg.App.HTTPAddr)
	}
	a.listener = lis

	// 先公告自身并同步加载一次，刚启动时的查询就能看到完整结果
	a.announce(ctx)
	if err := a.dynamic.Reload(ctx); err != nil {
		a.logger.Warn("initial dynamic reload failed", clog.Error(err))
	}
	if err := a.static.Reload(ctx); err != nil {
		a.logger.Warn("initial static reload failed", clog.Error(err))
	}
	if err := a.dynamic.Start(); err != nil {
		return err
	}
	if err := a.static.Start(); err != nil {
		return err
	}

	a.server = &http.Server{
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("http listening", clog.String("addr", lis.Addr().String()))
		if err := a.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http serve failed", clog.Error(err))
		}
	}()

	a.every(a.cfg.App.AnnounceInterval, func() { a.announce(context.Background()) })
	a.every(a.cfg.Store.PurgeInterval, a.purge)
	return nil
}

// Run 启动并阻塞到 ctx 取消，然后优雅退出
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Close(context.Background())
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()
	return a.Close(shutdownCtx)
}

// Addr 实际监听的地址，Start 之前为空
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Handler HTTP 处理器
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Client 进程内发现客户端
func (a *App) Client() *registry.LocalClient {
	return a.client
}

// Close 停止所有后台任务并释放资源，可重复调用
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error
		close(a.stop)
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, xerrors.Wrap(err, "shutdown http"))
			}
		}
		a.wg.Wait()
		if a.server == nil && a.listener != nil {
			_ = a.listener.Close()
		}

		// 主动撤销自身公告，其他节点无需等待过期
		if a.listener != nil {
			if _, err := a.dynamic.Delete(ctx, a.cfg.App.NodeID); err != nil {
				a.logger.Warn("withdraw announcement failed", clog.Error(err))
			}
		}
		errs = append(errs, a.release(ctx))
		a.closeErr = combine(errs)
		a.logger.Info("discovery stopped")
	})
	return a.closeErr
}

func (a *App) release(ctx context.Context) error {
	var errs []error
	if a.dynamic != nil {
		errs = append(errs, a.dynamic.Close())
	}
	if a.static != nil {
		errs = append(errs, a.static.Close())
	}
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		errs = append(errs, a.shutdowns[i](ctx))
	}
	a.shutdowns = nil
	return combine(errs)
}

// every 按固定间隔在后台执行 fn，直到 Close
func (a *App) every(interval time.Duration, fn func()) {
	ticker := a.clock.Ticker(interval)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-a.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (a *App) announce(ctx context.Context) {
	err := a.client.Announce(ctx, []registry.ServiceAnnouncement{{
		ID:         a.serviceID,
		Type:       ServiceType,
		Properties: map[string]string{"http": a.httpURI()},
	}})
	if err != nil {
		a.logger.Warn("self announcement failed", clog.Error(err))
	}
}

func (a *App) purge() {
	for _, p := range a.backend.purgers {
		n, err := p.Purge(context.Background())
		if err != nil {
			a.logger.Warn("purge expired rows failed", clog.Error(err))
			continue
		}
		if n > 0 {
			a.logger.Debug("purged expired rows", clog.Int64("rows", n))
		}
	}
}

func (a *App) httpURI() string {
	if a.cfg.App.HTTPURI != "" {
		return a.cfg.App.HTTPURI
	}
	host, port := "localhost", "4111"
	if a.listener != nil {
		if _, p, err := net.SplitHostPort(a.listener.Addr().String()); err == nil {
			port = p
		}
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		host = h
	}
	return "http://" + net.JoinHostPort(host, port)
}

func combine(errs []error) error {
	return xerrors.Combine(errs...)
}
