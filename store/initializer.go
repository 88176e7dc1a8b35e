package store

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ceyewan/discovery/clog"
)

// ProvisionConfig 启动初始化的重试策略
type ProvisionConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

// DefaultProvisionConfig 默认最多尝试 30 次，每次间隔 1 秒
func DefaultProvisionConfig() ProvisionConfig {
	return ProvisionConfig{Attempts: 30, Backoff: time.Second}
}

// Initializer 在后台带重试地执行一次初始化，并提供阻塞等待的就绪信号
type Initializer struct {
	p      Provisioner
	cfg    ProvisionConfig
	clock  clock.Clock
	logger clog.Logger

	once sync.Once
	done chan struct{}
	ok   bool
	err  error
}

// NewInitializer 创建初始化器，cfg 中的零值使用默认值
func NewInitializer(p Provisioner, cfg ProvisionConfig, opts ...Option) *Initializer {
	d := DefaultProvisionConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = d.Attempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = d.Backoff
	}
	o := applyOptions(opts)
	return &Initializer{
		p:      p,
		cfg:    cfg,
		clock:  o.clock,
		logger: o.logger.WithNamespace("initializer"),
		done:   make(chan struct{}),
	}
}

// Start 在后台开始初始化，重复调用无副作用
func (i *Initializer) Start(ctx context.Context) {
	i.once.Do(func() {
		go i.run(ctx)
	})
}

func (i *Initializer) run(ctx context.Context) {
	defer close(i.done)
	for attempt := 1; attempt <= i.cfg.Attempts; attempt++ {
		err := i.p.Provision(ctx)
		if err == nil {
			i.ok = true
			i.logger.Info("store provisioned", clog.Int("attempt", attempt))
			return
		}
		i.err = err
		i.logger.Error("store provisioning failed",
			clog.Int("attempt", attempt),
			clog.Int("max_attempts", i.cfg.Attempts),
			clog.Error(err))
		if attempt == i.cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			i.err = ctx.Err()
			return
		case <-i.clock.After(i.cfg.Backoff):
		}
	}
	i.logger.Error("store provisioning gave up", clog.Int("attempts", i.cfg.Attempts), clog.Error(i.err))
}

// Wait 阻塞直到初始化结束，返回是否成功；ctx 结束时返回 false
func (i *Initializer) Wait(ctx context.Context) bool {
	select {
	case <-i.done:
		return i.ok
	case <-ctx.Done():
		return false
	}
}

// Err 返回最后一次失败的原因，仅在初始化结束后有意义
func (i *Initializer) Err() error {
	select {
	case <-i.done:
		return i.err
	default:
		return nil
	}
}
