package connector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ceyewan/discovery/clog"
)

type badgerConnector struct {
	cfg     *BadgerConfig
	logger  clog.Logger
	metrics *connMetrics

	mu      sync.RWMutex
	db      *badger.DB
	stopGC  chan struct{}
	gcDone  chan struct{}
	healthy atomic.Bool
}

// NewBadger 创建 Badger 连接器
//
// Badger 是嵌入式存储，Connect 即打开数据目录；非内存模式下后台定期执行 value log GC。
func NewBadger(cfg *BadgerConfig, opts ...Option) (BadgerConnector, error) {
	if cfg == nil {
		return nil, configError("badger", ErrNotConnected)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, configError("badger", err)
	}
	o := applyOptions(opts)
	return &badgerConnector{
		cfg:     cfg,
		logger:  o.logger.With(clog.String("connector", "badger"), clog.String("name", cfg.Name)),
		metrics: newConnMetrics(o.meter, "badger", cfg.Name),
	}, nil
}

func (c *badgerConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return nil
	}

	opts := badger.DefaultOptions(c.cfg.Path).
		WithInMemory(c.cfg.InMemory).
		WithLogger(nil).
		WithLoggingLevel(badger.ERROR)
	if c.cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	c.metrics.observe(ctx, err)
	if err != nil {
		c.logger.Error("open badger failed", clog.String("path", c.cfg.Path), clog.Error(err))
		return connectionError("badger", c.cfg.Name, err)
	}
	c.db = db
	c.healthy.Store(true)

	if !c.cfg.InMemory {
		c.stopGC = make(chan struct{})
		c.gcDone = make(chan struct{})
		go c.runGC(db, c.stopGC, c.gcDone)
	}
	c.logger.Info("badger opened", clog.String("path", c.cfg.Path), clog.Bool("in_memory", c.cfg.InMemory))
	return nil
}

func (c *badgerConnector) runGC(db *badger.DB, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// 每轮尽量回收，直到没有可回收的 vlog 文件
			for {
				err := db.RunValueLogGC(c.cfg.GCDiscardRatio)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					c.logger.Warn("badger value log gc failed", clog.Error(err))
				}
				break
			}
		}
	}
}

func (c *badgerConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}
	if c.stopGC != nil {
		close(c.stopGC)
		<-c.gcDone
		c.stopGC = nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *badgerConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db == nil || db.IsClosed() {
		c.healthy.Store(false)
		return healthError("badger", c.cfg.Name, ErrNotConnected)
	}
	c.healthy.Store(true)
	return nil
}

func (c *badgerConnector) IsHealthy() bool { return c.healthy.Load() }
func (c *badgerConnector) Name() string    { return c.cfg.Name }

func (c *badgerConnector) GetClient() *badger.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
