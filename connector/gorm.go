package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ceyewan/discovery/clog"
)

// gormConnector SQLite 与 MySQL 共用的 GORM 连接管理
type gormConnector struct {
	kind    string
	name    string
	open    func() gorm.Dialector
	tune    func(db *gorm.DB) error
	tracing bool

	logger  clog.Logger
	metrics *connMetrics

	mu      sync.RWMutex
	db      *gorm.DB
	healthy atomic.Bool
}

func (c *gormConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return nil
	}

	db, err := c.connect(ctx)
	c.metrics.observe(ctx, err)
	if err != nil {
		c.logger.Error("connect failed", clog.Error(err))
		return connectionError(c.kind, c.name, err)
	}
	c.db = db
	c.healthy.Store(true)
	c.logger.Info("connected")
	return nil
}

func (c *gormConnector) connect(ctx context.Context) (*gorm.DB, error) {
	db, err := gorm.Open(c.open(), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.tune != nil {
		if err := c.tune(db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if c.tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			c.logger.Warn("gorm tracing plugin failed", clog.Error(err))
		}
	}
	return db, nil
}

func (c *gormConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.db = nil
	return sqlDB.Close()
}

func (c *gormConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db == nil {
		c.healthy.Store(false)
		return healthError(c.kind, c.name, ErrNotConnected)
	}
	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("health check failed", clog.Error(err))
		return healthError(c.kind, c.name, err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *gormConnector) IsHealthy() bool { return c.healthy.Load() }
func (c *gormConnector) Name() string    { return c.name }

func (c *gormConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
