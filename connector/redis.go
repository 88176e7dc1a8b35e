package connector

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ceyewan/discovery/clog"
)

type redisConnector struct {
	cfg     *RedisConfig
	client  *redis.Client
	logger  clog.Logger
	metrics *connMetrics
	healthy atomic.Bool
}

// NewRedis 创建 Redis 连接器
func NewRedis(cfg *RedisConfig, opts ...Option) (RedisConnector, error) {
	if cfg == nil {
		return nil, configError("redis", ErrNotConnected)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, configError("redis", err)
	}
	o := applyOptions(opts)

	c := &redisConnector{
		cfg:     cfg,
		logger:  o.logger.With(clog.String("connector", "redis"), clog.String("name", cfg.Name)),
		metrics: newConnMetrics(o.meter, "redis", cfg.Name),
	}
	c.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	if o.tracing {
		if err := redisotel.InstrumentTracing(c.client); err != nil {
			c.logger.Warn("redis tracing instrumentation failed", clog.Error(err))
		}
		if err := redisotel.InstrumentMetrics(c.client); err != nil {
			c.logger.Warn("redis metrics instrumentation failed", clog.Error(err))
		}
	}
	return c, nil
}

func (c *redisConnector) Connect(ctx context.Context) error {
	if c.healthy.Load() {
		return nil
	}
	err := c.client.Ping(ctx).Err()
	c.metrics.observe(ctx, err)
	if err != nil {
		c.logger.Error("connect to redis failed", clog.String("addr", c.cfg.Addr), clog.Error(err))
		return connectionError("redis", c.cfg.Name, err)
	}
	c.healthy.Store(true)
	c.logger.Info("connected to redis", clog.String("addr", c.cfg.Addr))
	return nil
}

func (c *redisConnector) Close() error {
	if c.client == nil {
		return nil
	}
	c.healthy.Store(false)
	err := c.client.Close()
	if err != nil && err != redis.ErrClosed {
		c.logger.Error("close redis failed", clog.Error(err))
		return err
	}
	return nil
}

func (c *redisConnector) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("redis health check failed", clog.Error(err))
		return healthError("redis", c.cfg.Name, err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *redisConnector) IsHealthy() bool          { return c.healthy.Load() }
func (c *redisConnector) Name() string             { return c.cfg.Name }
func (c *redisConnector) GetClient() *redis.Client { return c.client }
