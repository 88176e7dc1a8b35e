package connector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/ceyewan/discovery/clog"
)

type natsConnector struct {
	cfg     *NATSConfig
	logger  clog.Logger
	metrics *connMetrics

	mu      sync.RWMutex
	conn    *nats.Conn
	healthy atomic.Bool
}

// NewNATS 创建 NATS 连接器
func NewNATS(cfg *NATSConfig, opts ...Option) (NATSConnector, error) {
	if cfg == nil {
		return nil, configError("nats", ErrNotConnected)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, configError("nats", err)
	}
	o := applyOptions(opts)
	return &natsConnector{
		cfg:     cfg,
		logger:  o.logger.With(clog.String("connector", "nats"), clog.String("name", cfg.Name)),
		metrics: newConnMetrics(o.meter, "nats", cfg.Name),
	}, nil
}

func (c *natsConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	natsOpts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.Timeout(c.cfg.Timeout),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.PingInterval(c.cfg.PingInterval),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.healthy.Store(false)
			c.logger.Warn("nats disconnected", clog.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.healthy.Store(true)
			c.logger.Info("nats reconnected", clog.String("url", nc.ConnectedUrl()))
		}),
	}
	if c.cfg.Username != "" {
		natsOpts = append(natsOpts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
	}
	if c.cfg.Token != "" {
		natsOpts = append(natsOpts, nats.Token(c.cfg.Token))
	}

	conn, err := nats.Connect(c.cfg.URL, natsOpts...)
	c.metrics.observe(ctx, err)
	if err != nil {
		c.logger.Error("connect to nats failed", clog.String("url", c.cfg.URL), clog.Error(err))
		return connectionError("nats", c.cfg.Name, err)
	}
	c.conn = conn
	c.healthy.Store(true)
	c.logger.Info("connected to nats", clog.String("url", c.cfg.URL))
	return nil
}

func (c *natsConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy.Store(false)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Drain()
	c.conn = nil
	return err
}

func (c *natsConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		c.healthy.Store(false)
		return healthError("nats", c.cfg.Name, ErrNotConnected)
	}
	if status := conn.Status(); status != nats.CONNECTED {
		c.healthy.Store(false)
		return healthError("nats", c.cfg.Name, fmt.Errorf("connection status: %s", status))
	}
	c.healthy.Store(true)
	return nil
}

func (c *natsConnector) IsHealthy() bool { return c.healthy.Load() }
func (c *natsConnector) Name() string    { return c.cfg.Name }

func (c *natsConnector) GetClient() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}
