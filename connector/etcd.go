package connector

import (
	"context"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/discovery/clog"
)

type etcdConnector struct {
	cfg     *EtcdConfig
	logger  clog.Logger
	metrics *connMetrics

	mu      sync.RWMutex
	client  *clientv3.Client
	healthy atomic.Bool
}

// NewEtcd 创建 Etcd 连接器
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, configError("etcd", ErrNotConnected)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, configError("etcd", err)
	}
	o := applyOptions(opts)
	return &etcdConnector{
		cfg:     cfg,
		logger:  o.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
		metrics: newConnMetrics(o.meter, "etcd", cfg.Name),
	}, nil
}

func (c *etcdConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   c.cfg.Endpoints,
		DialTimeout: c.cfg.DialTimeout,
		Username:    c.cfg.Username,
		Password:    c.cfg.Password,
	})
	if err == nil {
		err = c.probe(ctx, client)
		if err != nil {
			_ = client.Close()
		}
	}
	c.metrics.observe(ctx, err)
	if err != nil {
		c.logger.Error("connect to etcd failed", clog.Strings("endpoints", c.cfg.Endpoints), clog.Error(err))
		return connectionError("etcd", c.cfg.Name, err)
	}

	c.client = client
	c.healthy.Store(true)
	c.logger.Info("connected to etcd", clog.Strings("endpoints", c.cfg.Endpoints))
	return nil
}

// probe clientv3.New 不会真正拨号，用 Status 确认至少一个端点可达
func (c *etcdConnector) probe(ctx context.Context, client *clientv3.Client) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	_, err := client.Status(ctx, c.cfg.Endpoints[0])
	return err
}

func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy.Store(false)
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		c.healthy.Store(false)
		return healthError("etcd", c.cfg.Name, ErrNotConnected)
	}
	if err := c.probe(ctx, client); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return healthError("etcd", c.cfg.Name, err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *etcdConnector) IsHealthy() bool { return c.healthy.Load() }
func (c *etcdConnector) Name() string    { return c.cfg.Name }

func (c *etcdConnector) GetClient() *clientv3.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
