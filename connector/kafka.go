package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ceyewan/discovery/clog"
)

type kafkaConnector struct {
	cfg     *KafkaConfig
	logger  clog.Logger
	metrics *connMetrics

	mu      sync.RWMutex
	client  *kgo.Client
	healthy atomic.Bool
}

// NewKafka 创建 Kafka 连接器，基于 franz-go
func NewKafka(cfg *KafkaConfig, opts ...Option) (KafkaConnector, error) {
	if cfg == nil {
		return nil, configError("kafka", ErrNotConnected)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, configError("kafka", err)
	}
	o := applyOptions(opts)
	return &kafkaConnector{
		cfg:     cfg,
		logger:  o.logger.With(clog.String("connector", "kafka"), clog.String("name", cfg.Name)),
		metrics: newConnMetrics(o.meter, "kafka", cfg.Name),
	}, nil
}

func (c *kafkaConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(c.cfg.Seed...),
		kgo.ClientID(c.cfg.ClientID),
		kgo.RequestTimeoutOverhead(c.cfg.RequestTimeout),
		kgo.AllowAutoTopicCreation(),
		kgo.WithLogger(&kgoLogger{logger: c.logger}),
	)
	if err == nil {
		if err = client.Ping(ctx); err != nil {
			client.Close()
		}
	}
	c.metrics.observe(ctx, err)
	if err != nil {
		c.logger.Error("connect to kafka failed", clog.Strings("seeds", c.cfg.Seed), clog.Error(err))
		return connectionError("kafka", c.cfg.Name, err)
	}
	c.client = client
	c.healthy.Store(true)
	c.logger.Info("connected to kafka", clog.Strings("seeds", c.cfg.Seed))
	return nil
}

func (c *kafkaConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy.Store(false)
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	return nil
}

func (c *kafkaConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		c.healthy.Store(false)
		return healthError("kafka", c.cfg.Name, ErrNotConnected)
	}
	if err := client.Ping(ctx); err != nil {
		c.healthy.Store(false)
		return healthError("kafka", c.cfg.Name, err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *kafkaConnector) IsHealthy() bool { return c.healthy.Load() }
func (c *kafkaConnector) Name() string    { return c.cfg.Name }

func (c *kafkaConnector) GetClient() *kgo.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// kgoLogger 将 franz-go 的日志转接到 clog
type kgoLogger struct {
	logger clog.Logger
}

func (l *kgoLogger) Level() kgo.LogLevel {
	return kgo.LogLevelWarn
}

func (l *kgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	fields := make([]clog.Field, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		if key, ok := keyvals[i].(string); ok {
			fields = append(fields, clog.Any(key, keyvals[i+1]))
		}
	}
	switch level {
	case kgo.LogLevelError:
		l.logger.Error(msg, fields...)
	case kgo.LogLevelWarn:
		l.logger.Warn(msg, fields...)
	case kgo.LogLevelInfo:
		l.logger.Info(msg, fields...)
	default:
		l.logger.Debug(msg, fields...)
	}
}
