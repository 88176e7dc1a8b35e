package connector

import (
	"context"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/metrics"
)

// Option 连接器选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	tracing bool
}

// WithLogger 注入 Logger，自动追加 "connector" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithMeter 注入 Meter，记录连接尝试与失败次数
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithTracing 为支持的客户端（Redis、GORM）安装 OpenTelemetry 插桩
func WithTracing() Option {
	return func(o *options) {
		o.tracing = true
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// connMetrics 各连接器共用的连接指标
type connMetrics struct {
	attempts metrics.Counter
	failures metrics.Counter
	labels   []metrics.Label
}

func newConnMetrics(m metrics.Meter, kind, name string) *connMetrics {
	attempts, err := m.Counter("connector_connect_attempts_total", "Number of connector connect attempts.")
	if err != nil {
		attempts, _ = metrics.Discard().Counter("", "")
	}
	failures, err := m.Counter("connector_connect_failures_total", "Number of failed connector connect attempts.")
	if err != nil {
		failures, _ = metrics.Discard().Counter("", "")
	}
	return &connMetrics{
		attempts: attempts,
		failures: failures,
		labels:   []metrics.Label{metrics.L("connector", kind), metrics.L("name", name)},
	}
}

func (m *connMetrics) observe(ctx context.Context, err error) {
	m.attempts.Inc(ctx, m.labels...)
	if err != nil {
		m.failures.Inc(ctx, m.labels...)
	}
}
