package api

import (
	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/metrics"
)

// Option Server 初始化选项
type Option func(*options)

type options struct {
	logger       clog.Logger
	meter        metrics.Meter
	traceService string
	metricsPath  string
}

// WithLogger 注入日志记录器，自动追加 "api" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("api")
		}
	}
}

// WithMeter 注入 Meter，用于 HTTP RED 指标与查询耗时
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTracing 为每个请求创建服务端 Span
func WithTracing(serviceName string) Option {
	return func(o *options) {
		o.traceService = serviceName
	}
}

// WithMetricsHandler 在同一端口的 path 上暴露 Prometheus 采集接口
func WithMetricsHandler(path string) Option {
	return func(o *options) {
		o.metricsPath = path
	}
}
