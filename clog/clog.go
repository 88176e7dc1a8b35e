// Package clog 为 discovery 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，调用方不直接依赖 slog
//   - 层级命名空间，组件通过 WithNamespace 追加自己的名字
//   - 从 Context 中提取请求字段以及 OpenTelemetry 的 trace_id/span_id
//   - 运行时动态调整日志级别
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "json", Output: "stdout"})
//	logger.Info("registry started", clog.String("environment", "prod"))
//
// 组件内部的惯用写法：
//
//	storeLogger := logger.WithNamespace("store", "sql")
//	storeLogger.Warn("scan failed", clog.Error(err))
package clog

import (
	"context"
	"fmt"
)

// Logger 日志接口
//
// 每个级别都有带 Context 和不带 Context 两个版本，带 Context 的版本会
// 提取通过 WithContextField 配置的字段，并在启用 WithTraceContext 时附加追踪信息。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 追加命名空间，最终以 "." 连接，例如 "discovery.registry.dynamic"
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别，对所有派生出的子 Logger 同时生效
	SetLevel(level Level) error

	// Flush 强制同步缓冲区
	Flush()
}

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用开发环境默认配置。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return newLogger(config, applyOptions(opts...))
}

// Must 与 New 相同，但在出错时 panic，适用于 main 函数和测试
func Must(config *Config, opts ...Option) Logger {
	l, err := New(config, opts...)
	if err != nil {
		panic(err)
	}
	return l
}
