// Package testkit 提供测试用的公共依赖：Logger、Meter、可控时钟以及各存储后端的连接。
//
// SQLite 与 Badger 使用内存模式，无需外部服务；Redis、Etcd、MySQL、NATS、Kafka
// 通过 testcontainers 启动容器，-short 模式或 Docker 不可用时跳过。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
	Clock  *clock.Mock
}

// NewKit 返回一个包含默认依赖的测试工具包，时钟初始为一个固定时刻
func NewKit(t *testing.T) *Kit {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Kit{
		Ctx:    ctx,
		Logger: NewLogger(),
		Meter:  NewMeter(),
		Clock:  NewClock(),
	}
}

// NewLogger 返回一个用于测试的 logger，只输出 warn 及以上级别
func NewLogger() clog.Logger {
	cfg := clog.NewDevDefaultConfig()
	cfg.Level = "warn"
	return clog.Must(cfg, clog.WithNamespace("test"))
}

// NewMeter 返回一个用于测试的 meter，不启动 HTTP 服务器
func NewMeter() metrics.Meter {
	return metrics.Must(metrics.NewDevDefaultConfig("test"))
}

// NewClock 返回停在 2024-01-01T00:00:00Z 的模拟时钟
func NewClock() *clock.Mock {
	c := clock.NewMock()
	c.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return c
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 Key、Topic 或表名后缀，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}

// RequireDocker 在 -short 模式或 Docker 不可用时跳过当前测试
func RequireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}
