// Package connector 管理 discovery 所依赖的外部连接。
//
// 每种后端对应一个连接器：Redis、MySQL、SQLite、Etcd、Badger（嵌入式）、NATS、Kafka。
// 连接器遵循同一套生命周期：
//
//	conn, _ := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"}, connector.WithLogger(logger))
//	defer conn.Close()
//	if err := conn.Connect(ctx); err != nil { ... }
//	client := conn.GetClient()
//
// NewXXX 只校验配置，不建立连接；Connect 幂等，首次调用时建立连接并做一次探活；
// Close 幂等。连接器拥有底层客户端的生命周期，store、event 等组件只借用客户端，
// 不负责关闭。应用退出时先关闭组件，再关闭连接器。
package connector

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/gorm"
)

// Connector 所有连接器的通用行为，方法均并发安全
type Connector interface {
	// Connect 建立连接，幂等
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等
	Close() error

	// HealthCheck 主动探活并刷新 IsHealthy 的缓存结果
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最近一次探活的结果，不阻塞
	IsHealthy() bool

	// Name 连接器实例名，用于日志与指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
//
// Connect 之前或 Close 之后 GetClient 可能返回 nil。
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

type (
	RedisConnector  interface{ TypedConnector[*redis.Client] }
	MySQLConnector  interface{ TypedConnector[*gorm.DB] }
	SQLiteConnector interface{ TypedConnector[*gorm.DB] }
	EtcdConnector   interface {
		TypedConnector[*clientv3.Client]
	}
	BadgerConnector interface{ TypedConnector[*badger.DB] }
	NATSConnector   interface{ TypedConnector[*nats.Conn] }
	KafkaConnector  interface{ TypedConnector[*kgo.Client] }
)
