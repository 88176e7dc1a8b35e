package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ceyewan/discovery/connector"
)

// NewKafkaContainerConfig 使用 testcontainers 创建 Kafka 容器并返回配置
// 生命周期由 t.Cleanup 管理
func NewKafkaContainerConfig(t *testing.T) *connector.KafkaConfig {
	RequireDocker(t)
	ctx := context.Background()

	container, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkacontainer.WithClusterID("discovery-test"),
	)
	require.NoError(t, err, "failed to start Kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return &connector.KafkaConfig{
		Name:           "testcontainer-kafka",
		Seed:           brokers,
		RequestTimeout: 5 * time.Second,
	}
}

// NewKafkaClient 启动 Kafka 容器并返回原生客户端
// 生命周期由 t.Cleanup 管理
func NewKafkaClient(t *testing.T) *kgo.Client {
	conn, err := connector.NewKafka(NewKafkaContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create kafka connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to kafka")
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn.GetClient()
}
