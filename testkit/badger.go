package testkit

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/discovery/connector"
)

// NewBadgerDB 获取纯内存模式的 Badger 实例
// 生命周期由 t.Cleanup 管理
func NewBadgerDB(t *testing.T) *badger.DB {
	conn, err := connector.NewBadger(&connector.BadgerConfig{Name: "test-badger", InMemory: true},
		connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create badger connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to open badger")
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn.GetClient()
}
