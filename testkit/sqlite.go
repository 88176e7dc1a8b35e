package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ceyewan/discovery/connector"
)

// NewSQLiteConfig 返回 SQLite 内存数据库配置
func NewSQLiteConfig() *connector.SQLiteConfig {
	return &connector.SQLiteConfig{Name: "test-sqlite", Path: ":memory:"}
}

// NewSQLiteConnector 获取 SQLite 连接器（内存数据库）
// 生命周期由 t.Cleanup 管理
func NewSQLiteConnector(t *testing.T) connector.SQLiteConnector {
	return connectSQLite(t, NewSQLiteConfig())
}

// NewSQLiteDB 获取 GORM DB 实例（内存数据库）
func NewSQLiteDB(t *testing.T) *gorm.DB {
	return NewSQLiteConnector(t).GetClient()
}

// NewPersistentSQLiteDB 获取文件 SQLite 的 GORM DB 实例，数据库文件位于 t.TempDir()
// 返回路径便于测试重新打开同一个库
func NewPersistentSQLiteDB(t *testing.T) (*gorm.DB, string) {
	path := t.TempDir() + "/discovery.db"
	return connectSQLite(t, &connector.SQLiteConfig{Name: "test-sqlite-file", Path: path}).GetClient(), path
}

func connectSQLite(t *testing.T, cfg *connector.SQLiteConfig) connector.SQLiteConnector {
	conn, err := connector.NewSQLite(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create sqlite connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to sqlite")
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
