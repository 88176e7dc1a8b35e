package connector

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/xerrors"
)

func TestConfigValidation(t *testing.T) {
	_, err := NewRedis(&RedisConfig{})
	assert.True(t, xerrors.Is(err, ErrConfig))

	_, err = NewMySQL(&MySQLConfig{Host: "db"})
	assert.True(t, xerrors.Is(err, ErrConfig))

	_, err = NewEtcd(&EtcdConfig{})
	assert.True(t, xerrors.Is(err, ErrConfig))

	_, err = NewNATS(&NATSConfig{})
	assert.True(t, xerrors.Is(err, ErrConfig))

	_, err = NewKafka(&KafkaConfig{})
	assert.True(t, xerrors.Is(err, ErrConfig))

	_, err = NewBadger(&BadgerConfig{})
	assert.True(t, xerrors.Is(err, ErrConfig))

	_, err = NewBadger(&BadgerConfig{InMemory: true, GCDiscardRatio: 1.5})
	assert.True(t, xerrors.Is(err, ErrConfig))
}

func TestConfigDefaults(t *testing.T) {
	r := &RedisConfig{Addr: "127.0.0.1:6379"}
	r.setDefaults()
	assert.Equal(t, "default", r.Name)
	assert.Equal(t, 10, r.PoolSize)
	assert.Equal(t, 5*time.Second, r.DialTimeout)

	m := &MySQLConfig{Host: "db", Username: "root", Database: "discovery"}
	m.setDefaults()
	require.NoError(t, m.validate())
	assert.Equal(t, "root:@tcp(db:3306)/discovery?charset=utf8mb4&parseTime=True&loc=UTC", m.dsn())

	m = &MySQLConfig{DSN: "custom"}
	require.NoError(t, m.validate())
	assert.Equal(t, "custom", m.dsn())
}

func TestSQLiteConnector(t *testing.T) {
	ctx := context.Background()
	conn, err := NewSQLite(&SQLiteConfig{Name: "test", Path: ":memory:"}, WithLogger(clog.Discard()))
	require.NoError(t, err)
	assert.Nil(t, conn.GetClient())
	assert.Error(t, conn.HealthCheck(ctx))

	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Connect(ctx), "connect is idempotent")
	assert.True(t, conn.IsHealthy())
	assert.Equal(t, "test", conn.Name())
	require.NotNil(t, conn.GetClient())
	assert.NoError(t, conn.HealthCheck(ctx))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
	assert.Nil(t, conn.GetClient())
}

func TestBadgerConnectorInMemory(t *testing.T) {
	ctx := context.Background()
	conn, err := NewBadger(&BadgerConfig{InMemory: true})
	require.NoError(t, err)

	require.NoError(t, conn.Connect(ctx))
	require.NotNil(t, conn.GetClient())
	assert.NoError(t, conn.HealthCheck(ctx))

	require.NoError(t, conn.Close())
	assert.Error(t, conn.HealthCheck(ctx))
}

func TestBadgerConnectorOnDisk(t *testing.T) {
	ctx := context.Background()
	conn, err := NewBadger(&BadgerConfig{Path: t.TempDir(), GCInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, conn.Connect(ctx))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, conn.Close())
}

func TestRedisConnector(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	conn, err := NewRedis(&RedisConfig{Addr: addr, DialTimeout: time.Second})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	assert.NoError(t, conn.HealthCheck(ctx))
}

func TestEtcdConnector(t *testing.T) {
	endpoint := os.Getenv("ETCD_ENDPOINTS")
	if endpoint == "" {
		endpoint = "127.0.0.1:2379"
	}
	conn, err := NewEtcd(&EtcdConfig{Endpoints: []string{endpoint}, DialTimeout: time.Second})
	require.NoError(t, err)
	defer conn.Close()

	if err := conn.Connect(context.Background()); err != nil {
		t.Skipf("etcd not available: %v", err)
	}
	assert.NoError(t, conn.HealthCheck(context.Background()))
}
