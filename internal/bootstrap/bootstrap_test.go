package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ceyewan/discovery/config"
	"github.com/ceyewan/discovery/connector"
	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/testkit"
	"github.com/ceyewan/discovery/xerrors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadDefaultsFromEnvironment(t *testing.T) {
	t.Setenv("DISCOVERY_APP_ENVIRONMENT", "testing")
	t.Setenv("DISCOVERY_APP_NODE_ID", "node-1")

	cfg, _, err := Load(context.Background(), t.TempDir(), config.WithoutWatch())
	require.NoError(t, err)

	assert.Equal(t, "testing", cfg.App.Environment)
	assert.Equal(t, "node-1", cfg.App.NodeID)
	assert.Equal(t, "general", cfg.App.Pool)
	assert.Equal(t, ":4111", cfg.App.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.Registry.MaxAge)
	assert.Equal(t, 10*time.Second, cfg.App.AnnounceInterval)
	assert.Equal(t, 30*time.Second, cfg.Store.PurgeInterval)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 30, cfg.Store.Provision.Attempts)
	assert.Equal(t, "log", cfg.Events.Driver)
	assert.Equal(t, 5*time.Second, cfg.Cache.RefreshInterval)
}

func TestLoadFile(t *testing.T) {
	dir := writeConfig(t, `
app:
  environment: staging
  node_id: node-2
  pool: edge
  http_addr: 127.0.0.1:0
registry:
  max_age: 90s
  serializer: msgpack
store:
  driver: sqlite
  sqlite:
    path: /tmp/discovery-test.db
  breaker:
    enabled: true
    failure_ratio: 0.5
events:
  enabled: "DynamicAnnouncement, ServiceQuery"
  driver: nats
  nats:
    url: nats://127.0.0.1:4222
api:
  write_rate_limit: 50
`)
	t.Setenv("DISCOVERY_APP_POOL", "override")

	cfg, loader, err := Load(context.Background(), dir, config.WithoutWatch())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), loader.ConfigFileUsed())

	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "override", cfg.App.Pool)
	assert.Equal(t, 90*time.Second, cfg.Registry.MaxAge)
	assert.Equal(t, 30*time.Second, cfg.App.AnnounceInterval)
	assert.Equal(t, registry.SerializerMsgpack, cfg.Registry.Serializer)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/discovery-test.db", cfg.Store.SQLite.Path)
	assert.True(t, cfg.Store.Breaker.Enabled)
	assert.InDelta(t, 0.5, cfg.Store.Breaker.FailureRatio, 1e-9)
	assert.Equal(t, "nats", cfg.Events.Driver)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATS.URL)
	assert.InDelta(t, 50.0, cfg.API.WriteRateLimit, 1e-9)
}

func TestResolveRejects(t *testing.T) {
	base := func() Config {
		return Config{App: AppConfig{NodeInfo: registry.NodeInfo{Environment: "testing", NodeID: "n"}}}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing environment", func(c *Config) { c.App.Environment = "" }},
		{"missing node id", func(c *Config) { c.App.NodeID = "" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "cassandra" }},
		{"announce slower than expiry", func(c *Config) { c.App.AnnounceInterval = time.Minute }},
		{"unknown event type", func(c *Config) { c.Events.Enabled = "Everything" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.resolve(), xerrors.ErrInvalidInput)
		})
	}

	cfg := base()
	require.NoError(t, cfg.resolve())
}

func newTestConfig(driver string) *Config {
	return &Config{
		App: AppConfig{
			NodeInfo: registry.NodeInfo{Environment: "testing", NodeID: "self", Pool: "general"},
			HTTPAddr: "127.0.0.1:0",
		},
		Store: StoreConfig{Driver: driver},
	}
}

func getServices(t *testing.T, base, path string) registry.Services {
	t.Helper()
	resp, err := http.Get("http://" + base + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out registry.Services
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func countServices(base, path string) int {
	resp, err := http.Get("http://" + base + path)
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	var out registry.Services
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&out) != nil {
		return -1
	}
	return len(out.Services)
}

func TestAppLifecycle(t *testing.T) {
	kit := testkit.NewKit(t)
	app, err := New(kit.Ctx, newTestConfig(DriverMemory), WithLogger(kit.Logger), WithClock(kit.Clock))
	require.NoError(t, err)
	require.NoError(t, app.Start(kit.Ctx))
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	addr := app.Addr()
	require.NotEmpty(t, addr)

	// 启动后立即能查到自身
	self := getServices(t, addr, "/v1/service/discovery")
	require.Len(t, self.Services, 1)
	assert.Equal(t, "self", self.Services[0].NodeID)
	assert.Contains(t, self.Services[0].Properties["http"], "http://")

	body, err := json.Marshal(registry.DynamicAnnouncement{
		Environment: "testing",
		Pool:        "general",
		Services:    []registry.ServiceAnnouncement{{ID: "s1", Type: "storage"}},
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, "http://"+addr+"/v1/announcement/node-b", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// 推进时钟触发下一轮重载
	assert.Eventually(t, func() bool {
		kit.Clock.Add(time.Second)
		return countServices(addr, "/v1/service/storage") == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Close(context.Background()))
	require.NoError(t, app.Close(context.Background()))

	// 退出时撤销了自身公告
	require.NoError(t, app.dynamic.Reload(context.Background()))
	assert.Empty(t, app.dynamic.Get(ServiceType))
	assert.Len(t, app.dynamic.Get("storage"), 1)
}

func TestAppLocalClientUsesCache(t *testing.T) {
	kit := testkit.NewKit(t)
	app, err := New(kit.Ctx, newTestConfig(DriverMemory), WithLogger(kit.Logger), WithClock(kit.Clock))
	require.NoError(t, err)
	require.NoError(t, app.Start(kit.Ctx))
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	services := app.Client().Services(ServiceType, "general")
	assert.Equal(t, "testing", services.Environment)
	require.Len(t, services.Services, 1)
}

func TestAppSQLiteBackend(t *testing.T) {
	kit := testkit.NewKit(t)
	cfg := newTestConfig(DriverSQLite)
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "discovery.db")

	app, err := New(kit.Ctx, cfg, WithLogger(kit.Logger), WithClock(kit.Clock))
	require.NoError(t, err)
	require.NoError(t, app.Start(kit.Ctx))

	require.NoError(t, app.static.Put(kit.Ctx, registry.Service{ID: "static-1", Type: "db", Pool: "general"}))
	require.NoError(t, app.Close(context.Background()))

	// 新实例读到持久化的静态服务
	restarted, err := New(kit.Ctx, cfg, WithLogger(kit.Logger), WithClock(kit.Clock))
	require.NoError(t, err)
	require.NoError(t, restarted.Start(kit.Ctx))
	t.Cleanup(func() { _ = restarted.Close(context.Background()) })

	got := getServices(t, restarted.Addr(), "/v1/announcement/static")
	require.Len(t, got.Services, 1)
	assert.Equal(t, "static-1", got.Services[0].ID)

	conn, ok := restarted.backend.connector.(connector.TypedConnector[*gorm.DB])
	require.True(t, ok)
	migrator := conn.GetClient().Migrator()
	assert.True(t, migrator.HasTable(store.TableDynamic))
	assert.True(t, migrator.HasTable(store.TableStatic))
}

func TestAppPurgesExpiredRows(t *testing.T) {
	kit := testkit.NewKit(t)
	app, err := New(kit.Ctx, newTestConfig(DriverMemory), WithLogger(kit.Logger), WithClock(kit.Clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	_, err = app.dynamic.Put(kit.Ctx, "gone", registry.DynamicAnnouncement{
		Environment: "testing", Pool: "general",
		Services: []registry.ServiceAnnouncement{{ID: "x", Type: "t"}},
	})
	require.NoError(t, err)
	mem := app.backend.purgers[0].(memoryPurger).m
	require.Equal(t, 1, mem.Len())

	kit.Clock.Add(31 * time.Second)
	app.purge()
	assert.Equal(t, 0, mem.Len())
}
