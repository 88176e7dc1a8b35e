package registry_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/testkit"
)

// noTTL 丢弃写入时的 TTL，模拟后端物理过期滞后于逻辑过期
type noTTL struct {
	store.RowStore
}

func (n noTTL) WriteRow(ctx context.Context, key string, value []byte, writeTime int64, _ time.Duration) error {
	return n.RowStore.WriteRow(ctx, key, value, writeTime, 0)
}

// brokenStore 所有操作都失败
type brokenStore struct{}

var errBackendDown = errors.New("backend down")

func (brokenStore) WriteRow(context.Context, string, []byte, int64, time.Duration) error {
	return errBackendDown
}
func (brokenStore) DeleteRow(context.Context, string, int64) error { return errBackendDown }
func (brokenStore) ReadLatest(context.Context, string) (*store.Row, error) {
	return nil, errBackendDown
}
func (brokenStore) ScanRange(context.Context, string, int) ([]store.Row, error) {
	return nil, errBackendDown
}

// switchable 可在运行中切换到故障状态
type switchable struct {
	store.RowStore
	broken bool
}

func (s *switchable) ScanRange(ctx context.Context, start string, limit int) ([]store.Row, error) {
	if s.broken {
		return nil, errBackendDown
	}
	return s.RowStore.ScanRange(ctx, start, limit)
}

func newDynamic(t *testing.T, kit *testkit.Kit, rows store.RowStore, cfg *registry.Config) *registry.DynamicStore {
	t.Helper()
	d, err := registry.NewDynamicStore(rows, cfg,
		registry.WithLogger(kit.Logger),
		registry.WithMeter(kit.Meter),
		registry.WithClock(kit.Clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newStatic(t *testing.T, kit *testkit.Kit, rows store.RowStore, cfg *registry.Config) *registry.StaticStore {
	t.Helper()
	s, err := registry.NewStaticStore(rows, cfg,
		registry.WithLogger(kit.Logger),
		registry.WithMeter(kit.Meter),
		registry.WithClock(kit.Clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func announcement(pool string, services ...registry.ServiceAnnouncement) registry.DynamicAnnouncement {
	return registry.DynamicAnnouncement{
		Environment: "testing",
		Pool:        pool,
		Location:    "/dc1/rack1",
		Services:    services,
	}
}

func svc(id, typ string, props map[string]string) registry.ServiceAnnouncement {
	return registry.ServiceAnnouncement{ID: id, Type: typ, Properties: props}
}

func ids(services []registry.Service) []string {
	out := make([]string, 0, len(services))
	for _, s := range services {
		out = append(out, s.ID)
	}
	sort.Strings(out)
	return out
}
