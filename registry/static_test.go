package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/testkit"
	"github.com/ceyewan/discovery/xerrors"
)

func staticService(id, typ, pool string) registry.Service {
	return registry.Service{
		ID:         id,
		Type:       typ,
		Pool:       pool,
		Location:   "/static/" + id,
		Properties: map[string]string{"http": "http://" + id},
	}
}

func TestStaticPutReloadDelete(t *testing.T) {
	kit := testkit.NewKit(t)
	s := newStatic(t, kit, store.NewMemory(store.WithClock(kit.Clock)), nil)

	require.NoError(t, s.Put(kit.Ctx, staticService("a", "storage", "general")))
	require.NoError(t, s.Put(kit.Ctx, staticService("b", "web", "general")))
	assert.Empty(t, s.GetAll())

	require.NoError(t, s.Reload(kit.Ctx))
	assert.Equal(t, []string{"a", "b"}, ids(s.GetAll()))
	assert.Equal(t, []string{"a"}, ids(s.Get("storage")))
	assert.Equal(t, []string{"b"}, ids(s.GetInPool("web", "general")))
	assert.Equal(t, staticService("a", "storage", "general"), s.Get("storage")[0])

	require.NoError(t, s.Delete(kit.Ctx, "a"))
	require.NoError(t, s.Delete(kit.Ctx, "does-not-exist"))
	require.NoError(t, s.Reload(kit.Ctx))
	assert.Equal(t, []string{"b"}, ids(s.GetAll()))
	assert.Equal(t, int64(2), s.DeleteStats().Count())
}

func TestStaticSurvivesLongDelays(t *testing.T) {
	kit := testkit.NewKit(t)
	s := newStatic(t, kit, store.NewMemory(store.WithClock(kit.Clock)), nil)
	require.NoError(t, s.Put(kit.Ctx, staticService("a", "storage", "general")))

	for range 3 {
		kit.Clock.Add(365 * 24 * time.Hour)
		require.NoError(t, s.Reload(kit.Ctx))
		assert.Equal(t, []string{"a"}, ids(s.GetAll()))
	}
}

func TestStaticPersistsAcrossInstances(t *testing.T) {
	kit := testkit.NewKit(t)
	db, _ := testkit.NewPersistentSQLiteDB(t)
	rows, err := store.NewSQL(db, store.TableStatic)
	require.NoError(t, err)
	require.NoError(t, rows.Provision(kit.Ctx))

	first := newStatic(t, kit, rows, nil)
	require.NoError(t, first.Put(kit.Ctx, staticService("a", "storage", "general")))
	require.NoError(t, first.Close())

	second := newStatic(t, kit, rows, &registry.Config{Serializer: registry.SerializerJSON})
	require.NoError(t, second.Reload(kit.Ctx))
	assert.Equal(t, []string{"a"}, ids(second.GetAll()))
	assert.Empty(t, second.GetAll()[0].NodeID)
}

func TestStaticKeepsNodeID(t *testing.T) {
	kit := testkit.NewKit(t)
	rows := store.NewMemory()
	s := newStatic(t, kit, rows, nil)

	svc := staticService("a", "storage", "general")
	svc.NodeID = "node-1"
	require.NoError(t, s.Put(kit.Ctx, svc))
	require.NoError(t, s.Put(kit.Ctx, staticService("b", "storage", "general")))
	require.NoError(t, s.Reload(kit.Ctx))

	byID := make(map[string]registry.Service)
	for _, got := range s.GetAll() {
		byID[got.ID] = got
	}
	require.Len(t, byID, 2)
	assert.Equal(t, "node-1", byID["a"].NodeID)
	assert.True(t, svc.Equal(byID["a"]))
	assert.Empty(t, byID["b"].NodeID)
}

func TestStaticValidation(t *testing.T) {
	kit := testkit.NewKit(t)
	s := newStatic(t, kit, store.NewMemory(), nil)
	assert.True(t, xerrors.Is(s.Put(kit.Ctx, registry.Service{Type: "storage"}), registry.ErrInvalidAnnouncement))
	assert.True(t, xerrors.Is(s.Delete(kit.Ctx, ""), registry.ErrInvalidAnnouncement))

	broken := newStatic(t, kit, brokenStore{}, nil)
	err := broken.Put(kit.Ctx, staticService("a", "storage", "general"))
	assert.True(t, xerrors.Is(err, xerrors.ErrUnavailable))
}

func TestStaticStartAndClose(t *testing.T) {
	kit := testkit.NewKit(t)
	s := newStatic(t, kit, store.NewMemory(), &registry.Config{StaticRefreshInterval: 10 * time.Millisecond})
	require.NoError(t, s.Put(kit.Ctx, staticService("a", "storage", "general")))

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), registry.ErrAlreadyInitialized)
	assert.Eventually(t, func() bool { return len(s.GetAll()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close())
}
