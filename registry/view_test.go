package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/testkit"
)

type fixedSource []registry.Service

func (f fixedSource) GetAll() []registry.Service { return f }

func TestViewUnionWithoutDuplicates(t *testing.T) {
	shared := staticService("shared", "storage", "general")
	dynamic := fixedSource{shared, staticService("d1", "storage", "alt"), staticService("d2", "web", "general")}
	static := fixedSource{shared, staticService("s1", "storage", "general")}
	v := registry.NewView(dynamic, static)

	assert.Equal(t, []string{"d1", "d2", "s1", "shared"}, ids(v.GetAll()))
	assert.Equal(t, []string{"d1", "s1", "shared"}, ids(v.Get("storage")))
	assert.Equal(t, []string{"s1", "shared"}, ids(v.GetInPool("storage", "general")))
	assert.Empty(t, v.GetInPool("storage", "missing"))

	// 属性不同即为不同的服务
	changed := shared
	changed.Properties = map[string]string{"http": "http://elsewhere"}
	v = registry.NewView(fixedSource{shared}, fixedSource{changed})
	assert.Len(t, v.GetAll(), 2)
}

func TestViewTracksBothStores(t *testing.T) {
	kit := testkit.NewKit(t)
	d := newDynamic(t, kit, store.NewMemory(store.WithClock(kit.Clock)), nil)
	s := newStatic(t, kit, store.NewMemory(store.WithClock(kit.Clock)), nil)
	v := registry.NewView(d, s)

	_, err := d.Put(kit.Ctx, "node-a", announcement("general", svc("dyn", "storage", nil)))
	require.NoError(t, err)
	require.NoError(t, s.Put(kit.Ctx, staticService("stat", "storage", "general")))
	assert.Empty(t, v.GetAll())

	require.NoError(t, d.Reload(kit.Ctx))
	require.NoError(t, s.Reload(kit.Ctx))
	assert.Equal(t, []string{"dyn", "stat"}, ids(v.GetInPool("storage", "general")))

	for _, got := range v.GetInPool("storage", "general") {
		assert.Subset(t, ids(v.GetAll()), []string{got.ID})
	}
}

func TestServiceKeyAndEqual(t *testing.T) {
	a := registry.Service{ID: "1", Type: "t", Pool: "p", Properties: map[string]string{"a": "1", "b": "2"}}
	b := registry.Service{ID: "1", Type: "t", Pool: "p", Properties: map[string]string{"b": "2", "a": "1"}}
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())

	b.NodeID = "node"
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Key(), b.Key())

	// 字段边界不能互相混淆
	c := registry.Service{ID: "1t", Type: ""}
	d := registry.Service{ID: "1", Type: "t"}
	assert.NotEqual(t, c.Key(), d.Key())
}

func TestUnionKeepsServicesWithSeparatorBytes(t *testing.T) {
	tests := []struct {
		name string
		a, b registry.Service
	}{
		{
			"nul inside fields",
			registry.Service{ID: "a\x00b", Type: "t", Pool: "p", Location: "l"},
			registry.Service{ID: "a", NodeID: "b", Pool: "t", Location: "p\x00l"},
		},
		{
			"location mimics a property",
			registry.Service{ID: "a", Type: "t", Pool: "p", Location: "l\x00k\x01v"},
			registry.Service{ID: "a", Type: "t", Pool: "p", Location: "l", Properties: map[string]string{"k": "v"}},
		},
		{
			"property boundaries",
			registry.Service{ID: "a", Properties: map[string]string{"k:1": "v"}},
			registry.Service{ID: "a", Properties: map[string]string{"k": "1:v"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.False(t, tt.a.Equal(tt.b))
			assert.NotEqual(t, tt.a.Key(), tt.b.Key())
			assert.Len(t, registry.Union([]registry.Service{tt.a}, []registry.Service{tt.b}), 2)
			assert.Len(t, registry.Union([]registry.Service{tt.a, tt.a}, []registry.Service{tt.b, tt.b}), 2)
		})
	}
}

func TestAnnouncementValidate(t *testing.T) {
	valid := announcement("general", svc("s1", "storage", nil))
	assert.NoError(t, valid.Validate())

	cases := map[string]registry.DynamicAnnouncement{
		"environment": {Pool: "general", Services: []registry.ServiceAnnouncement{}},
		"pool":        {Environment: "testing", Services: []registry.ServiceAnnouncement{}},
		"services":    {Environment: "testing", Pool: "general"},
		"service id":  announcement("general", svc("", "storage", nil)),
		"type":        announcement("general", svc("s1", "", nil)),
	}
	for name, ann := range cases {
		assert.ErrorIs(t, ann.Validate(), registry.ErrInvalidAnnouncement, name)
	}

	static := registry.StaticAnnouncement{Environment: "testing", Type: "storage", Pool: "general"}
	assert.NoError(t, static.Validate())
	static.Type = ""
	assert.ErrorIs(t, static.Validate(), registry.ErrInvalidAnnouncement)
}
