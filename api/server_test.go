package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/discovery/api"
	"github.com/ceyewan/discovery/event"
	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/testkit"
	"github.com/ceyewan/discovery/xerrors"
)

type recorded struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorded) Publish(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *recorded) ofType(t event.Type) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// failingRows 写操作全部失败
type failingRows struct {
	store.RowStore
}

func (failingRows) WriteRow(context.Context, string, []byte, int64, time.Duration) error {
	return errors.New("connection refused")
}

type fixture struct {
	kit     *testkit.Kit
	dynamic *registry.DynamicStore
	static  *registry.StaticStore
	server  *api.Server
	events  *recorded
}

func newFixture(t *testing.T, cfg *api.Config, dynamicRows store.RowStore) *fixture {
	t.Helper()
	kit := testkit.NewKit(t)
	if dynamicRows == nil {
		dynamicRows = store.NewMemory(store.WithClock(kit.Clock))
	}
	opts := []registry.Option{registry.WithLogger(kit.Logger), registry.WithClock(kit.Clock)}
	d, err := registry.NewDynamicStore(dynamicRows, nil, opts...)
	require.NoError(t, err)
	s, err := registry.NewStaticStore(store.NewMemory(store.WithClock(kit.Clock)), nil, opts...)
	require.NoError(t, err)

	events := &recorded{}
	recorder := xerrors.Must(event.NewRecorder(events, "*", event.WithClock(kit.Clock)))

	srv, err := api.New(api.Deps{
		Environment: "testing",
		Dynamic:     d,
		Static:      s,
		View:        registry.NewView(d, s),
		Recorder:    recorder,
	}, cfg, api.WithLogger(kit.Logger), api.WithMeter(kit.Meter))
	require.NoError(t, err)

	return &fixture{kit: kit, dynamic: d, static: s, server: srv, events: events}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func (f *fixture) reload(t *testing.T) {
	t.Helper()
	require.NoError(t, f.dynamic.Reload(f.kit.Ctx))
	require.NoError(t, f.static.Reload(f.kit.Ctx))
}

func decodeServices(t *testing.T, w *httptest.ResponseRecorder) registry.Services {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out registry.Services
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func dynamicBody(env string) map[string]any {
	return map[string]any{
		"environment": env,
		"pool":        "general",
		"services": []map[string]any{
			{"id": "s1", "type": "storage", "properties": map[string]string{"http": "http://a:8080"}},
			{"id": "s2", "type": "web"},
		},
	}
}

func TestDynamicAnnouncementLifecycle(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(t, http.MethodPut, "/v1/announcement/node-a", dynamicBody("testing"))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	f.reload(t)

	all := decodeServices(t, f.do(t, http.MethodGet, "/v1/service", nil))
	assert.Equal(t, "testing", all.Environment)
	assert.Len(t, all.Services, 2)

	storage := decodeServices(t, f.do(t, http.MethodGet, "/v1/service/storage", nil))
	require.Len(t, storage.Services, 1)
	got := storage.Services[0]
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "node-a", got.NodeID)
	assert.Equal(t, "/somewhere/node-a", got.Location)
	assert.Equal(t, "http://a:8080", got.Properties["http"])

	assert.Len(t, decodeServices(t, f.do(t, http.MethodGet, "/v1/service/web/general", nil)).Services, 1)
	assert.Empty(t, decodeServices(t, f.do(t, http.MethodGet, "/v1/service/web/other", nil)).Services)

	// 每个服务一条公告事件
	announced := f.events.ofType(event.DynamicAnnouncement)
	require.Len(t, announced, 2)
	assert.True(t, announced[0].Success)
	assert.Equal(t, "node-a", announced[0].NodeID)

	w = f.do(t, http.MethodDelete, "/v1/announcement/node-a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodDelete, "/v1/announcement/node-a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	deletes := f.events.ofType(event.DynamicDelete)
	require.Len(t, deletes, 2)
	assert.True(t, deletes[0].Success)
	assert.False(t, deletes[1].Success)

	f.reload(t)
	assert.Empty(t, decodeServices(t, f.do(t, http.MethodGet, "/v1/service", nil)).Services)
}

func TestDynamicAnnouncementExpires(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPut, "/v1/announcement/node-a", dynamicBody("testing")).Code)
	f.kit.Clock.Add(31 * time.Second)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/v1/announcement/node-a", nil).Code)
	f.reload(t)
	assert.Empty(t, decodeServices(t, f.do(t, http.MethodGet, "/v1/service", nil)).Services)
}

func TestDynamicAnnouncementKeepsLocation(t *testing.T) {
	f := newFixture(t, nil, nil)

	body := dynamicBody("testing")
	body["location"] = "/dc1/rack7"
	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPut, "/v1/announcement/node-a", body).Code)
	f.reload(t)

	services := decodeServices(t, f.do(t, http.MethodGet, "/v1/service/web", nil)).Services
	require.Len(t, services, 1)
	assert.Equal(t, "/dc1/rack7", services[0].Location)
}

func TestEnvironmentMismatch(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(t, http.MethodPut, "/v1/announcement/node-a", dynamicBody("production"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Environment mismatch. Expected: testing, Provided: production", w.Body.String())

	w = f.do(t, http.MethodPost, "/v1/announcement/static", map[string]any{
		"environment": "production", "type": "storage", "pool": "general",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Environment mismatch. Expected: testing, Provided: production", w.Body.String())

	// 失败的请求同样产生事件
	announced := f.events.ofType(event.DynamicAnnouncement)
	require.Len(t, announced, 2)
	assert.False(t, announced[0].Success)
	static := f.events.ofType(event.StaticAnnouncement)
	require.Len(t, static, 1)
	assert.False(t, static[0].Success)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, nil, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"malformed json", http.MethodPut, "/v1/announcement/node-a", `{"environment":`},
		{"missing pool", http.MethodPut, "/v1/announcement/node-a", map[string]any{"environment": "testing", "services": []any{}}},
		{"service without type", http.MethodPut, "/v1/announcement/node-a", map[string]any{
			"environment": "testing", "pool": "general", "services": []map[string]string{{"id": "x"}},
		}},
		{"static missing type", http.MethodPost, "/v1/announcement/static", map[string]any{"environment": "testing", "pool": "general"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestStaticAnnouncementLifecycle(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(t, http.MethodPost, "/v1/announcement/static", map[string]any{
		"environment": "testing",
		"type":        "storage",
		"pool":        "general",
		"properties":  map[string]string{"http": "http://static:80"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created registry.Service
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "/somewhere/"+created.ID, created.Location)
	assert.Empty(t, created.NodeID)
	assert.True(t, strings.HasSuffix(w.Header().Get("Location"), "/v1/announcement/static/"+created.ID))

	f.reload(t)
	listed := decodeServices(t, f.do(t, http.MethodGet, "/v1/announcement/static", nil))
	assert.Equal(t, "testing", listed.Environment)
	require.Len(t, listed.Services, 1)
	assert.True(t, created.Equal(listed.Services[0]))

	// 合并视图同时返回静态服务
	byPool := decodeServices(t, f.do(t, http.MethodGet, "/v1/service/storage/general", nil))
	require.Len(t, byPool.Services, 1)
	assert.Equal(t, created.ID, byPool.Services[0].ID)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/v1/announcement/static/"+created.ID, nil).Code)
	// 删除不存在的静态服务同样成功
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/v1/announcement/static/"+created.ID, nil).Code)
	f.reload(t)
	assert.Empty(t, decodeServices(t, f.do(t, http.MethodGet, "/v1/announcement/static", nil)).Services)

	created2 := f.events.ofType(event.StaticAnnouncement)
	require.Len(t, created2, 1)
	assert.Equal(t, created.ID, created2[0].ServiceID)
	assert.Len(t, f.events.ofType(event.StaticDelete), 2)
	assert.Len(t, f.events.ofType(event.StaticList), 2)
}

func TestStoreUnavailable(t *testing.T) {
	kit := testkit.NewKit(t)
	f := newFixture(t, nil, failingRows{store.NewMemory(store.WithClock(kit.Clock))})

	w := f.do(t, http.MethodPut, "/v1/announcement/node-a", dynamicBody("testing"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UNAVAILABLE", body["code"])
}

func TestWriteRateLimit(t *testing.T) {
	f := newFixture(t, &api.Config{WriteRateLimit: 0.001, WriteBurst: 1}, nil)

	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPut, "/v1/announcement/node-a", dynamicBody("testing")).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPut, "/v1/announcement/node-a", dynamicBody("testing")).Code)

	// 读接口不受写限流影响
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/service", nil).Code)
}

func TestQueryEventsAndStats(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPut, "/v1/announcement/node-a", dynamicBody("testing")).Code)
	f.reload(t)

	f.do(t, http.MethodGet, "/v1/service", nil)
	f.do(t, http.MethodGet, "/v1/service/storage", nil)
	f.do(t, http.MethodGet, "/v1/service/storage/general", nil)

	queries := f.events.ofType(event.ServiceQuery)
	require.Len(t, queries, 3)
	assert.Equal(t, 2, queries[0].ResultCount)
	assert.Equal(t, "storage", queries[1].ServiceType)
	assert.Equal(t, "general", queries[2].Pool)

	w := f.do(t, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report api.StatsReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, int64(1), report.Query["allServices"].Count)
	assert.Equal(t, int64(1), report.Query["byType"].Count)
	assert.Equal(t, int64(1), report.Query["byTypeAndPool"].Count)
	assert.Equal(t, int64(1), report.Dynamic["put"].Count)
	assert.Equal(t, int64(1), report.Dynamic["loadAll"].Count)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v2/nothing", nil).Code)
}

func TestNewValidation(t *testing.T) {
	_, err := api.New(api.Deps{}, nil)
	assert.Error(t, err)

	f := newFixture(t, nil, nil)
	_, err = api.New(api.Deps{
		Environment: "testing",
		Dynamic:     f.dynamic,
		Static:      f.static,
		View:        registry.NewView(f.dynamic, f.static),
	}, &api.Config{WriteRateLimit: -1})
	assert.Error(t, err)
}
