package event_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/event"
	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/testkit"
	"github.com/ceyewan/discovery/xerrors"
)

type capture struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (c *capture) Publish(_ context.Context, e *event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, *e)
	return c.err
}

func (c *capture) all() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

func TestParseTypes(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []event.Type
		wantErr bool
	}{
		{name: "empty", in: "", want: nil},
		{name: "all", in: " * ", want: event.AllTypes()},
		{name: "comma", in: "DynamicAnnouncement,ServiceQuery", want: []event.Type{event.DynamicAnnouncement, event.ServiceQuery}},
		{name: "mixed separators", in: "StaticList, StaticDelete  DynamicDelete", want: []event.Type{event.StaticList, event.StaticDelete, event.DynamicDelete}},
		{name: "unknown", in: "DynamicAnnouncement, Bogus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := event.ParseTypes(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, len(tt.want))
			for _, typ := range tt.want {
				assert.Contains(t, got, typ)
			}
		})
	}
}

func TestRecorderFilters(t *testing.T) {
	kit := testkit.NewKit(t)
	pub := &capture{}
	r, err := event.NewRecorder(pub, "ServiceQuery", event.WithClock(kit.Clock), event.WithMeter(kit.Meter))
	require.NoError(t, err)

	assert.True(t, r.Enabled(event.ServiceQuery))
	assert.False(t, r.Enabled(event.StaticList))

	start := r.Begin()
	kit.Clock.Add(25 * time.Millisecond)
	r.Record(kit.Ctx, start, event.Event{Type: event.ServiceQuery, Success: true, ServiceType: "storage", ResultCount: 3})
	r.Record(kit.Ctx, start, event.Event{Type: event.StaticList, Success: true})

	events := pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, event.ServiceQuery, events[0].Type)
	assert.Equal(t, int64(25), events[0].DurationMillis)
	assert.Equal(t, kit.Clock.Now(), events[0].Timestamp)
	assert.Equal(t, 3, events[0].ResultCount)
}

func TestRecorderFansOutAnnouncement(t *testing.T) {
	kit := testkit.NewKit(t)
	pub := &capture{}
	r, err := event.NewRecorder(pub, "*", event.WithClock(kit.Clock))
	require.NoError(t, err)

	services := []registry.ServiceAnnouncement{
		{ID: "s1", Type: "storage", Properties: map[string]string{"http": "h1"}},
		{ID: "s2", Type: "web"},
	}
	r.RecordDynamicAnnouncement(kit.Ctx, r.Begin(), event.Event{
		Success:     true,
		Environment: "testing",
		NodeID:      "node-a",
		Pool:        "general",
		Location:    "/somewhere/node-a",
	}, services)

	events := pub.all()
	require.Len(t, events, 2)
	for i, e := range events {
		assert.Equal(t, event.DynamicAnnouncement, e.Type)
		assert.Equal(t, "node-a", e.NodeID)
		assert.Equal(t, "general", e.Pool)
		assert.Equal(t, services[i].ID, e.ServiceID)
		assert.Equal(t, services[i].Type, e.ServiceType)
	}
	assert.Equal(t, "h1", events[0].Properties["http"])
}

func TestRecorderSwallowsPublishErrors(t *testing.T) {
	pub := &capture{err: errors.New("broker down")}
	r, err := event.NewRecorder(pub, "*", event.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r.Record(context.Background(), r.Begin(), event.Event{Type: event.DynamicDelete})
	})
	assert.Len(t, pub.all(), 1)
}

func TestNilRecorder(t *testing.T) {
	var r *event.Recorder
	assert.False(t, r.Enabled(event.ServiceQuery))
	assert.NotPanics(t, func() {
		r.Record(context.Background(), r.Begin(), event.Event{Type: event.ServiceQuery})
		r.RecordDynamicAnnouncement(context.Background(), time.Time{}, event.Event{}, nil)
	})
}

func TestNewRecorderValidation(t *testing.T) {
	_, err := event.NewRecorder(nil, "*")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = event.NewRecorder(&capture{}, "NotAType")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger, err := clog.New(&clog.Config{Level: "info", Format: "json", Output: "stdout"}, clog.WithWriter(&buf))
	require.NoError(t, err)

	p := event.NewLogPublisher(logger)
	require.NoError(t, p.Publish(context.Background(), &event.Event{
		Type:        event.StaticDelete,
		Success:     true,
		ServiceID:   "abc",
		Environment: "testing",
	}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "StaticDelete", line["type"])
	assert.Equal(t, "abc", line["service_id"])
	assert.Equal(t, "testing", line["environment"])
	assert.NotContains(t, line, "node_id")
}

func TestConfig(t *testing.T) {
	var cfg event.Config
	cfg.SetDefaults()
	assert.Equal(t, event.DriverLog, cfg.Driver)
	assert.Equal(t, "discovery.events", cfg.Subject)
	require.NoError(t, cfg.Validate())

	cfg.Driver = "smoke-signal"
	assert.ErrorIs(t, cfg.Validate(), xerrors.ErrInvalidInput)

	cfg = event.Config{Enabled: "Nope"}
	cfg.SetDefaults()
	assert.ErrorIs(t, cfg.Validate(), xerrors.ErrInvalidInput)
}
