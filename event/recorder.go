package event

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/metrics"
	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/xerrors"
)

const metricEvents = "discovery_events_total"

const labelType = "type"

// Recorder 过滤并投递审计事件，可被多个 goroutine 并发使用
type Recorder struct {
	enabled   map[Type]struct{}
	publisher Publisher
	logger    clog.Logger
	clock     clock.Clock
	published metrics.Counter
}

// NewRecorder 创建 Recorder，enabled 的格式见 ParseTypes
func NewRecorder(publisher Publisher, enabled string, opts ...Option) (*Recorder, error) {
	if publisher == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "event: publisher is required")
	}
	types, err := ParseTypes(enabled)
	if err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard(), clock: clock.New()}
	for _, opt := range opts {
		opt(o)
	}
	published, err := o.meter.Counter(metricEvents, "审计事件投递次数")
	if err != nil {
		return nil, xerrors.Wrap(err, "event: create counter")
	}

	return &Recorder{
		enabled:   types,
		publisher: publisher,
		logger:    o.logger,
		clock:     o.clock,
		published: published,
	}, nil
}

// Enabled 报告该类型是否需要记录
func (r *Recorder) Enabled(t Type) bool {
	if r == nil {
		return false
	}
	_, ok := r.enabled[t]
	return ok
}

// Begin 返回请求开始的时刻，配合 Record 计算耗时
func (r *Recorder) Begin() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.clock.Now()
}

// Record 补全 Timestamp 和 DurationMillis 后投递，start 来自 Begin
func (r *Recorder) Record(ctx context.Context, start time.Time, e Event) {
	if !r.Enabled(e.Type) {
		return
	}
	r.stamp(start, &e)
	r.publish(ctx, &e)
}

// RecordDynamicAnnouncement 为公告中的每个服务投递一条事件
func (r *Recorder) RecordDynamicAnnouncement(ctx context.Context, start time.Time, base Event, services []registry.ServiceAnnouncement) {
	if !r.Enabled(DynamicAnnouncement) {
		return
	}
	base.Type = DynamicAnnouncement
	r.stamp(start, &base)
	for _, s := range services {
		e := base
		e.ServiceID = s.ID
		e.ServiceType = s.Type
		e.Properties = s.Properties
		r.publish(ctx, &e)
	}
}

func (r *Recorder) stamp(start time.Time, e *Event) {
	now := r.clock.Now()
	e.Timestamp = now
	if !start.IsZero() {
		e.DurationMillis = now.Sub(start).Milliseconds()
	}
}

func (r *Recorder) publish(ctx context.Context, e *Event) {
	err := r.publisher.Publish(ctx, e)
	r.published.Inc(ctx,
		metrics.L(labelType, string(e.Type)),
		metrics.L(metrics.LabelOutcome, metrics.Outcome(err)))
	if err != nil {
		r.logger.WarnContext(ctx, "publish event failed",
			clog.String("type", string(e.Type)),
			clog.Error(err))
	}
}
