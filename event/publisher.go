package event

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/trace"
	"github.com/ceyewan/discovery/xerrors"
)

// Publisher 事件投递目标
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}

// LogPublisher 把事件写入日志
type LogPublisher struct {
	logger clog.Logger
}

// NewLogPublisher 创建日志投递器
func NewLogPublisher(logger clog.Logger) *LogPublisher {
	if logger == nil {
		logger = clog.Discard()
	}
	return &LogPublisher{logger: logger.WithNamespace("audit")}
}

func (p *LogPublisher) Publish(ctx context.Context, e *Event) error {
	fields := []clog.Field{
		clog.String("type", string(e.Type)),
		clog.Time("timestamp", e.Timestamp),
		clog.Int64("duration_ms", e.DurationMillis),
		clog.Bool("success", e.Success),
	}
	add := func(k, v string) {
		if v != "" {
			fields = append(fields, clog.String(k, v))
		}
	}
	add("remote_address", e.RemoteAddress)
	add("environment", e.Environment)
	add("node_id", e.NodeID)
	add("service_id", e.ServiceID)
	add("service_type", e.ServiceType)
	add("pool", e.Pool)
	add("location", e.Location)
	if len(e.Properties) > 0 {
		fields = append(fields, clog.Any("properties", e.Properties))
	}
	if e.Type == ServiceQuery || e.Type == StaticList {
		fields = append(fields, clog.Int("result_count", e.ResultCount))
	}
	p.logger.InfoContext(ctx, "audit event", fields...)
	return nil
}

// NATSPublisher 以 JSON 发布到固定 subject
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher 创建 NATS 投递器，连接由调用方管理
func NewNATSPublisher(conn *nats.Conn, subject string) (*NATSPublisher, error) {
	if conn == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "event: nats connection is nil")
	}
	if subject == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "event: nats subject is required")
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, e *Event) (err error) {
	_, span, headers := trace.StartPublishSpan(ctx, trace.MessagingSystemNATS, p.subject)
	defer func() {
		trace.MarkSpanError(span, err)
		span.End()
	}()

	data, err := json.Marshal(e)
	if err != nil {
		return xerrors.Wrap(err, "encode event")
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Set(k, v)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return xerrors.Wrapf(err, "publish to %s", p.subject)
	}
	return nil
}

// KafkaPublisher 异步写入 Kafka，按事件类型作为消息 key
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger clog.Logger
}

// NewKafkaPublisher 创建 Kafka 投递器，客户端由调用方管理
func NewKafkaPublisher(client *kgo.Client, topic string, logger clog.Logger) (*KafkaPublisher, error) {
	if client == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "event: kafka client is nil")
	}
	if topic == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "event: kafka topic is required")
	}
	if logger == nil {
		logger = clog.Discard()
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger.WithNamespace("event")}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return xerrors.Wrap(err, "encode event")
	}
	_, span, headers := trace.StartPublishSpan(ctx, trace.MessagingSystemKafka, p.topic)
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.Type),
		Value: data,
	}
	for k, v := range headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	// 请求结束后 ctx 会被取消，投递不能跟随请求的生命周期
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		trace.MarkSpanError(span, err)
		span.End()
		if err != nil {
			p.logger.Warn("produce event failed",
				clog.String("topic", r.Topic),
				clog.String("type", string(r.Key)),
				clog.Error(err))
		}
	})
	return nil
}

// Flush 等待缓冲中的事件全部发出
func (p *KafkaPublisher) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}
