package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// 消息语义属性
const (
	AttrMessagingSystem      = "messaging.system"
	AttrMessagingDestination = "messaging.destination"
	AttrMessagingOperation   = "messaging.operation"
)

const (
	MessagingSystemNATS  = "nats"
	MessagingSystemKafka = "kafka"
)

const tracerName = "github.com/ceyewan/discovery/trace"

// SpanNamePublish 发布 Span 的名称
func SpanNamePublish(destination string) string {
	if destination == "" {
		return "publish"
	}
	return "publish " + destination
}

// StartPublishSpan 启动生产者 Span，并返回需要随消息携带的传播头
func StartPublishSpan(ctx context.Context, system, destination string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span, map[string]string) {
	if ctx == nil {
		ctx = context.Background()
	}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, SpanNamePublish(destination),
		oteltrace.WithSpanKind(oteltrace.SpanKindProducer))
	span.SetAttributes(
		attribute.String(AttrMessagingSystem, system),
		attribute.String(AttrMessagingDestination, destination),
		attribute.String(AttrMessagingOperation, "publish"),
	)
	span.SetAttributes(attrs...)

	headers := map[string]string{}
	Inject(spanCtx, headers)
	return spanCtx, span, headers
}

// Inject 把 ctx 中的链路信息写入 headers
func Inject(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// Extract 从 headers 恢复链路信息
func Extract(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}

// MarkSpanError err 不为 nil 时记录错误并标记 Span 状态
func MarkSpanError(span oteltrace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
