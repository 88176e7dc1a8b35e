package bootstrap

import (
	"context"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/connector"
	"github.com/ceyewan/discovery/event"
	"github.com/ceyewan/discovery/metrics"
)

// eventSink 审计事件的投递链路及其清理函数
type eventSink struct {
	recorder *event.Recorder
	closers  []func(context.Context) error
}

func openEvents(ctx context.Context, cfg *EventsConfig, logger clog.Logger, meter metrics.Meter) (*eventSink, error) {
	sink := &eventSink{}
	connOpts := []connector.Option{connector.WithLogger(logger), connector.WithMeter(meter)}

	var publisher event.Publisher
	switch cfg.Driver {
	case event.DriverNATS:
		conn, err := connector.NewNATS(&cfg.NATS, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		sink.closers = append(sink.closers, func(context.Context) error { return conn.Close() })
		if publisher, err = event.NewNATSPublisher(conn.GetClient(), cfg.Subject); err != nil {
			return nil, sink.closeOnError(ctx, err)
		}

	case event.DriverKafka:
		conn, err := connector.NewKafka(&cfg.Kafka, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		sink.closers = append(sink.closers, func(context.Context) error { return conn.Close() })
		kp, err := event.NewKafkaPublisher(conn.GetClient(), cfg.Subject, logger)
		if err != nil {
			return nil, sink.closeOnError(ctx, err)
		}
		// 先刷出缓冲再关闭连接
		sink.closers = append([]func(context.Context) error{kp.Flush}, sink.closers...)
		publisher = kp

	default:
		publisher = event.NewLogPublisher(logger)
	}

	recorder, err := event.NewRecorder(publisher, cfg.Enabled, event.WithLogger(logger), event.WithMeter(meter))
	if err != nil {
		return nil, sink.closeOnError(ctx, err)
	}
	sink.recorder = recorder
	return sink, nil
}

func (s *eventSink) close(ctx context.Context) error {
	var errs []error
	for _, fn := range s.closers {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return combine(errs)
}

func (s *eventSink) closeOnError(ctx context.Context, err error) error {
	return combine([]error{err, s.close(ctx)})
}
