package event_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ceyewan/discovery/event"
	"github.com/ceyewan/discovery/testkit"
)

func TestNATSPublisher(t *testing.T) {
	conn := testkit.NewNATSConn(t)
	subject := "discovery.events." + testkit.NewID()

	received := make(chan *nats.Msg, 1)
	sub, err := conn.ChanSubscribe(subject, received)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	require.NoError(t, conn.Flush())

	p, err := event.NewNATSPublisher(conn, subject)
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), &event.Event{
		Type:      event.StaticAnnouncement,
		Success:   true,
		ServiceID: "svc-1",
	}))

	select {
	case msg := <-received:
		var got event.Event
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, event.StaticAnnouncement, got.Type)
		assert.Equal(t, "svc-1", got.ServiceID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestKafkaPublisher(t *testing.T) {
	cfg := testkit.NewKafkaContainerConfig(t)
	topic := "discovery-events-" + testkit.NewID()

	producer, err := kgo.NewClient(kgo.SeedBrokers(cfg.Seed...), kgo.AllowAutoTopicCreation())
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	p, err := event.NewKafkaPublisher(producer, topic, testkit.NewLogger())
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), &event.Event{
		Type:        event.ServiceQuery,
		Success:     true,
		ServiceType: "storage",
		ResultCount: 2,
	}))
	ctx := testkit.NewContext(t, 30*time.Second)
	require.NoError(t, p.Flush(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Seed...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var got event.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, event.ServiceQuery, got.Type)
	assert.Equal(t, "ServiceQuery", string(records[0].Key))
	assert.Equal(t, 2, got.ResultCount)
}

func TestPublisherValidation(t *testing.T) {
	_, err := event.NewNATSPublisher(nil, "x")
	assert.Error(t, err)
	_, err = event.NewKafkaPublisher(nil, "x", nil)
	assert.Error(t, err)
}
