package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbridge/internal/config"
	"sgbridge/internal/event"
	"sgbridge/internal/source"
)

const kafkaTestTopic = "shotgun_events_test"

func TestKafkaSource_DeliversParsedEvents(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, false, true)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	produceEvent(t, ctx, infra.KafkaBrokers, createTaskChangeEvent(801, 1, 11793))

	src, err := source.New(config.SourceConfig{
		Type: "kafka",
		Kafka: config.KafkaConfig{
			Brokers: infra.KafkaBrokers,
			GroupID: "sgbridge-test",
			Topic:   kafkaTestTopic,
		},
	}, nil, nil, nil, createTestLogger())
	require.NoError(t, err)
	defer src.Close()

	received := make(chan *event.Event, 1)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- src.Run(runCtx, func(ctx context.Context, e *event.Event) error {
			select {
			case received <- e:
			default:
			}
			return nil
		})
	}()

	select {
	case e := <-received:
		assert.Equal(t, int64(801), e.ID)
		assert.Equal(t, "Shotgun_Task_Change", e.EventType)
		require.NotNil(t, e.Project)
		assert.Equal(t, int64(1), e.Project.ID)

		entityType, entityID, ok := e.EntityMeta()
		require.True(t, ok)
		assert.Equal(t, "Task", entityType)
		assert.Equal(t, int64(11793), entityID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event from kafka source")
	}

	stop()
	err = <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKafkaSource_SkipsUnparsableMessages(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, false, true)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	produceRaw(t, ctx, infra.KafkaBrokers, []byte(`{"no_event_type": true}`))
	produceEvent(t, ctx, infra.KafkaBrokers, createTaskChangeEvent(802, 2, 11794))

	src, err := source.New(config.SourceConfig{
		Type: "kafka",
		Kafka: config.KafkaConfig{
			Brokers: infra.KafkaBrokers,
			GroupID: "sgbridge-test-skip",
			Topic:   kafkaTestTopic,
		},
	}, nil, nil, nil, createTestLogger())
	require.NoError(t, err)
	defer src.Close()

	received := make(chan *event.Event, 2)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		src.Run(runCtx, func(ctx context.Context, e *event.Event) error {
			received <- e
			return nil
		})
	}()

	select {
	case e := <-received:
		// The malformed message is committed and skipped; only the valid
		// event reaches the handler.
		assert.Equal(t, int64(802), e.ID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event from kafka source")
	}
}

func produceEvent(t *testing.T, ctx context.Context, brokers []string, e *event.Event) {
	t.Helper()

	payload, err := json.Marshal(e)
	require.NoError(t, err)
	produceRaw(t, ctx, brokers, payload)
}

func produceRaw(t *testing.T, ctx context.Context, brokers []string, payload []byte) {
	t.Helper()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  kafkaTestTopic,
		AllowAutoTopicCreation: true,
		Balancer:               &kafka.LeastBytes{},
	}
	defer writer.Close()

	// Topic creation can race the first write on a fresh broker.
	var writeErr error
	for attempt := 0; attempt < 5; attempt++ {
		writeErr = writer.WriteMessages(ctx, kafka.Message{Value: payload})
		if writeErr == nil {
			return
		}
		time.Sleep(time.Second)
	}
	t.Fatalf("failed to produce kafka message: %v", writeErr)
}
