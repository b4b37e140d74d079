package source

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/pkg/logging"
	"sgbridge/pkg/metrics"
	"sgbridge/pkg/tracing"
)

// KafkaSource consumes events from a topic fed by an external producer.
// Messages are fetched and committed one at a time so delivery stays serial,
// matching the event-daemon model the handler pipeline assumes.
type KafkaSource struct {
	cfg    config.KafkaConfig
	reader *kafka.Reader
	logger logger.Logger
}

func NewKafkaSource(cfg config.KafkaConfig, log logger.Logger) *KafkaSource {
	return &KafkaSource{
		cfg:    cfg,
		logger: log,
	}
}

func (s *KafkaSource) Run(ctx context.Context, handler Handler) error {
	s.logger.Infow("Creating Kafka reader",
		"topic", s.cfg.Topic,
		"brokers", s.cfg.Brokers,
		"group_id", s.cfg.GroupID,
	)

	s.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.cfg.Brokers,
		GroupID:  s.cfg.GroupID,
		Topic:    s.cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  constants.KafkaMaxWait,
	})

	runCtx := logging.WithServiceName(ctx, constants.ServiceNameTrigger)
	s.logger.InfowCtx(runCtx, "Started consuming", "topic", s.cfg.Topic)

	for {
		start := time.Now()
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.InfowCtx(runCtx, "Stopped consuming",
					"topic", s.cfg.Topic,
					"reason", "context canceled",
				)
				return ctx.Err()
			}
			s.logger.ErrorwCtx(runCtx, "Error fetching kafka message",
				"error", err,
				"topic", s.cfg.Topic,
			)
			time.Sleep(time.Second)
			continue
		}

		metrics.IncSourceEventsRead(constants.SourceTypeKafka)
		metrics.ObserveSourceReadDuration(constants.SourceTypeKafka, time.Since(start))

		e, err := event.Parse(m.Value)
		if err != nil {
			s.logger.ErrorwCtx(runCtx, "Failed to parse event, skipping",
				"error", err,
				"topic", s.cfg.Topic,
			)
			s.commit(ctx, m)
			continue
		}

		msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "source.consume", m.Headers)
		msgCtx = logging.WithServiceName(msgCtx, constants.ServiceNameTrigger)
		msgCtx = logging.WithEventID(msgCtx, e.ID)

		// Handler failures are not retried: the daemon logs and moves on,
		// so the message is committed regardless.
		if err := handler(msgCtx, e); err != nil {
			s.logger.ErrorwCtx(msgCtx, "Failed to process event",
				"error", err,
				"event_id", e.Key(),
			)
		}
		span.End()

		s.commit(ctx, m)
	}
}

func (s *KafkaSource) commit(ctx context.Context, m kafka.Message) {
	if err := s.reader.CommitMessages(ctx, m); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to commit message",
			"error", err,
			"topic", s.cfg.Topic,
		)
	}
}

func (s *KafkaSource) Close() error {
	if s.reader != nil {
		return s.reader.Close()
	}
	return nil
}
