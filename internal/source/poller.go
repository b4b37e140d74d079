package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/pkg/logging"
	"sgbridge/pkg/metrics"
	"sgbridge/pkg/retry"
)

// Watermark persists the id of the last dispatched event so a restarted
// poller resumes where it stopped instead of replaying the whole log.
type Watermark interface {
	Last(ctx context.Context) (int64, error)
	Advance(ctx context.Context, id int64) error
}

type RedisWatermark struct {
	client *redis.Client
}

func NewRedisWatermark(client *redis.Client) *RedisWatermark {
	return &RedisWatermark{client: client}
}

func (w *RedisWatermark) Last(ctx context.Context) (int64, error) {
	val, err := w.client.Get(ctx, constants.CacheKeyPollWatermark).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis GET failed: %w", err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid watermark value %q: %w", val, err)
	}
	return id, nil
}

func (w *RedisWatermark) Advance(ctx context.Context, id int64) error {
	if err := w.client.Set(ctx, constants.CacheKeyPollWatermark, id, 0).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

// EventLister is the slice of the registry client the poller needs.
type EventLister interface {
	Events(ctx context.Context, sinceID int64, limit int, eventTypes []string) ([]*event.Event, error)
}

// PollSource reads the registry event log in batches on a fixed interval.
// The watermark advances after every dispatched event whether handling
// succeeded or not: events are delivered at most once, and redeliveries
// after a crash are absorbed by the dedup guard.
type PollSource struct {
	cfg        config.PollConfig
	client     EventLister
	watermark  Watermark
	eventTypes []string
	logger     logger.Logger
}

func NewPollSource(cfg config.PollConfig, client EventLister, watermark Watermark, filter event.Filter, log logger.Logger) *PollSource {
	interval := cfg.Interval
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = constants.DefaultPollBatch
	}
	cfg.Interval = interval
	cfg.BatchSize = batch

	return &PollSource{
		cfg:        cfg,
		client:     client,
		watermark:  watermark,
		eventTypes: filter.EventTypes(),
		logger:     log,
	}
}

func (s *PollSource) Run(ctx context.Context, handler Handler) error {
	runCtx := logging.WithServiceName(ctx, constants.ServiceNameTrigger)

	last, err := s.watermark.Last(ctx)
	if err != nil {
		return fmt.Errorf("failed to load poll watermark: %w", err)
	}

	s.logger.InfowCtx(runCtx, "Started polling event log",
		"interval", s.cfg.Interval,
		"batch_size", s.cfg.BatchSize,
		"last_event_id", last,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfowCtx(runCtx, "Stopped polling", "reason", "context canceled")
			return ctx.Err()
		case <-ticker.C:
		}

		events, err := s.fetch(ctx, last)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.ErrorwCtx(runCtx, "Failed to fetch event log page",
				"error", err,
				"last_event_id", last,
			)
			continue
		}

		for _, e := range events {
			eventCtx := logging.WithEventID(runCtx, e.ID)

			if err := handler(eventCtx, e); err != nil {
				s.logger.ErrorwCtx(eventCtx, "Failed to process event",
					"error", err,
					"event_id", e.Key(),
				)
			}

			// Rogue entries without an id must not drag the watermark back
			// to 0, which would replay the whole event log on the next
			// fetch. Only a higher id moves it forward.
			if e.ID > last {
				last = e.ID
				if err := s.watermark.Advance(ctx, last); err != nil {
					s.logger.WarnwCtx(eventCtx, "Failed to persist poll watermark",
						"error", err,
						"event_id", e.Key(),
					)
				}
				metrics.SetPollLastEventID(last)
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (s *PollSource) fetch(ctx context.Context, sinceID int64) ([]*event.Event, error) {
	var events []*event.Event

	start := time.Now()
	err := retry.Retry(ctx, retryPolicy(s.cfg.Retry), func() error {
		var ferr error
		events, ferr = s.client.Events(ctx, sinceID, s.cfg.BatchSize, s.eventTypes)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveSourceReadDuration(constants.SourceTypePoll, time.Since(start))
	for range events {
		metrics.IncSourceEventsRead(constants.SourceTypePoll)
	}

	return events, nil
}

func (s *PollSource) Close() error {
	return nil
}
