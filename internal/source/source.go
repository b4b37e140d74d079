package source

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/internal/shotgun"
	"sgbridge/pkg/retry"
)

// Handler consumes one event. The source delivers serially: the handler runs
// to completion before the next event is read. Handler errors do not stop
// the source; the event is considered consumed either way.
type Handler func(ctx context.Context, e *event.Event) error

// Source is a stream of registry events.
type Source interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}

// New builds the configured source. The poll source needs the registry
// client for event-log pages and redis for its watermark; the kafka source
// consumes an externally produced event topic.
func New(cfg config.SourceConfig, client *shotgun.Client, redisClient *redis.Client, filter event.Filter, log logger.Logger) (Source, error) {
	switch cfg.Type {
	case constants.SourceTypeKafka:
		return NewKafkaSource(cfg.Kafka, log), nil
	case constants.SourceTypePoll:
		if client == nil {
			return nil, fmt.Errorf("poll source requires a registry client")
		}
		if redisClient == nil {
			return nil, fmt.Errorf("poll source requires redis for its watermark")
		}
		return NewPollSource(cfg.Poll, client, NewRedisWatermark(redisClient), filter, log), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	policy := retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}

	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}

	return policy
}
