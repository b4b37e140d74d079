package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/pkg/metrics"
)

type Repository interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

type RedisRepository struct {
	client *redis.Client
}

func NewRepository(client *redis.Client) Repository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	success, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return success, nil
}

// Guard suppresses event redeliveries. Event log entries carry stable ids,
// so a SetNX on the id is enough to claim an event exactly once within the
// TTL window.
type Guard struct {
	repo   Repository
	cfg    config.DeduplicationConfig
	logger logger.Logger
}

func NewGuard(repo Repository, cfg config.DeduplicationConfig, log logger.Logger) *Guard {
	return &Guard{
		repo:   repo,
		cfg:    cfg,
		logger: log,
	}
}

// Check claims the event and reports whether it is seen for the first time.
// When the guard is disabled every event passes. Redis failures follow the
// configured policy: allow the event through, reject it as a duplicate, or
// surface the error.
func (g *Guard) Check(ctx context.Context, e *event.Event) (bool, error) {
	if !g.cfg.Enabled {
		return true, nil
	}

	ttl := time.Duration(g.cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = constants.DefaultDedupTTLSeconds * time.Second
	}

	key := constants.CacheKeyPrefixDedup + e.Key()
	unique, err := g.repo.SetNX(ctx, key, time.Now().Unix(), ttl)
	if err != nil {
		return g.handleRedisError(ctx, err, e)
	}

	if unique {
		metrics.DedupEventsTotal.WithLabelValues("unique").Inc()
	} else {
		metrics.DedupEventsTotal.WithLabelValues("duplicate").Inc()
		g.logger.DebugwCtx(ctx, "Skipping duplicate event", "event_id", e.Key())
	}
	return unique, nil
}

func (g *Guard) handleRedisError(ctx context.Context, err error, e *event.Event) (bool, error) {
	metrics.DedupEventsTotal.WithLabelValues("error").Inc()

	switch g.cfg.OnRedisError {
	case constants.FallbackAllow:
		metrics.FallbackUsageTotal.WithLabelValues("trigger", "allow_on_error", "redis_error").Inc()
		g.logger.WarnwCtx(ctx, "Redis error during dedup check, allowing event (fallback: allow)",
			"event_id", e.Key(),
			"error", err,
		)
		return true, nil
	case constants.FallbackReject:
		metrics.FallbackUsageTotal.WithLabelValues("trigger", "reject_on_error", "redis_error").Inc()
		g.logger.WarnwCtx(ctx, "Redis error during dedup check, rejecting event (fallback: reject)",
			"event_id", e.Key(),
			"error", err,
		)
		return false, nil
	default:
		return false, fmt.Errorf("redis error during dedup check for event %s: %w", e.Key(), err)
	}
}
