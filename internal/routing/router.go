package routing

import (
	"context"
	"fmt"
	"strconv"

	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/pkg/models"
	"sgbridge/pkg/tracing"
)

// Decision is the terminal outcome of routing one event.
type Decision int

const (
	// DecisionDropped means the event was discarded without delivery.
	DecisionDropped Decision = iota
	// DecisionCacheInvalidated means the event only mutated cached routes.
	DecisionCacheInvalidated
	// DecisionForwarded means delivery to the sync endpoint was attempted.
	DecisionForwarded
)

func (d Decision) String() string {
	switch d {
	case DecisionCacheInvalidated:
		return "cache_invalidated"
	case DecisionForwarded:
		return "forwarded"
	default:
		return "dropped"
	}
}

// Result reports what the router did with an event. URL is set only for
// DecisionForwarded.
type Result struct {
	Decision Decision
	URL      string
}

// RelaySender performs the outbound HTTP side of routing.
type RelaySender interface {
	Deliver(ctx context.Context, url string, payload *models.DispatchPayload) error
	Reset(ctx context.Context, endpoint string) error
}

// Router turns classified events into cache mutations and deliveries.
type Router struct {
	cache    *RouteCache
	resolver Resolver
	relay    RelaySender
	logger   logger.Logger
}

func NewRouter(cache *RouteCache, resolver Resolver, relay RelaySender, log logger.Logger) *Router {
	return &Router{
		cache:    cache,
		resolver: resolver,
		relay:    relay,
		logger:   log,
	}
}

// Route processes a single event to completion: cache maintenance for schema
// and project-url changes, lookup plus delivery for entity changes. Delivery
// failures are returned to the caller; nothing is retried here.
func (r *Router) Route(ctx context.Context, e *event.Event) (Result, error) {
	ctx, span := tracing.GetTracer("trigger-service").Start(ctx, "routing.route")
	defer span.End()

	classification := Classify(e)

	switch classification.Kind {
	case KindSchemaChange:
		r.cache.Clear()
		r.logger.DebugwCtx(ctx, "Cleared dispatch routes after schema change",
			"event_type", e.EventType,
		)
		return Result{Decision: DecisionCacheInvalidated}, nil

	case KindProjectSyncURLChange:
		r.cache.Invalidate(classification.ProjectID)
		r.logger.DebugwCtx(ctx, "Invalidated dispatch route after sync url change",
			"project_id", classification.ProjectID,
		)
		return Result{Decision: DecisionCacheInvalidated}, nil

	case KindEntityChange:
		return r.forward(ctx, e, classification)

	default:
		r.logger.DebugwCtx(ctx, "Ignoring event without routable entity",
			"event_type", e.EventType,
		)
		return Result{Decision: DecisionDropped}, nil
	}
}

func (r *Router) forward(ctx context.Context, e *event.Event, c Classification) (Result, error) {
	ctx, span := tracing.GetTracer("trigger-service").Start(ctx, "routing.forward")
	defer span.End()

	route, freshly, err := r.cache.LookupOrResolve(ctx, c.ProjectID, r.resolver)
	if err != nil {
		return Result{Decision: DecisionDropped}, fmt.Errorf("route resolution failed for project %d: %w", c.ProjectID, err)
	}

	if route == nil {
		r.logger.DebugwCtx(ctx, "Ignoring Jira sync for project without route",
			"project_id", c.ProjectID,
		)
		return Result{Decision: DecisionDropped}, nil
	}

	// A freshly resolved endpoint gets a reset notification before its first
	// delivery so the bridge drops any stale schema cache. The route stays
	// cached even when the reset fails, so the reset is not repeated per
	// event.
	if freshly {
		if err := r.relay.Reset(ctx, *route); err != nil {
			return Result{Decision: DecisionDropped}, fmt.Errorf("bridge reset failed for project %d: %w", c.ProjectID, err)
		}
	}

	payload := &models.DispatchPayload{
		Meta:        e.Meta,
		SessionUUID: e.SessionUUID,
		User:        e.User,
		Project:     e.Project,
		EntityType:  c.EntityType,
		EntityID:    c.EntityID,
	}

	url := *route + "/" + c.EntityType + "/" + strconv.FormatInt(c.EntityID, 10)
	if err := r.relay.Deliver(ctx, url, payload); err != nil {
		return Result{Decision: DecisionForwarded, URL: url}, err
	}

	return Result{Decision: DecisionForwarded, URL: url}, nil
}
