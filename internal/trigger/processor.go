package trigger

import (
	"context"
	"time"

	"sgbridge/internal/constants"
	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/internal/routing"
	"sgbridge/pkg/metrics"
	"sgbridge/pkg/tracing"
)

// Guard reports whether an event is seen for the first time.
type Guard interface {
	Check(ctx context.Context, e *event.Event) (bool, error)
}

// Router carries an event through classification, route resolution and
// dispatch.
type Router interface {
	Route(ctx context.Context, e *event.Event) (routing.Result, error)
}

// Processor is the per-event pipeline handed to the event source: the
// registration filter runs first, then the duplicate guard, then routing.
// A failed event is reported back to the source, which logs it and keeps
// consuming.
type Processor struct {
	filter event.Filter
	guard  Guard
	router Router
	logger logger.Logger
}

func NewProcessor(filter event.Filter, guard Guard, router Router, log logger.Logger) *Processor {
	return &Processor{
		filter: filter,
		guard:  guard,
		router: router,
		logger: log,
	}
}

// Process handles a single event end to end.
func (p *Processor) Process(ctx context.Context, e *event.Event) error {
	ctx, span := tracing.GetTracer(constants.ServiceNameTrigger).Start(ctx, "trigger.process")
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		return err
	}

	if !p.filter.Match(e) {
		p.logger.DebugwCtx(ctx, "Ignoring unregistered event type",
			"event_type", e.EventType,
			"event_id", e.Key(),
		)
		p.record(start, "filtered")
		return nil
	}

	unique, err := p.guard.Check(ctx, e)
	if err != nil {
		p.record(start, "error")
		return err
	}
	if !unique {
		p.record(start, "duplicate")
		return nil
	}

	result, err := p.router.Route(ctx, e)
	if err != nil {
		p.record(start, "error")
		return err
	}

	p.record(start, result.Decision.String())
	return nil
}

func (p *Processor) record(start time.Time, decision string) {
	metrics.TriggerEventsTotal.WithLabelValues(decision).Inc()
	metrics.ObserveTriggerDuration(time.Since(start), decision)
}
