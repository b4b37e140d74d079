package bridge

import (
	"context"
	"fmt"

	celgo "github.com/google/cel-go/cel"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/logger"
	"sgbridge/pkg/cel"
	"sgbridge/pkg/models"
)

// Syncer reflects a change on one side of the bridge onto the other.
// Accept runs first and decides whether the syncer wants the request at
// all; Process performs the work for accepted requests.
type Syncer interface {
	Name() string
	Accept(ctx context.Context, req models.SyncRequest) (bool, error)
	Process(ctx context.Context, req models.SyncRequest) error
}

// baseSyncer carries what every syncer needs: the settings name it was
// registered under, the optional compiled accept expression and a logger.
type baseSyncer struct {
	name      string
	evaluator *cel.Evaluator
	program   celgo.Program
	logger    logger.Logger
}

func newBaseSyncer(name string, settings config.SyncSettings, evaluator *cel.Evaluator, log logger.Logger) (baseSyncer, error) {
	base := baseSyncer{
		name:      name,
		evaluator: evaluator,
		logger:    log,
	}

	if settings.AcceptExpression != "" {
		if err := evaluator.ValidateAcceptExpression(settings.AcceptExpression); err != nil {
			return base, fmt.Errorf("invalid accept expression for settings %q: %w", name, err)
		}
		program, err := evaluator.CompileExpression(settings.AcceptExpression)
		if err != nil {
			return base, fmt.Errorf("failed to compile accept expression for settings %q: %w", name, err)
		}
		base.program = program
	}

	return base, nil
}

func (s *baseSyncer) Name() string {
	return s.name
}

// acceptExpression evaluates the configured accept expression. Requests
// are accepted when no expression is set.
func (s *baseSyncer) acceptExpression(ctx context.Context, req models.SyncRequest) (bool, error) {
	if s.program == nil {
		return true, nil
	}
	ok, err := s.evaluator.EvaluateCompiled(ctx, s.program, req)
	if err != nil {
		return false, fmt.Errorf("accept expression failed for settings %q: %w", s.name, err)
	}
	return ok, nil
}

// LogOnlySyncer accepts every request and only logs it. It is meant for
// dry runs and for diagnosing the routing chain end to end.
type LogOnlySyncer struct {
	baseSyncer
}

func NewLogOnlySyncer(name string, settings config.SyncSettings, evaluator *cel.Evaluator, log logger.Logger) (*LogOnlySyncer, error) {
	base, err := newBaseSyncer(name, settings, evaluator, log)
	if err != nil {
		return nil, err
	}
	return &LogOnlySyncer{baseSyncer: base}, nil
}

func (s *LogOnlySyncer) Accept(ctx context.Context, req models.SyncRequest) (bool, error) {
	return s.acceptExpression(ctx, req)
}

func (s *LogOnlySyncer) Process(ctx context.Context, req models.SyncRequest) error {
	if req.Direction == constants.DirectionSGToJira {
		s.logger.InfowCtx(ctx, "Syncing in Jira",
			"settings", s.name,
			"entity_type", req.EntityType,
			"entity_id", req.EntityID,
		)
		return nil
	}

	s.logger.InfowCtx(ctx, "Syncing in Shotgun",
		"settings", s.name,
		"issue_type", req.IssueType,
		"issue_key", req.IssueKey,
	)
	return nil
}
