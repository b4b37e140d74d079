package bridge

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"sgbridge/internal/audit"
	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/logger"
	"sgbridge/pkg/cel"
	pkgerrors "sgbridge/pkg/errors"
	"sgbridge/pkg/metrics"
	"sgbridge/pkg/models"
	"sgbridge/pkg/tracing"
)

// SchemaChecker exposes the registry schema operations the bridge needs.
type SchemaChecker interface {
	HasEntityType(ctx context.Context, entityType string) (bool, error)
	Invalidate()
}

// Bridge dispatches sync requests to the syncer configured for each
// settings name and records the outcome in the audit store.
type Bridge struct {
	syncers map[string]Syncer
	store   audit.Store
	schema  SchemaChecker
	logger  logger.Logger
}

// New builds a bridge from the configured sync settings. Every settings
// entry gets its own syncer instance; accept expressions are compiled
// here so a bad expression fails startup instead of the first request.
func New(cfg *config.Config, schema SchemaChecker, store audit.Store, log logger.Logger) (*Bridge, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create accept expression evaluator: %w", err)
	}

	syncers := make(map[string]Syncer, len(cfg.Sync))
	for name, settings := range cfg.Sync {
		if !config.ValidSettingsName(name) {
			return nil, fmt.Errorf("invalid settings name %q", name)
		}

		var syncer Syncer
		switch settings.Syncer {
		case constants.SyncerTaskIssue, "":
			syncer, err = NewTaskIssueSyncer(name, settings, cfg.Shotgun, cfg.Jira, schema, evaluator, log)
		case constants.SyncerLogOnly:
			syncer, err = NewLogOnlySyncer(name, settings, evaluator, log)
		default:
			return nil, fmt.Errorf("unknown syncer %q for settings %q", settings.Syncer, name)
		}
		if err != nil {
			return nil, err
		}
		syncers[name] = syncer
	}

	return &Bridge{
		syncers: syncers,
		store:   store,
		schema:  schema,
		logger:  log,
	}, nil
}

// SettingsNames returns the configured settings names, sorted.
func (b *Bridge) SettingsNames() []string {
	names := make([]string, 0, len(b.syncers))
	for name := range b.syncers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Bridge) HasSettings(name string) bool {
	_, ok := b.syncers[name]
	return ok
}

// SyncInJira handles a tracker change that may need to be reflected in Jira.
func (b *Bridge) SyncInJira(ctx context.Context, settings, entityType string, entityID int64, payload map[string]interface{}) error {
	ctx, span := tracing.GetTracer(constants.ServiceNameBridge).Start(ctx, "bridge.sync_in_jira")
	defer span.End()

	req := models.SyncRequest{
		Direction:  constants.DirectionSGToJira,
		Settings:   settings,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
	}
	return b.dispatch(ctx, req)
}

// SyncInShotgun handles a Jira change that may need to be reflected in
// the tracker.
func (b *Bridge) SyncInShotgun(ctx context.Context, settings, issueType, issueKey string, payload map[string]interface{}) error {
	ctx, span := tracing.GetTracer(constants.ServiceNameBridge).Start(ctx, "bridge.sync_in_shotgun")
	defer span.End()

	req := models.SyncRequest{
		Direction: constants.DirectionJiraToSG,
		Settings:  settings,
		IssueType: issueType,
		IssueKey:  issueKey,
		Payload:   payload,
	}
	return b.dispatch(ctx, req)
}

func (b *Bridge) dispatch(ctx context.Context, req models.SyncRequest) error {
	start := time.Now()

	syncer, ok := b.syncers[req.Settings]
	if !ok {
		return pkgerrors.ErrValidation.WithDetail("message", fmt.Sprintf("Invalid settings name %s", req.Settings))
	}

	accepted, err := syncer.Accept(ctx, req)
	if err != nil {
		b.record(ctx, req, audit.StatusFailed, err.Error())
		metrics.ObserveSyncRequest(req.Direction, time.Since(start), "error")
		return err
	}
	if !accepted {
		b.logger.DebugwCtx(ctx, "Sync request not accepted",
			"settings", req.Settings,
			"direction", req.Direction,
		)
		b.record(ctx, req, audit.StatusSkipped, "")
		metrics.ObserveSyncRequest(req.Direction, time.Since(start), "skipped")
		return nil
	}

	if err := syncer.Process(ctx, req); err != nil {
		b.record(ctx, req, audit.StatusFailed, err.Error())
		metrics.ObserveSyncRequest(req.Direction, time.Since(start), "error")
		return err
	}

	b.record(ctx, req, audit.StatusSynced, "")
	metrics.ObserveSyncRequest(req.Direction, time.Since(start), "success")
	return nil
}

// record writes one audit entry for a dispatched request. Audit failures
// are logged and swallowed: the sync outcome already happened and must
// be reported to the caller as is.
func (b *Bridge) record(ctx context.Context, req models.SyncRequest, status, detail string) {
	entry := audit.Entry{
		Direction: req.Direction,
		Settings:  req.Settings,
		Status:    status,
		Detail:    detail,
	}

	switch req.Direction {
	case constants.DirectionSGToJira:
		entry.EntityType = req.EntityType
		entry.EntityKey = strconv.FormatInt(req.EntityID, 10)
	case constants.DirectionJiraToSG:
		entry.EntityType = req.IssueType
		entry.EntityKey = req.IssueKey
	}

	if sessionUUID, ok := req.Payload["session_uuid"].(string); ok {
		entry.SessionUUID = sessionUUID
	}

	if err := b.store.Save(ctx, entry); err != nil {
		b.logger.WarnwCtx(ctx, "Failed to record audit entry",
			"error", err,
			"settings", req.Settings,
		)
	}
}

// Reset clears the cached registry schema so the next sync request
// re-reads it. The admin endpoint is the only caller.
func (b *Bridge) Reset(ctx context.Context) error {
	if b.schema != nil {
		b.schema.Invalidate()
	}
	metrics.BridgeResetsTotal.Inc()

	entry := audit.Entry{
		Direction: "admin",
		Status:    audit.StatusSynced,
		Detail:    "bridge reset",
	}
	if err := b.store.Save(ctx, entry); err != nil {
		b.logger.WarnwCtx(ctx, "Failed to record audit entry", "error", err)
	}

	b.logger.InfowCtx(ctx, "Bridge reset")
	return nil
}
