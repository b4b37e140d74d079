package bridge

import (
	"context"
	"strings"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/logger"
	"sgbridge/internal/shotgun"
	"sgbridge/pkg/cel"
	"sgbridge/pkg/models"
)

// Tracker status short codes mapped to the issue status names used on the
// other side.
var sgJiraStatusMapping = map[string]string{
	"wtg": "To Do",
	"rdy": "Open",
	"ip":  "In Progress",
	"fin": "Done",
	"hld": "Backlog",
	"omt": "Closed",
}

var defaultSyncEntityTypes = []string{"Task", "Ticket", "Note"}

// TaskIssueSyncer syncs tracker Tasks with issues. It applies the full
// acceptance chain before processing: supported entity types, a soft
// schema check against the registry, payload sanity, a loop guard for
// changes the bridge made itself, and the optional accept expression.
type TaskIssueSyncer struct {
	baseSyncer
	entityTypes []string
	schema      SchemaChecker
	scriptName  string
	jiraUser    string
}

func NewTaskIssueSyncer(
	name string,
	settings config.SyncSettings,
	shotgunCfg config.ShotgunConfig,
	jiraCfg config.JiraConfig,
	schema SchemaChecker,
	evaluator *cel.Evaluator,
	log logger.Logger,
) (*TaskIssueSyncer, error) {
	base, err := newBaseSyncer(name, settings, evaluator, log)
	if err != nil {
		return nil, err
	}

	entityTypes := settings.EntityTypes
	if len(entityTypes) == 0 {
		entityTypes = defaultSyncEntityTypes
	}

	return &TaskIssueSyncer{
		baseSyncer:  base,
		entityTypes: entityTypes,
		schema:      schema,
		scriptName:  shotgunCfg.ScriptName,
		jiraUser:    jiraCfg.User,
	}, nil
}

func (s *TaskIssueSyncer) Accept(ctx context.Context, req models.SyncRequest) (bool, error) {
	switch req.Direction {
	case constants.DirectionSGToJira:
		if !s.acceptShotgunRequest(ctx, req) {
			return false, nil
		}
	case constants.DirectionJiraToSG:
		if !s.acceptJiraRequest(ctx, req) {
			return false, nil
		}
	}

	return s.acceptExpression(ctx, req)
}

func (s *TaskIssueSyncer) acceptShotgunRequest(ctx context.Context, req models.SyncRequest) bool {
	supported := false
	for _, entityType := range s.entityTypes {
		if entityType == req.EntityType {
			supported = true
			break
		}
	}
	if !supported {
		s.logger.DebugwCtx(ctx, "Rejecting sync request for unsupported entity type",
			"settings", s.name,
			"entity_type", req.EntityType,
		)
		return false
	}

	if s.schema != nil {
		known, err := s.schema.HasEntityType(ctx, req.EntityType)
		if err != nil {
			// The schema check is advisory: a registry outage must not
			// block syncing.
			s.logger.WarnwCtx(ctx, "Unable to check entity type against registry schema",
				"error", err,
				"entity_type", req.EntityType,
			)
		} else if !known {
			s.logger.DebugwCtx(ctx, "Rejecting sync request for entity type unknown to the registry",
				"settings", s.name,
				"entity_type", req.EntityType,
			)
			return false
		}
	}

	if len(req.Payload) == 0 {
		s.logger.DebugwCtx(ctx, "Rejecting sync request with no payload", "settings", s.name)
		return false
	}
	if req.Payload["project"] == nil {
		s.logger.DebugwCtx(ctx, "Rejecting sync request with no project", "settings", s.name)
		return false
	}

	meta, ok := req.Payload["meta"].(map[string]interface{})
	if !ok || len(meta) == 0 {
		s.logger.DebugwCtx(ctx, "Rejecting sync request with no meta data", "settings", s.name)
		return false
	}
	if metaType, _ := meta["type"].(string); metaType != "attribute_change" {
		s.logger.DebugwCtx(ctx, "Rejecting sync request with wrong or missing change type",
			"settings", s.name,
			"meta_type", meta["type"],
		)
		return false
	}
	if attr, _ := meta["attribute_name"].(string); attr == "" {
		s.logger.DebugwCtx(ctx, "Rejecting sync request with missing attribute name", "settings", s.name)
		return false
	}

	// Loop guard: changes made by the bridge's own script user come back
	// through the event stream and must not be synced again.
	if userMap, ok := req.Payload["user"].(map[string]interface{}); ok && s.scriptName != "" {
		user := shotgun.EntityRefFromMap(userMap)
		if user != nil && user.Type == "ApiUser" && user.Name == s.scriptName {
			s.logger.DebugwCtx(ctx, "Rejecting sync request created by us",
				"settings", s.name,
				"user", user.Name,
			)
			return false
		}
	}

	return true
}

func (s *TaskIssueSyncer) acceptJiraRequest(ctx context.Context, req models.SyncRequest) bool {
	if s.jiraUser == "" {
		return true
	}

	userMap, ok := req.Payload["user"].(map[string]interface{})
	if !ok {
		return true
	}

	name, _ := userMap["name"].(string)
	email, _ := userMap["emailAddress"].(string)
	if strings.EqualFold(name, s.jiraUser) || strings.EqualFold(email, s.jiraUser) {
		s.logger.DebugwCtx(ctx, "Rejecting sync request triggered by us",
			"settings", s.name,
			"user", name,
		)
		return false
	}

	return true
}

func (s *TaskIssueSyncer) Process(ctx context.Context, req models.SyncRequest) error {
	if req.Direction == constants.DirectionJiraToSG {
		s.logger.InfowCtx(ctx, "Syncing in Shotgun",
			"settings", s.name,
			"issue_type", req.IssueType,
			"issue_key", req.IssueKey,
		)
		return nil
	}

	fields := []interface{}{
		"settings", s.name,
		"entity_type", req.EntityType,
		"entity_id", req.EntityID,
	}

	meta, _ := req.Payload["meta"].(map[string]interface{})
	attr, _ := meta["attribute_name"].(string)
	if attr != "" {
		fields = append(fields, "attribute_name", attr)
	}

	if attr == "sg_status_list" {
		newValue, _ := meta["new_value"].(string)
		if issueStatus, ok := sgJiraStatusMapping[newValue]; ok {
			fields = append(fields, "issue_status", issueStatus)
		} else {
			s.logger.WarnwCtx(ctx, "No issue status mapping for tracker status",
				"settings", s.name,
				"status", newValue,
			)
		}
	}

	s.logger.InfowCtx(ctx, "Syncing in Jira", fields...)
	return nil
}
