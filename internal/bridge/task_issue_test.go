package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/logger"
	"sgbridge/pkg/cel"
	"sgbridge/pkg/models"
)

type fakeSchema struct {
	known       map[string]bool
	err         error
	invalidated int
}

func (f *fakeSchema) HasEntityType(_ context.Context, entityType string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[entityType], nil
}

func (f *fakeSchema) Invalidate() {
	f.invalidated++
}

func newTestTaskSyncer(t *testing.T, settings config.SyncSettings, schema SchemaChecker) *TaskIssueSyncer {
	t.Helper()

	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	syncer, err := NewTaskIssueSyncer(
		"default",
		settings,
		config.ShotgunConfig{Site: "https://sg.example.com", ScriptName: "sg-jira-bridge"},
		config.JiraConfig{User: "jira-bridge@example.com"},
		schema,
		evaluator,
		logger.NopLogger(),
	)
	require.NoError(t, err)
	return syncer
}

func taskSyncPayload() map[string]interface{} {
	return map[string]interface{}{
		"meta": map[string]interface{}{
			"type":           "attribute_change",
			"attribute_name": "sg_status_list",
			"entity_type":    "Task",
			"entity_id":      float64(11793),
			"new_value":      "wtg",
			"old_value":      "fin",
		},
		"session_uuid": "e8b61250-f31b-11e8-bb75-0242ac110004",
		"user": map[string]interface{}{
			"type": "HumanUser",
			"id":   float64(42),
			"name": "Ford Escort",
		},
		"project": map[string]interface{}{
			"type": "Project",
			"id":   float64(1),
			"name": "Bunny",
		},
		"entity_type": "Task",
		"entity_id":   float64(11793),
	}
}

func sgSyncRequest(payload map[string]interface{}) models.SyncRequest {
	return models.SyncRequest{
		Direction:  constants.DirectionSGToJira,
		Settings:   "default",
		EntityType: "Task",
		EntityID:   11793,
		Payload:    payload,
	}
}

func TestTaskIssueAcceptsTaskChange(t *testing.T) {
	schema := &fakeSchema{known: map[string]bool{"Task": true}}
	syncer := newTestTaskSyncer(t, config.SyncSettings{}, schema)

	accepted, err := syncer.Accept(context.Background(), sgSyncRequest(taskSyncPayload()))

	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestTaskIssueRejectsUnsupportedEntityType(t *testing.T) {
	schema := &fakeSchema{known: map[string]bool{"Version": true}}
	syncer := newTestTaskSyncer(t, config.SyncSettings{}, schema)

	req := sgSyncRequest(taskSyncPayload())
	req.EntityType = "Version"

	accepted, err := syncer.Accept(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestTaskIssueCustomEntityTypes(t *testing.T) {
	schema := &fakeSchema{known: map[string]bool{"Task": true, "Asset": true}}
	syncer := newTestTaskSyncer(t, config.SyncSettings{EntityTypes: []string{"Asset"}}, schema)

	accepted, err := syncer.Accept(context.Background(), sgSyncRequest(taskSyncPayload()))
	require.NoError(t, err)
	assert.False(t, accepted, "Task is not in the configured entity types")

	req := sgSyncRequest(taskSyncPayload())
	req.EntityType = "Asset"
	accepted, err = syncer.Accept(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestTaskIssueRejectsEntityTypeUnknownToSchema(t *testing.T) {
	schema := &fakeSchema{known: map[string]bool{}}
	syncer := newTestTaskSyncer(t, config.SyncSettings{}, schema)

	accepted, err := syncer.Accept(context.Background(), sgSyncRequest(taskSyncPayload()))

	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestTaskIssueSchemaErrorIsAdvisory(t *testing.T) {
	schema := &fakeSchema{err: errors.New("registry down")}
	syncer := newTestTaskSyncer(t, config.SyncSettings{}, schema)

	accepted, err := syncer.Accept(context.Background(), sgSyncRequest(taskSyncPayload()))

	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestTaskIssueWithoutSchema(t *testing.T) {
	syncer := newTestTaskSyncer(t, config.SyncSettings{}, nil)

	accepted, err := syncer.Accept(context.Background(), sgSyncRequest(taskSyncPayload()))

	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestTaskIssueRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(payload map[string]interface{})
	}{
		{
			name:   "empty payload",
			mutate: func(payload map[string]interface{}) { clear(payload) },
		},
		{
			name:   "no project",
			mutate: func(payload map[string]interface{}) { delete(payload, "project") },
		},
		{
			name:   "no meta",
			mutate: func(payload map[string]interface{}) { delete(payload, "meta") },
		},
		{
			name: "not an attribute change",
			mutate: func(payload map[string]interface{}) {
				payload["meta"].(map[string]interface{})["type"] = "new_entity"
			},
		},
		{
			name: "no attribute name",
			mutate: func(payload map[string]interface{}) {
				delete(payload["meta"].(map[string]interface{}), "attribute_name")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := &fakeSchema{known: map[string]bool{"Task": true}}
			syncer := newTestTaskSyncer(t, config.SyncSettings{}, schema)

			payload := taskSyncPayload()
			tt.mutate(payload)

			accepted, err := syncer.Accept(context.Background(), sgSyncRequest(payload))

			require.NoError(t, err)
			assert.False(t, accepted)
		})
	}
}

func TestTaskIssueRejectsOwnChanges(t *testing.T) {
	schema := &fakeSchema{known: map[string]bool{"Task": true}}
	syncer := newTestTaskSyncer(t, config.SyncSettings{}, schema)

	payload := taskSyncPayload()
	payload["user"] = map[string]interface{}{
		"type": "ApiUser",
		"id":   float64(88),
		"name": "sg-jira-bridge",
	}

	accepted, err := syncer.Accept(context.Background(), sgSyncRequest(payload))
	require.NoError(t, err)
	assert.False(t, accepted)

	// A human user who happens to share the script name is not the bridge.
	payload["user"] = map[string]interface{}{
		"type": "HumanUser",
		"id":   float64(89),
		"name": "sg-jira-bridge",
	}

	accepted, err = syncer.Accept(context.Background(), sgSyncRequest(payload))
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestTaskIssueAcceptExpression(t *testing.T) {
	schema := &fakeSchema{known: map[string]bool{"Task": true}}
	settings := config.SyncSettings{
		AcceptExpression: `payload.meta.attribute_name == "due_date"`,
	}
	syncer := newTestTaskSyncer(t, settings, schema)

	accepted, err := syncer.Accept(context.Background(), sgSyncRequest(taskSyncPayload()))

	require.NoError(t, err)
	assert.False(t, accepted, "the expression only accepts due_date changes")
}

func TestTaskIssueInvalidAcceptExpression(t *testing.T) {
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	_, err = NewTaskIssueSyncer(
		"default",
		config.SyncSettings{AcceptExpression: `entity_id + 1`},
		config.ShotgunConfig{},
		config.JiraConfig{},
		nil,
		evaluator,
		logger.NopLogger(),
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accept expression")
}

func TestTaskIssueRejectsOwnJiraChanges(t *testing.T) {
	syncer := newTestTaskSyncer(t, config.SyncSettings{}, nil)

	tests := []struct {
		name     string
		user     map[string]interface{}
		accepted bool
	}{
		{
			name:     "bridge user by name",
			user:     map[string]interface{}{"name": "jira-bridge@example.com"},
			accepted: false,
		},
		{
			name:     "bridge user by email case insensitive",
			user:     map[string]interface{}{"emailAddress": "Jira-Bridge@Example.com"},
			accepted: false,
		},
		{
			name:     "someone else",
			user:     map[string]interface{}{"name": "ford.escort", "emailAddress": "ford@example.com"},
			accepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := models.SyncRequest{
				Direction: constants.DirectionJiraToSG,
				Settings:  "default",
				IssueType: "Issue",
				IssueKey:  "FAW-1",
				Payload:   map[string]interface{}{"user": tt.user},
			}

			accepted, err := syncer.Accept(context.Background(), req)

			require.NoError(t, err)
			assert.Equal(t, tt.accepted, accepted)
		})
	}
}

func TestTaskIssueProcess(t *testing.T) {
	syncer := newTestTaskSyncer(t, config.SyncSettings{}, nil)

	require.NoError(t, syncer.Process(context.Background(), sgSyncRequest(taskSyncPayload())))

	payload := taskSyncPayload()
	payload["meta"].(map[string]interface{})["new_value"] = "not-a-status"
	require.NoError(t, syncer.Process(context.Background(), sgSyncRequest(payload)))

	require.NoError(t, syncer.Process(context.Background(), models.SyncRequest{
		Direction: constants.DirectionJiraToSG,
		Settings:  "default",
		IssueType: "Issue",
		IssueKey:  "FAW-1",
	}))
}
