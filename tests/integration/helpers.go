package integration

import (
	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/pkg/models"
)

const (
	containerStartupTimeout = 60
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestDeduplicationConfig() config.DeduplicationConfig {
	return config.DeduplicationConfig{
		Enabled:      true,
		TTLSeconds:   300,
		OnRedisError: constants.FallbackAllow,
	}
}

func createTaskChangeEvent(id, projectID, entityID int64) *event.Event {
	return &event.Event{
		ID:            id,
		EventType:     "Shotgun_Task_Change",
		AttributeName: "sg_status_list",
		Entity:        &models.EntityRef{Type: "Task", ID: entityID},
		Project:       &models.EntityRef{Type: "Project", ID: projectID, Name: "Test Project"},
		User:          &models.EntityRef{Type: "HumanUser", ID: 42},
		SessionUUID:   "2d8e7e34-e15e-11e8-81d7-0242ac110004",
		Meta: map[string]interface{}{
			"type":           "attribute_change",
			"attribute_name": "sg_status_list",
			"entity_type":    "Task",
			"entity_id":      float64(entityID),
			"old_value":      "ip",
			"new_value":      "fin",
		},
		CreatedAt: "2026-08-27T10:00:00Z",
	}
}
