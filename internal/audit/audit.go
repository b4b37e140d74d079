package audit

import (
	"context"
	"time"

	"sgbridge/internal/constants"
)

const (
	StatusSynced  = "synced"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Entry is the trace of one handled sync request.
type Entry struct {
	ID        string `json:"id" bson:"_id"`
	Direction string `json:"direction" bson:"direction"`
	Settings  string `json:"settings" bson:"settings"`
	// EntityType names the changed entity: a tracker entity type for
	// sg2jira requests, an issue type for jira2sg requests.
	EntityType string `json:"entity_type" bson:"entity_type"`
	// EntityKey identifies it: a numeric tracker id or an issue key.
	EntityKey string `json:"entity_key" bson:"entity_key"`
	// SessionUUID ties the entry back to the originating tracker session,
	// when the forwarded payload carried one.
	SessionUUID string    `json:"session_uuid,omitempty" bson:"session_uuid,omitempty"`
	Status      string    `json:"status" bson:"status"`
	Detail      string    `json:"detail,omitempty" bson:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Store persists sync audit entries.
type Store interface {
	Save(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// NopStore discards entries. It backs the "none" audit driver.
type NopStore struct{}

func NewNopStore() *NopStore {
	return &NopStore{}
}

func (s *NopStore) Save(ctx context.Context, entry Entry) error {
	return nil
}

func (s *NopStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return nil, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultAuditLimit
	}
	if limit > constants.MaxAuditLimit {
		return constants.MaxAuditLimit
	}
	return limit
}
