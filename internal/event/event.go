package event

import (
	"encoding/json"
	"fmt"
	"strconv"

	"sgbridge/pkg/models"
)

// SchemaChangeEventTypes lists the event types that can alter the Shotgun
// schema. Any of these invalidates cached routing and schema state.
var SchemaChangeEventTypes = []string{
	"Shotgun_DisplayColumn_New",
	"Shotgun_DisplayColumn_Change",
	"Shotgun_DisplayColumn_Retirement",
	"Shotgun_Status_New",
	"Shotgun_Status_Change",
	"Shotgun_Status_Retirement",
}

const (
	// ProjectChangeEventType is emitted when a Project entity is modified.
	ProjectChangeEventType = "Shotgun_Project_Change"

	// Wildcard matches any attribute name in a Filter.
	Wildcard = "*"
)

// Event mirrors a Shotgun EventLogEntry as delivered by the event stream.
// Meta is kept as a raw mapping because its shape varies per event type;
// the typed accessors below extract the fields routing depends on.
type Event struct {
	ID            int64                  `json:"id"`
	EventType     string                 `json:"event_type"`
	AttributeName string                 `json:"attribute_name,omitempty"`
	Entity        *models.EntityRef      `json:"entity,omitempty"`
	Project       *models.EntityRef      `json:"project,omitempty"`
	User          *models.EntityRef      `json:"user,omitempty"`
	SessionUUID   string                 `json:"session_uuid,omitempty"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
	CreatedAt     string                 `json:"created_at,omitempty"`
}

// Parse decodes a JSON-encoded EventLogEntry.
func Parse(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	if e.EventType == "" {
		return nil, fmt.Errorf("event has no event_type")
	}
	return &e, nil
}

// Key returns a stable identifier for deduplication and logging.
func (e *Event) Key() string {
	if e.ID != 0 {
		return strconv.FormatInt(e.ID, 10)
	}
	// Rogue entries produced during server maintenance can lack an id.
	return fmt.Sprintf("%s:%s", e.EventType, e.CreatedAt)
}

// IsSchemaChange reports whether the event type mutates the Shotgun schema.
func (e *Event) IsSchemaChange() bool {
	for _, t := range SchemaChangeEventTypes {
		if e.EventType == t {
			return true
		}
	}
	return false
}

// EntityMeta extracts meta.entity_type and meta.entity_id. Events missing
// either carry no routable entity and must be dropped.
func (e *Event) EntityMeta() (entityType string, entityID int64, ok bool) {
	if e.Meta == nil {
		return "", 0, false
	}
	entityType, _ = e.Meta["entity_type"].(string)
	entityID, idOK := metaInt64(e.Meta["entity_id"])
	if entityType == "" || !idOK || entityID == 0 {
		return "", 0, false
	}
	return entityType, entityID, true
}

// MetaAttributeName returns meta.attribute_name, or the top-level
// attribute_name when meta does not carry one.
func (e *Event) MetaAttributeName() string {
	if e.Meta != nil {
		if name, ok := e.Meta["attribute_name"].(string); ok && name != "" {
			return name
		}
	}
	return e.AttributeName
}

// metaInt64 normalizes the numeric representations JSON decoding produces.
func metaInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
