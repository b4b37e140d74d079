package models

// EntityRef is the compact entity reference shape used across the event
// stream and the bridge API: {"type": "Task", "id": 11793, "name": "..."}.
type EntityRef struct {
	Type string `json:"type,omitempty"`
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// DispatchPayload is the body the trigger service POSTs to a dispatch route.
// Meta is forwarded verbatim so the receiving side sees the original change
// metadata (attribute name, old/new values, field data type).
type DispatchPayload struct {
	Meta        map[string]interface{} `json:"meta"`
	SessionUUID string                 `json:"session_uuid"`
	User        *EntityRef             `json:"user"`
	Project     *EntityRef             `json:"project"`
	EntityType  string                 `json:"entity_type"`
	EntityID    int64                  `json:"entity_id"`
}
