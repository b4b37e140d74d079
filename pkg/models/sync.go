package models

// SyncRequest is one unit of work for a syncer: a change on one side of the
// bridge that may need to be reflected on the other side.
type SyncRequest struct {
	// Direction is "sg2jira" or "jira2sg".
	Direction string `json:"direction"`
	// Settings is the settings name the request was addressed to.
	Settings string `json:"settings"`

	// EntityType and EntityID identify the production tracker entity
	// (sg2jira direction).
	EntityType string `json:"entity_type,omitempty"`
	EntityID   int64  `json:"entity_id,omitempty"`

	// IssueType and IssueKey identify the tracker issue (jira2sg direction).
	IssueType string `json:"issue_type,omitempty"`
	IssueKey  string `json:"issue_key,omitempty"`

	// Payload is the request body as received, untouched.
	Payload map[string]interface{} `json:"payload,omitempty"`
}
