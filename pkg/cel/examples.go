package cel

// AcceptExpressionExamples provides example CEL expressions for syncer
// accept hooks, usable as the accept_expression value in sync settings.
var AcceptExpressionExamples = map[string]string{
	"tasks_only":          `entity_type == "Task"`,
	"tasks_and_tickets":   `entity_type in ["Task", "Ticket"]`,
	"skip_low_ids":        `entity_id > 1000`,
	"one_direction":       `direction == "sg2jira"`,
	"status_changes_only": `has(payload.meta) && payload.meta.attribute_name == "sg_status_list"`,
	"named_settings":      `settings == "default"`,
	"issue_key_prefix":    `issue_key.startsWith("FOO-")`,
	"combined":            `direction == "sg2jira" && entity_type == "Task" && entity_id > 0`,
}
