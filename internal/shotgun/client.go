package shotgun

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/pkg/models"
)

// Client is a thin JSON client for the production-tracking registry. It
// authenticates with script credentials on every request.
type Client struct {
	baseURL    string
	scriptName string
	scriptKey  string
	client     *http.Client
	logger     logger.Logger
}

func NewClient(cfg config.ShotgunConfig, log logger.Logger) (*Client, error) {
	if cfg.Site == "" {
		return nil, fmt.Errorf("shotgun site is not configured")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.Site, "/"),
		scriptName: cfg.ScriptName,
		scriptKey:  cfg.ScriptKey,
		client:     &http.Client{Timeout: timeout},
		logger:     log,
	}, nil
}

// FindProject fetches a single Project with the fields routing needs.
func (c *Client) FindProject(ctx context.Context, id int64) (*Project, error) {
	var payload struct {
		Data struct {
			ID         int64                  `json:"id"`
			Attributes map[string]interface{} `json:"attributes"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/api/v1/projects/%d?fields=name,%s", id, constants.SyncURLFieldName)
	if err := c.get(ctx, path, &payload); err != nil {
		if IsNotFound(err) {
			return nil, &notFoundError{entityType: "Project", id: id}
		}
		return nil, err
	}

	project := &Project{ID: payload.Data.ID}
	if project.ID == 0 {
		project.ID = id
	}
	if name, ok := payload.Data.Attributes["name"].(string); ok {
		project.Name = name
	}
	project.SyncURLField = payload.Data.Attributes[constants.SyncURLFieldName]

	return project, nil
}

// Events returns the event-log page after sinceID, oldest first, restricted
// to the given event types.
func (c *Client) Events(ctx context.Context, sinceID int64, limit int, eventTypes []string) ([]*event.Event, error) {
	q := url.Values{}
	q.Set("filter[id][gt]", strconv.FormatInt(sinceID, 10))
	if len(eventTypes) > 0 {
		q.Set("filter[event_type][in]", strings.Join(eventTypes, ","))
	}
	q.Set("page[size]", strconv.Itoa(limit))
	q.Set("sort", "id")

	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/event_log_entries?"+q.Encode(), &payload); err != nil {
		return nil, err
	}

	events := make([]*event.Event, 0, len(payload.Data))
	for _, raw := range payload.Data {
		e, err := event.Parse(raw)
		if err != nil {
			c.logger.WarnwCtx(ctx, "Skipping malformed event log entry", "error", err)
			continue
		}
		events = append(events, e)
	}

	return events, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Script-Name", c.scriptName)
	req.Header.Set("X-Script-Key", c.scriptKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &notFoundError{entityType: "resource", id: 0}
	}
	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return fmt.Errorf("registry returned status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode registry response: %w", err)
	}

	return nil
}

// SyncURLFromField extracts a sync endpoint from a File/Link field value.
// Only a web link yields an endpoint, with one trailing slash stripped:
//
//	{"link_type": "web", "url": "http://localhost:9090/sg2jira/default"}
//
// Any other shape yields false.
func SyncURLFromField(value interface{}) (string, bool) {
	field, ok := value.(map[string]interface{})
	if !ok {
		return "", false
	}
	if linkType, _ := field["link_type"].(string); linkType != "web" {
		return "", false
	}
	syncURL, _ := field["url"].(string)
	if syncURL == "" {
		return "", false
	}
	return strings.TrimSuffix(syncURL, "/"), true
}

// EntityRefFromMap converts a loosely-typed entity dictionary into a ref.
func EntityRefFromMap(m map[string]interface{}) *models.EntityRef {
	if m == nil {
		return nil
	}
	ref := &models.EntityRef{}
	ref.Type, _ = m["type"].(string)
	if id, ok := m["id"].(float64); ok {
		ref.ID = int64(id)
	}
	ref.Name, _ = m["name"].(string)
	return ref
}
