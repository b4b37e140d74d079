package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbridge/internal/audit"
)

const (
	bridgeServiceURL = "http://localhost:9090"
	settingsName     = "default"
)

func TestBridgeHealth(t *testing.T) {
	url := fmt.Sprintf("%s/health", bridgeServiceURL)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)
	assert.NotNil(t, health["status"])
}

func TestBridgeLiveness(t *testing.T) {
	resp, err := http.Get(bridgeServiceURL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	require.NoError(t, err)
	assert.Equal(t, "The server is alive", body["status"])
	assert.NotEmpty(t, body["settings"])
}

func TestShowSettings(t *testing.T) {
	resp, err := http.Get(fmt.Sprintf("%s/sg2jira/%s", bridgeServiceURL, settingsName))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(fmt.Sprintf("%s/sg2jira/no_such_settings", bridgeServiceURL))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncInJira(t *testing.T) {
	payload := map[string]interface{}{
		"session_uuid": "2d8e7e34-e15e-11e8-81d7-0242ac110004",
		"meta": map[string]interface{}{
			"attribute_name": "sg_status_list",
			"entity_type":    "Task",
			"entity_id":      11793,
			"old_value":      "ip",
			"new_value":      "fin",
		},
	}

	resp := postJSON(t, fmt.Sprintf("%s/sg2jira/%s/Task/11793", bridgeServiceURL, settingsName), payload)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSyncInJiraRejectsNonNumericID(t *testing.T) {
	resp := postJSON(t, fmt.Sprintf("%s/sg2jira/%s/Task/notanumber", bridgeServiceURL, settingsName), map[string]interface{}{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncInJiraRejectsNonJSONContentType(t *testing.T) {
	url := fmt.Sprintf("%s/sg2jira/%s/Task/11793", bridgeServiceURL, settingsName)
	resp, err := http.Post(url, "text/plain", bytes.NewBufferString("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncInShotgun(t *testing.T) {
	payload := map[string]interface{}{
		"webhookEvent": "jira:issue_updated",
		"issue": map[string]interface{}{
			"key": "FOO-123",
		},
	}

	resp := postJSON(t, fmt.Sprintf("%s/jira2sg/%s/Bug/FOO-123", bridgeServiceURL, settingsName), payload)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminReset(t *testing.T) {
	resp := postJSON(t, bridgeServiceURL+"/admin/reset", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	err := json.NewDecoder(resp.Body).Decode(&body)
	require.NoError(t, err)
	assert.Equal(t, "reset", body["status"])
}

func TestAuditRecords(t *testing.T) {
	// Generate at least one record first.
	resp := postJSON(t, fmt.Sprintf("%s/sg2jira/%s/Task/11793", bridgeServiceURL, settingsName), map[string]interface{}{
		"meta": map[string]interface{}{"attribute_name": "sg_status_list"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/audit/records?limit=10", bridgeServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []audit.Entry
	err = json.NewDecoder(resp.Body).Decode(&entries)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	assert.LessOrEqual(t, len(entries), 10)
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	resp, err := http.Post(url, "application/json", &body)
	require.NoError(t, err)
	return resp
}
