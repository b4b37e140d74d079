package shotgun

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbridge/internal/config"
	"sgbridge/internal/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.ShotgunConfig{
		Site:       server.URL,
		ScriptName: "sgbridge-test",
		ScriptKey:  "secret",
	}, logger.NopLogger())
	require.NoError(t, err)

	return client, server
}

func TestFindProject(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/projects/1", r.URL.Path)
		assert.Equal(t, "sgbridge-test", r.Header.Get("X-Script-Name"))
		assert.Equal(t, "secret", r.Header.Get("X-Script-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": {
				"id": 1,
				"attributes": {
					"name": "Bunny",
					"sg_jira_sync_url": {
						"link_type": "web",
						"url": "http://localhost:9090/sg2jira/default"
					}
				}
			}
		}`))
	}))

	project, err := client.FindProject(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), project.ID)
	assert.Equal(t, "Bunny", project.Name)

	syncURL, ok := SyncURLFromField(project.SyncURLField)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9090/sg2jira/default", syncURL)
}

func TestFindProjectNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.FindProject(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFindProjectServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.FindProject(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestEvents(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/event_log_entries", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("filter[id][gt]"))
		assert.Equal(t, "50", r.URL.Query().Get("page[size]"))
		assert.Contains(t, r.URL.Query().Get("filter[event_type][in]"), "Shotgun_Task_Change")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": 101, "event_type": "Shotgun_Task_Change", "meta": {"entity_type": "Task", "entity_id": 11793}},
				{"id": 102},
				{"id": 103, "event_type": "Shotgun_Status_Change"}
			]
		}`))
	}))

	events, err := client.Events(context.Background(), 100, 50, []string{"Shotgun_Task_Change", "Shotgun_Status_Change"})
	require.NoError(t, err)

	// The entry without an event_type is dropped as malformed.
	require.Len(t, events, 2)
	assert.Equal(t, int64(101), events[0].ID)
	assert.Equal(t, int64(103), events[1].ID)
}

func TestSyncURLFromField(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		url   string
		ok    bool
	}{
		{
			name: "web link",
			value: map[string]interface{}{
				"link_type": "web",
				"url":       "http://localhost:9090/sg2jira/default",
			},
			url: "http://localhost:9090/sg2jira/default",
			ok:  true,
		},
		{
			name: "trailing slash stripped",
			value: map[string]interface{}{
				"link_type": "web",
				"url":       "http://host/sg2jira/default/",
			},
			url: "http://host/sg2jira/default",
			ok:  true,
		},
		{
			name:  "non dict value",
			value: "http://host/sg2jira/default",
			ok:    false,
		},
		{
			name: "non web link",
			value: map[string]interface{}{
				"link_type": "upload",
				"url":       "http://host/file",
			},
			ok: false,
		},
		{
			name:  "missing url",
			value: map[string]interface{}{"link_type": "web"},
			ok:    false,
		},
		{
			name:  "nil value",
			value: nil,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, ok := SyncURLFromField(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.url, url)
		})
	}
}

type fakeSchemaFetcher struct {
	calls int
	types map[string]struct{}
}

func (f *fakeSchemaFetcher) EntityTypes(ctx context.Context) (map[string]struct{}, error) {
	f.calls++
	return f.types, nil
}

func TestSchemaCache(t *testing.T) {
	fetcher := &fakeSchemaFetcher{types: map[string]struct{}{"Task": {}, "Ticket": {}}}
	cache := NewSchemaCache(fetcher)

	ok, err := cache.HasEntityType(context.Background(), "Task")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.HasEntityType(context.Background(), "Version")
	require.NoError(t, err)
	assert.False(t, ok)

	// Both checks served from the single lazy fetch.
	assert.Equal(t, 1, fetcher.calls)

	cache.Invalidate()
	_, err = cache.HasEntityType(context.Background(), "Task")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}
