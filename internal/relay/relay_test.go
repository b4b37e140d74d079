package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbridge/internal/config"
	"sgbridge/internal/logger"
	"sgbridge/pkg/logging"
	"sgbridge/pkg/models"
)

func testPayload() *models.DispatchPayload {
	return &models.DispatchPayload{
		Meta: map[string]interface{}{
			"attribute_name": "sg_status_list",
			"entity_type":    "Task",
			"entity_id":      float64(11793),
		},
		SessionUUID: "e8b61250-f31b-11e8-bb75-0242ac110004",
		User:        &models.EntityRef{Type: "HumanUser", ID: 42},
		Project:     &models.EntityRef{Type: "Project", ID: 1, Name: "Bunny"},
		EntityType:  "Task",
		EntityID:    11793,
	}
}

func TestDeliver(t *testing.T) {
	var gotPath, gotContentType, gotEventID string
	var gotBody models.DispatchPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotEventID = r.Header.Get("X-Event-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := New(config.RelayConfig{Timeout: time.Second}, logger.NopLogger())

	ctx := logging.WithEventID(context.Background(), 4044184)
	err := r.Deliver(ctx, server.URL+"/sg2jira/default/Task/11793", testPayload())
	require.NoError(t, err)

	assert.Equal(t, "/sg2jira/default/Task/11793", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "4044184", gotEventID)
	assert.Equal(t, "Task", gotBody.EntityType)
	assert.Equal(t, int64(11793), gotBody.EntityID)
	require.NotNil(t, gotBody.Project)
	assert.Equal(t, "Bunny", gotBody.Project.Name)
}

func TestDeliverNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	r := New(config.RelayConfig{Timeout: time.Second}, logger.NopLogger())

	err := r.Deliver(context.Background(), server.URL+"/Task/1", testPayload())
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, http.StatusBadGateway, deliveryErr.StatusCode)
}

func TestDeliverTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	r := New(config.RelayConfig{Timeout: time.Second}, logger.NopLogger())

	err := r.Deliver(context.Background(), server.URL+"/Task/1", testPayload())
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Error(t, deliveryErr.Cause)
}

func TestReset(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := New(config.RelayConfig{Timeout: time.Second}, logger.NopLogger())

	// The sync url carries direction and settings segments; the reset call
	// targets the host root.
	err := r.Reset(context.Background(), server.URL+"/sg2jira/default")
	require.NoError(t, err)
	assert.Equal(t, "/admin/reset", gotPath)
}

func TestResetMalformedEndpoint(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	r := New(config.RelayConfig{Timeout: time.Second}, logger.NopLogger())

	// Missing scheme or host is a local failure: no error, no network call.
	for _, endpoint := range []string{"", "/sg2jira/default", "localhost:9090/sg2jira"} {
		err := r.Reset(context.Background(), endpoint)
		assert.NoError(t, err, endpoint)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestResetNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := New(config.RelayConfig{Timeout: time.Second}, logger.NopLogger())

	err := r.Reset(context.Background(), server.URL+"/sg2jira/default")
	require.Error(t, err)

	var deliveryErr *DeliveryError
	assert.ErrorAs(t, err, &deliveryErr)
}

func TestDeliverCircuitBreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	r := New(config.RelayConfig{
		Timeout: time.Second,
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:      true,
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      time.Minute,
			FailureRatio: 0.5,
			MinRequests:  1,
		},
	}, logger.NopLogger())

	err := r.Deliver(context.Background(), server.URL+"/Task/1", testPayload())
	require.Error(t, err)

	// The breaker tripped on the first failure; the second delivery fails
	// fast without reaching the server.
	err = r.Deliver(context.Background(), server.URL+"/Task/1", testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
