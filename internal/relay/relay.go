package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/logger"
	"sgbridge/pkg/circuitbreaker"
	"sgbridge/pkg/logging"
	"sgbridge/pkg/metrics"
	"sgbridge/pkg/models"
)

// DeliveryError is the single failure type for outbound relay calls: any
// transport error or non-2xx response. Nothing is retried; the caller logs
// it and moves to the next event.
type DeliveryError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *DeliveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("delivery to %s failed: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("delivery to %s failed with status %d", e.URL, e.StatusCode)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// Relay performs the outbound HTTP calls of the trigger: event delivery to a
// sync endpoint and the admin reset notification.
type Relay struct {
	client  *http.Client
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func New(cfg config.RelayConfig, log logger.Logger) *Relay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	r := &Relay{
		client: &http.Client{Timeout: timeout},
		logger: log,
	}

	if cfg.CircuitBreaker.Enabled {
		cb := cfg.CircuitBreaker
		r.breaker = circuitbreaker.NewWrapper(circuitbreaker.Config{
			Name:        "relay",
			MaxRequests: cb.MaxRequests,
			Interval:    cb.Interval,
			Timeout:     cb.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= cb.MinRequests && failureRatio >= cb.FailureRatio
			},
		})
	}

	return r
}

// Deliver POSTs the payload to the destination URL exactly once.
func (r *Relay) Deliver(ctx context.Context, destURL string, payload *models.DispatchPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	start := time.Now()
	if err := r.post(ctx, destURL, body); err != nil {
		metrics.ObserveRelayDelivery(time.Since(start), "error")
		return err
	}

	metrics.ObserveRelayDelivery(time.Since(start), "success")
	r.logger.DebugwCtx(ctx, "Event delivered", "url", destURL)
	return nil
}

// Reset notifies the bridge serving endpoint to drop its cached state. The
// sync url carries direction and settings segments; only scheme and host are
// kept. An endpoint without both is a local validation failure: log and
// skip, no network call.
func (r *Relay) Reset(ctx context.Context, endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		r.logger.DebugwCtx(ctx, "Unable to extract server address, skipping bridge reset",
			"endpoint", endpoint,
		)
		return nil
	}

	resetURL := parsed.Scheme + "://" + parsed.Host + constants.AdminResetPath
	r.logger.DebugwCtx(ctx, "Resetting bridge", "url", resetURL)

	if err := r.post(ctx, resetURL, nil); err != nil {
		metrics.RelayResetsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.RelayResetsTotal.WithLabelValues("success").Inc()
	return nil
}

func (r *Relay) post(ctx context.Context, destURL string, body []byte) error {
	if r.breaker != nil {
		_, err := r.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
			return nil, r.doPost(ctx, destURL, body)
		})
		r.breaker.RecordRequest(err == nil)
		if err != nil {
			if r.breaker.IsOpen() {
				return &DeliveryError{URL: destURL, Cause: fmt.Errorf("circuit breaker is open: %w", err)}
			}
			return err
		}
		return nil
	}

	return r.doPost(ctx, destURL, body)
}

func (r *Relay) doPost(ctx context.Context, destURL string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destURL, reader)
	if err != nil {
		return &DeliveryError{URL: destURL, Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if eventID := logging.GetEventID(ctx); eventID != 0 {
		req.Header.Set("X-Event-Id", strconv.FormatInt(eventID, 10))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &DeliveryError{URL: destURL, Cause: err}
	}
	defer resp.Body.Close()

	// Drain a bounded slice of the body so the connection can be reused;
	// the response content itself is of no interest.
	io.Copy(io.Discard, io.LimitReader(resp.Body, constants.MaxRelayBodyBytes))

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return &DeliveryError{URL: destURL, StatusCode: resp.StatusCode}
	}

	return nil
}
