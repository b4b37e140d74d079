package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TriggerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_events_total",
			Help: "Total number of events processed by the trigger service (count)",
		},
		[]string{"decision"},
	)

	TriggerProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trigger_processing_duration_ms",
			Help:    "Processing duration per event in the trigger service in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"decision"},
	)

	RouteCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "route_cache_entries",
			Help: "Number of cached dispatch routes, negative entries included (count)",
		},
	)

	RouteResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_resolutions_total",
			Help: "Total number of dispatch route resolutions against the registry (count)",
		},
		[]string{"result"},
	)

	RouteCacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_cache_invalidations_total",
			Help: "Total number of route cache invalidations (count)",
		},
		[]string{"scope"},
	)

	RelayDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total number of event deliveries attempted by the relay (count)",
		},
		[]string{"status"},
	)

	RelayDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_delivery_duration_ms",
			Help:    "Duration of relay HTTP deliveries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	RelayResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_resets_total",
			Help: "Total number of remote reset notifications sent by the relay (count)",
		},
		[]string{"status"},
	)

	DedupEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_events_total",
			Help: "Total number of events checked against the duplicate guard (count)",
		},
		[]string{"status"},
	)

	SourceEventsReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_events_read_total",
			Help: "Total number of events read from the event source (count)",
		},
		[]string{"source"},
	)

	SourceReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_read_duration_ms",
			Help:    "Duration of event source reads in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"source"},
	)

	PollLastEventID = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poll_last_event_id",
			Help: "Highest event log id processed by the polling source (id)",
		},
	)

	SyncRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_requests_total",
			Help: "Total number of sync requests handled by the bridge (count)",
		},
		[]string{"direction", "status"},
	)

	SyncRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_request_duration_ms",
			Help:    "Duration of bridge sync request handling in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"direction"},
	)

	BridgeResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_resets_total",
			Help: "Total number of admin reset requests handled by the bridge (count)",
		},
	)

	AuditRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_total",
			Help: "Total number of sync audit records written (count)",
		},
		[]string{"driver", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterTriggerMetrics() {
	prometheus.MustRegister(TriggerEventsTotal)
	prometheus.MustRegister(TriggerProcessingDuration)
	prometheus.MustRegister(RouteCacheEntries)
	prometheus.MustRegister(RouteResolutionsTotal)
	prometheus.MustRegister(RouteCacheInvalidationsTotal)
	prometheus.MustRegister(RelayDeliveriesTotal)
	prometheus.MustRegister(RelayDeliveryDuration)
	prometheus.MustRegister(RelayResetsTotal)
	prometheus.MustRegister(DedupEventsTotal)
	prometheus.MustRegister(SourceEventsReadTotal)
	prometheus.MustRegister(SourceReadDuration)
	prometheus.MustRegister(PollLastEventID)
	registerFallbackUsageTotalOnce()
}

func RegisterBridgeMetrics() {
	prometheus.MustRegister(SyncRequestsTotal)
	prometheus.MustRegister(SyncRequestDuration)
	prometheus.MustRegister(BridgeResetsTotal)
	prometheus.MustRegister(AuditRecordsTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
	registerFallbackUsageTotalOnce()
}

func registerFallbackUsageTotalOnce() {
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveTriggerDuration(duration time.Duration, decision string) {
	TriggerProcessingDuration.WithLabelValues(decision).Observe(float64(duration.Milliseconds()))
}

func ObserveRelayDelivery(duration time.Duration, status string) {
	RelayDeliveriesTotal.WithLabelValues(status).Inc()
	RelayDeliveryDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveSyncRequest(direction string, duration time.Duration, status string) {
	SyncRequestsTotal.WithLabelValues(direction, status).Inc()
	SyncRequestDuration.WithLabelValues(direction).Observe(float64(duration.Milliseconds()))
}

func SetRouteCacheEntries(count int) {
	RouteCacheEntries.Set(float64(count))
}

func IncRouteResolution(result string) {
	RouteResolutionsTotal.WithLabelValues(result).Inc()
}

func IncRouteCacheInvalidation(scope string) {
	RouteCacheInvalidationsTotal.WithLabelValues(scope).Inc()
}

func IncSourceEventsRead(source string) {
	SourceEventsReadTotal.WithLabelValues(source).Inc()
}

func ObserveSourceReadDuration(source string, duration time.Duration) {
	SourceReadDuration.WithLabelValues(source).Observe(float64(duration.Milliseconds()))
}

func SetPollLastEventID(id int64) {
	PollLastEventID.Set(float64(id))
}

func IncAuditRecord(driver, status string) {
	AuditRecordsTotal.WithLabelValues(driver, status).Inc()
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
