package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest outcomes used as the "outcome" label of [IngestRecords].
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeInvalid = "invalid"
)

var (
	// Ingest Metrics
	IngestRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsync_ingest_records_total",
			Help: "Records processed by the ingest pipeline",
		},
		[]string{"kind", "outcome"},
	)

	IngestBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callsync_ingest_batch_duration_seconds",
			Help:    "Duration of one ingest batch in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	IngestFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsync_ingest_failures_total",
			Help: "Ingest batches aborted by a storage failure",
		},
		[]string{"kind"},
	)

	// Upstream Metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsync_upstream_requests_total",
			Help: "Requests sent to the Callyzer API",
		},
		[]string{"endpoint", "status_code"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callsync_upstream_request_duration_seconds",
			Help:    "Callyzer API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "callsync_circuit_breaker_state",
			Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP Metrics
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsync_webhook_requests_total",
			Help: "Webhook deliveries by response status",
		},
		[]string{"status_code"},
	)

	FetchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsync_fetch_runs_total",
			Help: "Fetch operations by endpoint and result status",
		},
		[]string{"endpoint", "status"},
	)
)

// RecordIngest records the counts and duration of one finished batch.
func RecordIngest(kind string, created, skipped, invalid int, duration time.Duration) {
	IngestRecords.WithLabelValues(kind, OutcomeCreated).Add(float64(created))
	IngestRecords.WithLabelValues(kind, OutcomeSkipped).Add(float64(skipped))
	IngestRecords.WithLabelValues(kind, OutcomeInvalid).Add(float64(invalid))
	IngestBatchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordIngestFailure counts a batch aborted by storage.
func RecordIngestFailure(kind string) {
	IngestFailures.WithLabelValues(kind).Inc()
}

// RecordUpstreamRequest records an upstream call. A statusCode of 0 means no response was received.
func RecordUpstreamRequest(endpoint string, statusCode int, duration time.Duration) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	UpstreamRequests.WithLabelValues(endpoint, code).Inc()
	UpstreamDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetCircuitBreakerState records the breaker state using gobreaker's numbering.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func RecordWebhook(statusCode int) {
	WebhookRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func RecordFetch(endpoint, status string) {
	FetchRuns.WithLabelValues(endpoint, status).Inc()
}
