package metrics

import (
	"net/http"
	"time"

	prometheus "github.com/prometheus/client_golang/prometheus"
	promauto "github.com/prometheus/client_golang/prometheus/promauto"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	gateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgate_gate_decisions_total",
			Help: "Gate decisions by outcome and deny reason",
		},
		[]string{"outcome", "reason", "network"},
	)

	approvalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgate_approvals_total",
			Help: "Approval records by lifecycle status",
		},
		[]string{"status"},
	)

	credentialCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgate_credential_cache_total",
			Help: "Credential cache lookups by result",
		},
		[]string{"result"},
	)

	credentialFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgate_credential_failures_total",
			Help: "Credential lookups that did not yield a usable credential",
		},
		[]string{"network", "kind"},
	)

	taskTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgate_task_transitions_total",
			Help: "Background task state transitions",
		},
		[]string{"status"},
	)

	tasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adgate_tasks_running",
			Help: "Background tasks currently running",
		},
	)

	toolExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adgate_tool_execution_duration_seconds",
			Help:    "Duration of executed tool calls",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"network", "status"},
	)
)

// RecordHTTPRequest records an HTTP request handled by the API
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	statusClass := "unknown"
	switch {
	case status >= 200 && status < 300:
		statusClass = "2xx"
	case status >= 300 && status < 400:
		statusClass = "3xx"
	case status >= 400 && status < 500:
		statusClass = "4xx"
	case status >= 500:
		statusClass = "5xx"
	}

	httpRequestsTotal.WithLabelValues(method, route, statusClass).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordGateDecision records the outcome of gating one tool call
func RecordGateDecision(outcome, reason, network string) {
	gateDecisionsTotal.WithLabelValues(outcome, reason, network).Inc()
}

// RecordApproval records an approval entering a lifecycle status
func RecordApproval(status string) {
	approvalsTotal.WithLabelValues(status).Inc()
}

// RecordCredentialCacheHit records a credential served from cache
func RecordCredentialCacheHit() {
	credentialCacheTotal.WithLabelValues("hit").Inc()
}

// RecordCredentialCacheMiss records a credential fetched from the system of record
func RecordCredentialCacheMiss() {
	credentialCacheTotal.WithLabelValues("miss").Inc()
}

// RecordCredentialFailure records a failed lookup; kind is not_found, transport or expired
func RecordCredentialFailure(network, kind string) {
	credentialFailuresTotal.WithLabelValues(network, kind).Inc()
}

// RecordTaskTransition records a background task entering status
func RecordTaskTransition(status string) {
	taskTransitionsTotal.WithLabelValues(status).Inc()
}

// SetTasksRunning sets the running task gauge
func SetTasksRunning(n int) {
	tasksRunning.Set(float64(n))
}

// RecordToolExecution records the duration of an executed tool call
func RecordToolExecution(network, status string, duration time.Duration) {
	toolExecutionDuration.WithLabelValues(network, status).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
