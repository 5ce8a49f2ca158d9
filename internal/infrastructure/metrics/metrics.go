// Package metrics defines the Prometheus collectors for orchestration, model
// traffic and the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsynth_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "teamsynth_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	Executions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsynth_executions_total",
			Help: "Total number of orchestration runs",
		},
		[]string{"path", "agent_type", "success"},
	)

	StepResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsynth_step_results_total",
			Help: "Step outcomes by kind and status",
		},
		[]string{"kind", "status", "recovered"},
	)

	PlanFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamsynth_plan_fallbacks_total",
			Help: "Plans replaced by the single-step fallback",
		},
	)

	ModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsynth_model_requests_total",
			Help: "Generative model calls by outcome",
		},
		[]string{"outcome"},
	)

	ModelLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "teamsynth_model_latency_seconds",
			Help:    "Generative model call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsynth_chat_requests_total",
			Help: "Chat requests by outcome",
		},
		[]string{"outcome"},
	)

	RetrievedChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "teamsynth_retrieved_chunks",
			Help:    "Knowledge chunks injected per prompt",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	MemoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsynth_memory_operations_total",
			Help: "Conversation memory operations",
		},
		[]string{"op"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ObserveExecution records a finished run.
func ObserveExecution(path, agentType string, success bool) {
	Executions.WithLabelValues(path, agentType, boolLabel(success)).Inc()
}

// ObserveStep records a terminal step outcome.
func ObserveStep(kind, status string, recovered bool) {
	StepResults.WithLabelValues(kind, status, boolLabel(recovered)).Inc()
}
