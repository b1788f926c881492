// Package observability provides Prometheus metrics for monitoring
// empfang API traffic.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts API calls by operation, model, and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "empfang_requests_total",
			Help: "Total API requests",
		},
		[]string{"operation", "model", "status"},
	)

	// RequestDuration records API call duration in seconds by operation and model.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "empfang_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"operation", "model"},
	)

	// StreamsActive tracks the number of open SSE streams.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "empfang_streams_active",
			Help: "Active SSE streams",
		},
	)

	// StreamEventsTotal counts decoded streaming events by event type.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "empfang_stream_events_total",
			Help: "Decoded streaming events",
		},
		[]string{"event_type"},
	)

	// StreamOutcomesTotal counts finished streams by outcome
	// (completed, failed, disconnected).
	StreamOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "empfang_stream_outcomes_total",
			Help: "Finished streams by outcome",
		},
		[]string{"outcome"},
	)

	// TokensTotal counts tokens reported in usage by direction (input/output).
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "empfang_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// ToolExecutionsTotal counts bridged tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "empfang_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamsActive,
		StreamEventsTotal,
		StreamOutcomesTotal,
		TokensTotal,
		ToolExecutionsTotal,
	)
}
