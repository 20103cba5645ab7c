// Package metrics holds the prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Questions handed out, by source: fallback or generated
	QuestionsSourced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biopractice_questions_sourced_total",
			Help: "Total number of questions returned, by source",
		},
		[]string{"source", "exam_board"},
	)

	// Session lifecycle events: created, finalized
	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biopractice_session_events_total",
			Help: "Total number of session lifecycle events",
		},
		[]string{"event"},
	)

	// Calls to the language model, by operation and outcome
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biopractice_llm_calls_total",
			Help: "Total number of language model calls",
		},
		[]string{"operation", "status"}, // status: success/retry/failure
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biopractice_llm_call_duration_seconds",
			Help:    "Time spent waiting for the language model",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"operation"},
	)

	// Auth events: login, register, refresh, logout
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biopractice_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"action", "status"},
	)
)

// ObserveLLMCall records one language model call attempt.
func ObserveLLMCall(operation, status string, d time.Duration) {
	LLMCalls.WithLabelValues(operation, status).Inc()
	LLMDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Status maps an error to a success/failure label.
func Status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
