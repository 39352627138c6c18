package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// SessionMetrics records session lifecycle outcomes.
type SessionMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	wipes      prometheus.Counter
}

// NewSessionMetrics registers the session metrics on the provided registerer.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_operations_total",
		Help: "Session operations by name and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "session_operation_duration_seconds",
		Help:    "Duration of remote-backed session operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	wipes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_storage_wipes_total",
		Help: "Stored sessions discarded because they could not be decoded.",
	})
	reg.MustRegister(operations, duration, wipes)
	return &SessionMetrics{
		operations: operations,
		duration:   duration,
		wipes:      wipes,
	}
}

// Observe records one operation outcome and its duration.
func (s *SessionMetrics) Observe(operation, outcome string, duration time.Duration) {
	if s == nil || s.operations == nil {
		return
	}
	operation = normalizeLabel(operation)
	s.operations.WithLabelValues(operation, normalizeLabel(outcome)).Inc()
	s.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncStorageWipe counts a corrupted stored session being discarded.
func (s *SessionMetrics) IncStorageWipe() {
	if s == nil || s.wipes == nil {
		return
	}
	s.wipes.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
