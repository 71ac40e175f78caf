package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/session"
)

// =============================================================================
// Prometheus Metrics for the Question Pipeline
// =============================================================================

// Metrics holds the server's collectors on a private registry so several
// servers (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// questionsTotal counts answered questions by result kind.
	// Labels: result (table, plot, scalar, error)
	questionsTotal *prometheus.CounterVec

	// failuresTotal counts error results by failure kind.
	// Labels: kind (empty_generation, invalid_syntax, execution_failed, ...)
	failuresTotal *prometheus.CounterVec

	// questionSeconds measures question latency end to end.
	questionSeconds prometheus.Histogram

	// sessionsActive tracks registered sessions.
	sessionsActive prometheus.Gauge

	// uploadsTotal counts dataset uploads by outcome.
	// Labels: status (ok, rejected, too_large)
	uploadsTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		questionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatyfile",
			Subsystem: "session",
			Name:      "questions_total",
			Help:      "Questions answered by result kind",
		}, []string{"result"}),
		failuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatyfile",
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Error results by failure kind",
		}, []string{"kind"}),
		questionSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatyfile",
			Subsystem: "session",
			Name:      "question_duration_seconds",
			Help:      "Question latency including generation and execution",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatyfile",
			Subsystem: "server",
			Name:      "sessions_active",
			Help:      "Sessions currently registered",
		}),
		uploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatyfile",
			Subsystem: "server",
			Name:      "uploads_total",
			Help:      "Dataset uploads by outcome",
		}, []string{"status"}),
	}
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordTurn records one answered question.
func (m *Metrics) RecordTurn(t session.Turn, elapsed time.Duration) {
	m.questionsTotal.WithLabelValues(string(t.Result.Kind)).Inc()
	if t.Result.Kind == engine.ResultError {
		m.failuresTotal.WithLabelValues(string(t.Result.Error.Kind)).Inc()
	}
	m.questionSeconds.Observe(elapsed.Seconds())
}

// RecordUpload records a dataset upload outcome.
func (m *Metrics) RecordUpload(status string) {
	m.uploadsTotal.WithLabelValues(status).Inc()
}

// SetSessions sets the number of registered sessions.
func (m *Metrics) SetSessions(n int) {
	m.sessionsActive.Set(float64(n))
}
