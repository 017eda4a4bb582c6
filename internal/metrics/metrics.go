package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
type Metrics struct {
	// Attempts by terminal outcome ("succeeded", "rejected", "failed") and source
	Attempts *prometheus.CounterVec

	// Pipeline stage latencies
	StageDuration *prometheus.HistogramVec

	// Fields the extractor could not read
	FieldMissing *prometheus.CounterVec
}

// New registers the pipeline metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pps_verification_attempts_total",
			Help: "Total verification attempts by outcome and source",
		}, []string{"outcome", "source"}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pps_verification_stage_duration_seconds",
			Help:    "Duration of verification pipeline stages",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		FieldMissing: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pps_verification_field_missing_total",
			Help: "Fields that could not be read from an attestation",
		}, []string{"field"}),
	}
}

// IncrementAttempt records a terminated attempt.
func (m *Metrics) IncrementAttempt(outcome, source string) {
	if m != nil {
		m.Attempts.WithLabelValues(outcome, source).Inc()
	}
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementFieldMissing records a field absent from an extraction.
func (m *Metrics) IncrementFieldMissing(field string) {
	if m != nil {
		m.FieldMissing.WithLabelValues(field).Inc()
	}
}
