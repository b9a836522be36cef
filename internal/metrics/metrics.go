// Package metrics provides Prometheus counters for form filling sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records session activity on its own registry
type Recorder struct {
	registry        *prometheus.Registry
	sessionsTotal   *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	documentsTotal  *prometheus.CounterVec
	fieldsExtracted prometheus.Histogram
	activeSessions  prometheus.Gauge
}

// NewRecorder creates a recorder with a fresh registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formfill_sessions_total",
				Help: "Sessions opened, by result",
			},
			[]string{"result"},
		),
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formfill_submissions_total",
				Help: "Answers submitted, by outcome",
			},
			[]string{"outcome"},
		),
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formfill_documents_total",
				Help: "Filled documents produced, by result",
			},
			[]string{"result"},
		),
		fieldsExtracted: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "formfill_fields_per_form",
				Help:    "Number of text fields found per opened form",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "formfill_active_sessions",
				Help: "Sessions currently held in memory",
			},
		),
	}
}

// SessionOpened records an opened session and the number of fields found
func (r *Recorder) SessionOpened(result string, fields int) {
	r.sessionsTotal.WithLabelValues(result).Inc()
	if result != "parse_error" {
		r.fieldsExtracted.Observe(float64(fields))
		r.activeSessions.Inc()
	}
}

// SessionClosed records a session being dropped
func (r *Recorder) SessionClosed() {
	r.activeSessions.Dec()
}

// Submission records the outcome of one answer
func (r *Recorder) Submission(outcome string) {
	r.submissions.WithLabelValues(outcome).Inc()
}

// DocumentWritten records a write attempt
func (r *Recorder) DocumentWritten(success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	r.documentsTotal.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
