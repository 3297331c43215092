// Package metrics exposes Prometheus instrumentation for probe and selection
// activity. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proxyscout/internal/storage/models"
)

// Selection outcomes.
const (
	SelectionQualified = "qualified"
	SelectionDegraded  = "degraded"
	SelectionNone      = "none"
)

var probeLatencyBuckets = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Recorder owns the collectors of one registry.
type Recorder struct {
	registry *prometheus.Registry

	probesTotal   *prometheus.CounterVec
	probeLatency  prometheus.Histogram
	evaluated     *prometheus.CounterVec
	fallbacks     prometheus.Counter
	selections    *prometheus.CounterVec
	lastComposite prometheus.Gauge
}

// New creates a Recorder backed by a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proxyscout",
			Subsystem: "probe",
			Name:      "total",
			Help:      "Count of probes by outcome",
		}, []string{"outcome"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "proxyscout",
			Subsystem: "probe",
			Name:      "latency_ms",
			Help:      "Time to first response byte of working probes",
			Buckets:   probeLatencyBuckets,
		}),
		evaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proxyscout",
			Subsystem: "engine",
			Name:      "candidates_evaluated_total",
			Help:      "Count of evaluated candidates",
		}, []string{"working"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proxyscout",
			Subsystem: "engine",
			Name:      "fallback_passes_total",
			Help:      "Count of fallback sampling passes",
		}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proxyscout",
			Subsystem: "engine",
			Name:      "selections_total",
			Help:      "Count of selection outcomes",
		}, []string{"outcome"}),
		lastComposite: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "proxyscout",
			Subsystem: "engine",
			Name:      "selected_composite_score",
			Help:      "Composite score of the last selected candidate",
		}),
	}
	r.registry.MustRegister(
		r.probesTotal,
		r.probeLatency,
		r.evaluated,
		r.fallbacks,
		r.selections,
		r.lastComposite,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveProbe records one probe outcome.
func (r *Recorder) ObserveProbe(o models.ProbeOutcome) {
	if r == nil {
		return
	}
	outcome := "working"
	if !o.Working {
		outcome = string(o.ErrorKind)
		if outcome == "" {
			outcome = string(models.ErrorKindOther)
		}
	}
	r.probesTotal.WithLabelValues(outcome).Inc()
	if o.Working && o.LatencyMS != nil {
		r.probeLatency.Observe(*o.LatencyMS)
	}
}

// ObserveCandidate records one evaluated candidate.
func (r *Recorder) ObserveCandidate(working bool) {
	if r == nil {
		return
	}
	label := "false"
	if working {
		label = "true"
	}
	r.evaluated.WithLabelValues(label).Inc()
}

// ObserveFallback records one fallback sampling pass.
func (r *Recorder) ObserveFallback() {
	if r == nil {
		return
	}
	r.fallbacks.Inc()
}

// ObserveSelection records the outcome of a selection.
func (r *Recorder) ObserveSelection(outcome string, composite float64) {
	if r == nil {
		return
	}
	r.selections.WithLabelValues(outcome).Inc()
	if outcome != SelectionNone {
		r.lastComposite.Set(composite)
	}
}
