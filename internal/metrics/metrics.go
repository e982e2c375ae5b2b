// Package metrics records phase timings and distances of a compare run in a
// private prometheus registry and exports them as a node_exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/papapumpkin/rfplus/internal/batch"
)

const namespace = "rfplus"

// Recorder collects run metrics. It is safe for concurrent use, and a nil
// *Recorder ignores every observation.
type Recorder struct {
	registry    *prometheus.Registry
	phases      *prometheus.HistogramVec
	comparisons *prometheus.CounterVec
	distances   *prometheus.HistogramVec
}

// New returns a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		phases: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "comparison",
				Name:      "phase_seconds",
				Help:      "Time spent in each completion phase.",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
			}, []string{"phase"}),
		comparisons: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "comparison",
				Name:      "total",
				Help:      "Tree pairs compared, by status.",
			}, []string{"status"}),
		distances: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "comparison",
				Name:      "distance",
				Help:      "Robinson-Foulds distances of compared pairs, by kind.",
				Buckets:   prometheus.LinearBuckets(0, 2, 16),
			}, []string{"kind"}),
	}
	r.registry.MustRegister(r.phases, r.comparisons, r.distances)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObservePhase records the duration of one phase of a comparison.
func (r *Recorder) ObservePhase(phase string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.phases.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// ObserveOutcome counts a finished pair and, on success, its distances.
func (r *Recorder) ObserveOutcome(o batch.Outcome) {
	if r == nil {
		return
	}
	if o.Err != nil {
		r.comparisons.WithLabelValues("failed").Inc()
		return
	}
	r.comparisons.WithLabelValues("ok").Inc()
	r.distances.WithLabelValues("rf_plus").Observe(float64(o.RFPlus))
	r.distances.WithLabelValues("ef_rf_plus").Observe(float64(o.EFRFPlus))
	if o.RFMinusOK {
		r.distances.WithLabelValues("rf_minus").Observe(float64(o.RFMinus))
	}
}

// WriteTextfile writes every collected metric to path in the text
// exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
