// Package metrics instruments cube-action with Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cubeaction"

// Outcome labels for behavior observations.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	TapsTotal        *prometheus.CounterVec
	BehaviorDuration *prometheus.HistogramVec
	BehaviorFailures *prometheus.CounterVec
	ActiveBehaviors  prometheus.Gauge
	Discovery        prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "taps_total",
				Help:      "Cube taps handled, by cube identity and behavior",
			},
			[]string{"cube", "behavior"},
		),
		BehaviorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "behavior_duration_seconds",
				Help:      "Duration of tap behaviors in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
			},
			[]string{"behavior", "outcome"},
		),
		BehaviorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "behavior_failures_total",
				Help:      "Tap behaviors that ended with an error",
			},
			[]string{"behavior"},
		),
		ActiveBehaviors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_behaviors",
				Help:      "Tap behaviors currently running",
			},
		),
		Discovery: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "discovery_duration_seconds",
				Help:      "Time spent waiting for all cubes to be observed",
				Buckets:   []float64{1, 5, 10, 20, 40, 60, 90, 120},
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.TapsTotal, m.BehaviorDuration, m.BehaviorFailures, m.ActiveBehaviors, m.Discovery)
	}
	return m
}

// TapStarted records a tap and marks a behavior as running.
func (m *Metrics) TapStarted(cube, behavior string) {
	if m == nil {
		return
	}
	m.TapsTotal.WithLabelValues(cube, behavior).Inc()
	m.ActiveBehaviors.Inc()
}

// TapFinished records how a tap behavior ended.
func (m *Metrics) TapFinished(behavior string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.ActiveBehaviors.Dec()

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
		m.BehaviorFailures.WithLabelValues(behavior).Inc()
	}
	m.BehaviorDuration.WithLabelValues(behavior, outcome).Observe(elapsed.Seconds())
}

// DiscoveryFinished records cube discovery time.
func (m *Metrics) DiscoveryFinished(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Discovery.Observe(elapsed.Seconds())
}
