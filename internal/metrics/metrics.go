// Package metrics holds the Prometheus collectors for attendance traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service collectors.
type Metrics struct {
	Transitions    *prometheus.CounterVec
	SecurityEvents *prometheus.CounterVec
	LateArrivals   prometheus.Counter
	Latency        *prometheus.HistogramVec
}

// New registers the collectors on reg. Passing nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_transitions_total",
			Help: "Mark-in and mark-out attempts by outcome",
		}, []string{"action", "outcome"}),
		SecurityEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_security_events_total",
			Help: "Security events raised, by kind",
		}, []string{"kind"}),
		LateArrivals: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_late_arrivals_total",
			Help: "Check-ins recorded after the grace deadline",
		}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendance_operation_seconds",
			Help:    "Latency of attendance operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// Discard returns collectors bound to a throwaway registry.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
