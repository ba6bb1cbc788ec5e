package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Transitions.WithLabelValues("mark_in", "ok").Inc()
	m.LateArrivals.Inc()

	expected := `
# HELP attendance_late_arrivals_total Check-ins recorded after the grace deadline
# TYPE attendance_late_arrivals_total counter
attendance_late_arrivals_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "attendance_late_arrivals_total"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("mark_in", "ok")))
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestDiscardIsIndependent(t *testing.T) {
	a, b := Discard(), Discard()
	a.SecurityEvents.WithLabelValues("failed_geo").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SecurityEvents.WithLabelValues("failed_geo")))
}
