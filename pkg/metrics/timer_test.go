package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDurationGrowsMonotonically(t *testing.T) {
	timer := NewTimer()
	require.False(t, timer.start.IsZero())

	time.Sleep(20 * time.Millisecond)
	first := timer.Duration()
	time.Sleep(20 * time.Millisecond)
	second := timer.Duration()

	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.Greater(t, second, first)
}

func TestTimerObserveDuration(t *testing.T) {
	// A throwaway histogram: registering the package's real collectors
	// twice would panic, and the observation math is the same.
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(histogram)

	assert.Greater(t, timer.Duration(), time.Duration(0))
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_vec_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDurationVec(histogramVec, "assign")

	assert.Greater(t, timer.Duration(), time.Duration(0))
}

func TestTimersAreIndependent(t *testing.T) {
	earlier := NewTimer()
	time.Sleep(20 * time.Millisecond)
	later := NewTimer()
	time.Sleep(20 * time.Millisecond)

	assert.Greater(t, earlier.Duration(), later.Duration())
}
