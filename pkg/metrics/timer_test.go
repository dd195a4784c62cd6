package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_duration_seconds",
		Help: "Test duration histogram",
	})

	NewTimer().ObserveDuration(histogram)

	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "test_duration_vec_seconds",
			Help: "Test duration histogram vec",
		},
		[]string{"operation"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(histogramVec, "drain")
	timer.ObserveDurationVec(histogramVec, "remediate")

	assert.Equal(t, 2, testutil.CollectAndCount(histogramVec))
}

type staticStats QueueStats

func (s staticStats) Stats() QueueStats { return QueueStats(s) }

func TestCollectorPublishesQueueGauges(t *testing.T) {
	c := NewCollector(staticStats{Backlog: 4, Pending: 7, Capacity: 10}, time.Hour)
	c.collect()

	assert.Equal(t, float64(4), testutil.ToFloat64(QueueBacklog))
	assert.Equal(t, float64(7), testutil.ToFloat64(QueuePending))
}
