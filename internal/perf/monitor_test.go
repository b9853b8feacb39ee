package perf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Property 6: performance percentiles. For samples {1us, ..., 100us},
// p95 = 95, p99 = 99, average = 50.5.
func TestMonitorPercentiles(t *testing.T) {
	m := NewMonitor()
	for i := 1; i <= 100; i++ {
		m.RecordLatency(float64(i))
	}

	assert.Equal(t, 50.5, m.AverageLatency())
	assert.Equal(t, 95.0, m.P95())
	assert.Equal(t, 99.0, m.P99())
}

func TestMonitorEmpty(t *testing.T) {
	m := NewMonitor()
	assert.Equal(t, 0.0, m.AverageLatency())
	assert.Equal(t, 0.0, m.P95())
	assert.Equal(t, 0.0, m.P99())
}

func TestMonitorFallbackBelowThreshold(t *testing.T) {
	m := NewMonitor()
	for i := 1; i <= 10; i++ {
		m.RecordLatency(float64(i))
	}
	// n=10 < 20, so both percentiles fall back to the average.
	assert.Equal(t, m.AverageLatency(), m.P95())
	assert.Equal(t, m.AverageLatency(), m.P99())

	for i := 11; i <= 50; i++ {
		m.RecordLatency(float64(i))
	}
	// n=50: p95 now computed, but p99 still falls back (n < 100).
	assert.NotEqual(t, m.AverageLatency(), m.P95())
	assert.Equal(t, m.AverageLatency(), m.P99())
}

func TestMonitorFIFOEviction(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < MaxSamples+10; i++ {
		m.RecordLatency(float64(i))
	}
	// The oldest 10 samples (0..9) should have been evicted.
	avg := m.AverageLatency()
	assert.Greater(t, avg, 9.0)
}

func TestMonitorReset(t *testing.T) {
	m := NewMonitor()
	m.RecordLatency(5)
	m.RecordThroughput(100)
	m.Reset()
	assert.Equal(t, 0.0, m.AverageLatency())
	assert.Equal(t, 0.0, m.Throughput())
}

func TestMonitorThroughputThrottled(t *testing.T) {
	m := NewMonitor()
	m.RecordThroughput(10)
	m.RecordThroughput(20) // within the same interval, ignored
	assert.Equal(t, 10.0, m.Throughput())
}
