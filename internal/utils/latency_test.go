package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatencyTrackerQuantile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	durations := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for _, d := range durations {
		tracker.Observe(d)
	}

	require.Equal(t, len(durations), tracker.Count())
	require.Equal(t, 30*time.Millisecond, tracker.Quantile(0.5))
	require.GreaterOrEqual(t, tracker.Quantile(0.95), 40*time.Millisecond)
}

func TestLatencyTrackerBoundedSize(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 0; i < 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	require.Equal(t, 3, tracker.Count())
	require.Equal(t, 7*time.Millisecond, tracker.Quantile(0))
}

func TestLatencyTrackerEmpty(t *testing.T) {
	require.Zero(t, NewLatencyTracker(0).Quantile(0.95))
}
