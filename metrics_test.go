package cort

import (
	"testing"
	"time"
)

func TestTPSCounterInvalidConfigPanics(t *testing.T) {
	tests := []struct {
		name       string
		windowSize time.Duration
		bucketSize time.Duration
	}{
		{"zero window", 0, 100 * time.Millisecond},
		{"zero bucket", time.Second, 0},
		{"bucket larger than window", time.Second, 2 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected NewTPSCounter to panic on an invalid config")
				}
			}()
			NewTPSCounter(tc.windowSize, tc.bucketSize)
		})
	}
}

func TestTPSCounterCountsIncrements(t *testing.T) {
	c := NewTPSCounter(time.Second, 100*time.Millisecond)
	for i := 0; i < 10; i++ {
		c.Increment()
	}
	if tps := c.TPS(); tps <= 0 {
		t.Errorf("expected a positive TPS after 10 increments, got %v", tps)
	}
}

func TestLatencyMetricsSamplePercentiles(t *testing.T) {
	var l LatencyMetrics
	for i := 1; i <= 100; i++ {
		l.Record(time.Duration(i) * time.Millisecond)
	}
	n := l.Sample()
	if n != 100 {
		t.Fatalf("expected 100 samples, got %d", n)
	}
	if l.P50 <= 0 || l.P90 <= l.P50 || l.P99 < l.P90 {
		t.Errorf("expected increasing percentiles, got P50=%v P90=%v P99=%v", l.P50, l.P90, l.P99)
	}
}

func TestMetricsSetGauges(t *testing.T) {
	var m Metrics
	m.setGauges(3, 7)
	if m.BucketCount != 3 || m.RegisteredFDs != 7 {
		t.Errorf("setGauges did not update gauges: got BucketCount=%d RegisteredFDs=%d", m.BucketCount, m.RegisteredFDs)
	}
}
