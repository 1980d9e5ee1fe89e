package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer.start.IsZero() {
		t.Fatal("NewTimer() start time is zero")
	}
	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleep := 20 * time.Millisecond
	time.Sleep(sleep)

	first := timer.Duration()
	if first < sleep {
		t.Errorf("Timer.Duration() = %v, want >= %v", first, sleep)
	}

	time.Sleep(5 * time.Millisecond)
	if second := timer.Duration(); second <= first {
		t.Errorf("Duration should keep growing: first=%v, second=%v", first, second)
	}
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_chunk_seconds",
		Help: "Test histogram",
	})

	NewTimer().ObserveDuration(histogram)

	if n := testutil.CollectAndCount(histogram); n != 1 {
		t.Errorf("expected 1 collected metric, got %d", n)
	}
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "test_pipeline_seconds",
			Help: "Test histogram vec",
		},
		[]string{"pipeline"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(vec, "daily_counts")
	timer.ObserveDurationVec(vec, "top_user")

	if n := testutil.CollectAndCount(vec); n != 2 {
		t.Errorf("expected 2 label sets, got %d", n)
	}
}
