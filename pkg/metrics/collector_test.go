package metrics

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type fakeProbe struct {
	pingErr error
	count   int64
}

func (f *fakeProbe) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeProbe) Count(ctx context.Context) (int64, error) {
	return f.count, nil
}

func TestCollector_Healthy(t *testing.T) {
	hc := NewHealthChecker("", "store")
	c := NewCollector(&fakeProbe{count: 42}, hc, zerolog.New(io.Discard), time.Hour)

	c.collect()

	if got := testutil.ToFloat64(DocumentsTotal); got != 42 {
		t.Errorf("DocumentsTotal = %v, want 42", got)
	}
	if hc.GetReadiness().Status != "ready" {
		t.Error("store should be ready after a successful ping")
	}
}

func TestCollector_PingFails(t *testing.T) {
	hc := NewHealthChecker("", "store")
	c := NewCollector(&fakeProbe{pingErr: errors.New("no reachable servers")}, hc, zerolog.New(io.Discard), time.Hour)

	c.collect()

	health := hc.GetHealth()
	if health.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %s", health.Status)
	}
	if health.Components["store"] != "unhealthy: no reachable servers" {
		t.Errorf("unexpected store status: %s", health.Components["store"])
	}
}

func TestCollector_StartStop(t *testing.T) {
	hc := NewHealthChecker("", "store")
	c := NewCollector(&fakeProbe{count: 1}, hc, zerolog.New(io.Discard), 10*time.Millisecond)

	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()

	if hc.GetReadiness().Status != "ready" {
		t.Error("collector should have registered the store")
	}
}
