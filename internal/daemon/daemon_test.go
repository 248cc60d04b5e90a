package daemon

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startedFixture(t *testing.T) *fixture {
	t.Helper()
	fx := newFixture(t)
	// The shared fixture serves through httptest; for lifecycle tests the
	// daemon's own listener is exercised instead.
	fx.server.Close()
	return fx
}

func TestDaemonStartServesAndStops(t *testing.T) {
	fx := startedFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := fx.daemon.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer fx.daemon.Stop()

	resp, err := http.Get("http://" + fx.daemon.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("health over daemon listener: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	fx.daemon.Stop()
	fx.daemon.Stop() // second stop is a no-op

	if _, err := http.Get("http://" + fx.daemon.Addr() + "/api/health"); err == nil {
		t.Fatal("listener still accepting after stop")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	fx := startedFixture(t)
	ctx := context.Background()

	if err := fx.daemon.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer fx.daemon.Stop()

	second, err := New(fx.cfg, fx.store, fx.daemon.pipeline, fx.daemon.synth, fx.daemon.notifier, fx.daemon.logger)
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	err = second.Start(ctx)
	if err == nil {
		second.Stop()
		t.Fatal("second instance started while first held the lock")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("second start error = %v", err)
	}

	fx.daemon.Stop()

	// Lock released, the second instance may now start.
	if err := second.Start(ctx); err != nil {
		t.Fatalf("start after release: %v", err)
	}
	second.Stop()
}

func TestDaemonStartAfterContextCancel(t *testing.T) {
	fx := startedFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	if err := fx.daemon.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	// Cancellation shuts the server down without Stop being called.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := http.Get("http://" + fx.daemon.Addr() + "/api/health"); err != nil {
			fx.daemon.Stop()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("listener still accepting after context cancel")
}

func TestDaemonHealthReflectsStore(t *testing.T) {
	fx := newFixture(t)

	health := fx.daemon.Health(context.Background())
	if health.Status != "healthy" || health.Database != "connected" {
		t.Fatalf("health = %+v", health)
	}

	fx.store.Close()
	health = fx.daemon.Health(context.Background())
	if health.Status != "degraded" || !strings.HasPrefix(health.Database, "error:") {
		t.Fatalf("health after close = %+v", health)
	}
}
