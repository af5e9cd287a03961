// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os/exec"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func handleFor(t *testing.T, srv *httptest.Server) *Handle {
	t.Helper()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return &Handle{Host: u.Hostname(), Port: port, HealthPath: "/system_stats"}
}

// TestAwaitReady_BoundedPolling verifies a never-ready service produces
// TimedOut after exactly MaxAttempts probes.
func TestAwaitReady_BoundedPolling(t *testing.T) {
	t.Parallel()

	var probes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewController(3, 0, nil)
	state, err := c.AwaitReady(context.Background(), handleFor(t, srv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != TimedOut {
		t.Errorf("state = %s, want timed_out", state)
	}
	if got := probes.Load(); got != 3 {
		t.Errorf("probed %d times, want exactly 3", got)
	}
}

func TestAwaitReady_ReadyOnFirstProbe(t *testing.T) {
	t.Parallel()

	var probes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewController(30, time.Hour, nil) // interval must never be hit
	state, err := c.AwaitReady(context.Background(), handleFor(t, srv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != Ready {
		t.Errorf("state = %s, want ready", state)
	}
	if probes.Load() != 1 {
		t.Errorf("probed %d times, want 1", probes.Load())
	}
}

func TestAwaitReady_RecoversMidBudget(t *testing.T) {
	t.Parallel()

	var probes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if probes.Add(1) < 3 {
			http.Error(w, "loading", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewController(10, 0, nil)
	state, err := c.AwaitReady(context.Background(), handleFor(t, srv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != Ready {
		t.Errorf("state = %s, want ready", state)
	}
	if probes.Load() != 3 {
		t.Errorf("probed %d times, want 3", probes.Load())
	}
}

func TestAwaitReady_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewController(30, time.Second, nil)
	_, err := c.AwaitReady(ctx, handleFor(t, srv))
	if err == nil {
		t.Fatal("cancelled context must surface as an error")
	}
}

func TestLaunchAndStop(t *testing.T) {
	t.Parallel()

	c := NewController(1, 0, nil)
	c.startCommand = func(ctx context.Context, scriptPath string) *exec.Cmd {
		return exec.CommandContext(ctx, "sleep", "60")
	}

	h, err := c.Launch(context.Background(), "unused", "127.0.0.1", 8188, "/system_stats")
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if h.URL() != "http://127.0.0.1:8188" {
		t.Errorf("URL = %q", h.URL())
	}

	done := make(chan error, 1)
	go func() { done <- c.Stop(h, 5*time.Second) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("stop did not return")
	}
}

func TestStop_NilHandle(t *testing.T) {
	t.Parallel()

	c := NewController(1, 0, nil)
	if err := c.Stop(nil, time.Second); err != nil {
		t.Errorf("stopping a nil handle must be a no-op, got %v", err)
	}
}
