package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/myorg/scaledclock/internal/clock"
	"github.com/myorg/scaledclock/internal/metrics"
)

type staticState struct {
	state clock.State
}

func (s staticState) Snapshot() clock.State {
	return s.state
}

func newTestServer(t *testing.T, stats StatsSource) (*Server, staticState) {
	t.Helper()

	src := staticState{state: clock.State{
		Running:      true,
		ScalePercent: 50,
		Elapsed:      120 * time.Millisecond,
		Interval:     time.Second,
		AutoReset:    true,
		HasBaseline:  true,
	}}

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewPromCollector(src))

	return NewServer(":0", reg, src, stats, nil), src
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	s, _ := newTestServer(t, nil)

	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.Addr() != ":0" {
		t.Errorf("Addr() = %q, want :0", s.Addr())
	}
	if s.server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want %v", s.server.ReadTimeout, DefaultReadTimeout)
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rec.Body.String(); body != `{"status":"healthy"}` {
		t.Errorf("body = %q", body)
	}
}

func TestHandleState(t *testing.T) {
	s, src := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got clock.State
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if got != src.state {
		t.Errorf("state = %+v, want %+v", got, src.state)
	}
}

func TestHandleStats(t *testing.T) {
	collector := metrics.NewCollector(100 * time.Millisecond)
	collector.OnElapsed(clock.ElapsedEvent{
		Timestamp:     time.Now(),
		ScaledElapsed: 101 * time.Millisecond,
		ScalePercent:  100,
		RealDelta:     time.Millisecond,
	})

	s, _ := newTestServer(t, collector)

	rec := get(t, s.Handler(), "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"events":1`) {
		t.Errorf("body missing event count: %s", rec.Body.String())
	}
}

func TestHandleStats_NotConfigured(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/stats")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"scaledclock_scale_percent 50",
		"scaledclock_interval_seconds 1",
		"scaledclock_running 1",
		"scaledclock_elapsed_total 0",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestStartShutdown(t *testing.T) {
	s, _ := newTestServer(t, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	// Give ListenAndServe a moment to bind.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() = %v after shutdown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
