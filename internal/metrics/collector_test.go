package metrics

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/myorg/scaledclock/internal/clock"
)

func event(at time.Time, elapsed time.Duration, scale float64) clock.ElapsedEvent {
	return clock.ElapsedEvent{
		Timestamp:     at,
		ScaledElapsed: elapsed,
		ScalePercent:  scale,
		RealDelta:     time.Millisecond,
	}
}

func TestNewCollector(t *testing.T) {
	c := NewCollector(100 * time.Millisecond)
	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	if c.byScale == nil {
		t.Error("byScale map not initialized")
	}
	if c.Count() != 0 {
		t.Errorf("expected 0 events, got %d", c.Count())
	}
}

func TestOnElapsed(t *testing.T) {
	c := NewCollector(100 * time.Millisecond)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.OnElapsed(event(base, 101*time.Millisecond, 100))
	c.OnElapsed(event(base.Add(200*time.Millisecond), 103*time.Millisecond, 50))
	c.OnElapsed(event(base.Add(400*time.Millisecond), 102*time.Millisecond, 50))

	snap := c.GetSnapshot()

	if snap.Events != 3 {
		t.Errorf("expected 3 events, got %d", snap.Events)
	}
	if snap.Interval != 100*time.Millisecond {
		t.Errorf("expected interval 100ms, got %v", snap.Interval)
	}

	// Lag is ScaledElapsed - interval: 1ms, 3ms, 2ms
	if snap.Lag.Count != 3 {
		t.Errorf("expected 3 lag samples, got %d", snap.Lag.Count)
	}
	if snap.Lag.Min < 990*time.Microsecond || snap.Lag.Min > 1010*time.Microsecond {
		t.Errorf("expected lag min ~1ms, got %v", snap.Lag.Min)
	}
	if snap.Lag.Max < 2990*time.Microsecond || snap.Lag.Max > 3010*time.Microsecond {
		t.Errorf("expected lag max ~3ms, got %v", snap.Lag.Max)
	}

	// Gaps only exist between consecutive events
	if snap.Gap.Count != 2 {
		t.Errorf("expected 2 gap samples, got %d", snap.Gap.Count)
	}
	if snap.Gap.P50 < 199*time.Millisecond || snap.Gap.P50 > 201*time.Millisecond {
		t.Errorf("expected gap p50 ~200ms, got %v", snap.Gap.P50)
	}

	if snap.ByScale["100"] != 1 {
		t.Errorf("expected 1 event at 100%%, got %d", snap.ByScale["100"])
	}
	if snap.ByScale["50"] != 2 {
		t.Errorf("expected 2 events at 50%%, got %d", snap.ByScale["50"])
	}
}

func TestOnElapsedClampsNegativeLag(t *testing.T) {
	c := NewCollector(time.Second)
	c.OnElapsed(event(time.Now(), 0, 100))

	snap := c.GetSnapshot()
	if snap.Lag.Count != 1 {
		t.Fatalf("expected 1 lag sample, got %d", snap.Lag.Count)
	}
	if snap.Lag.Max != time.Microsecond {
		t.Errorf("expected lag clamped to 1us, got %v", snap.Lag.Max)
	}
}

func TestEmptySnapshot(t *testing.T) {
	c := NewCollector(time.Second)
	snap := c.GetSnapshot()

	if snap.Events != 0 {
		t.Errorf("expected 0 events, got %d", snap.Events)
	}
	if snap.Lag != (DistStats{}) {
		t.Errorf("expected zero lag stats, got %+v", snap.Lag)
	}
}

func TestReset(t *testing.T) {
	c := NewCollector(10 * time.Millisecond)
	c.OnElapsed(event(time.Now(), 11*time.Millisecond, 100))
	c.OnElapsed(event(time.Now(), 12*time.Millisecond, 100))

	c.Reset()

	snap := c.GetSnapshot()
	if snap.Events != 0 {
		t.Errorf("expected 0 events after reset, got %d", snap.Events)
	}
	if snap.Lag.Count != 0 || snap.Gap.Count != 0 {
		t.Errorf("expected empty histograms after reset, got lag=%d gap=%d", snap.Lag.Count, snap.Gap.Count)
	}
	if len(snap.ByScale) != 0 {
		t.Errorf("expected empty by-scale counts after reset, got %v", snap.ByScale)
	}
}

func TestConcurrentOnElapsed(t *testing.T) {
	c := NewCollector(time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.OnElapsed(event(time.Now(), 2*time.Millisecond, 100))
			}
		}()
	}

	// Snapshots while recording
	go func() {
		for i := 0; i < 10; i++ {
			c.GetSnapshot()
		}
	}()

	wg.Wait()

	if c.Count() != 1000 {
		t.Errorf("expected 1000 events, got %d", c.Count())
	}
}

func TestSnapshotJSON(t *testing.T) {
	c := NewCollector(50 * time.Millisecond)
	base := time.Now()
	c.OnElapsed(event(base, 52*time.Millisecond, 100))
	c.OnElapsed(event(base.Add(50*time.Millisecond), 51*time.Millisecond, 100))

	snap := c.GetSnapshot()
	data, err := snap.ToJSONIndent()
	if err != nil {
		t.Fatalf("ToJSONIndent failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if raw["interval"] != "50ms" {
		t.Errorf("expected interval '50ms', got %v", raw["interval"])
	}
	lag, ok := raw["lag"].(map[string]any)
	if !ok {
		t.Fatalf("lag not an object: %T", raw["lag"])
	}
	if _, ok := lag["p99"].(string); !ok {
		t.Errorf("expected lag.p99 as string, got %T", lag["p99"])
	}

	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if decoded.Events != 2 || decoded.Interval != 50*time.Millisecond {
		t.Errorf("decoded snapshot mismatch: %+v", decoded)
	}
	if decoded.Lag.Max != snap.Lag.Max {
		t.Errorf("decoded lag max %v, expected %v", decoded.Lag.Max, snap.Lag.Max)
	}
}
