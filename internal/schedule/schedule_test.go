package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myorg/scaledclock/internal/clock"
	"github.com/myorg/scaledclock/internal/config"
)

type recorder struct {
	mu     sync.Mutex
	values []float64
	ch     chan float64
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan float64, 16)}
}

func (r *recorder) SetScale(percent float64) {
	r.mu.Lock()
	r.values = append(r.values, percent)
	r.mu.Unlock()
	r.ch <- percent
}

func (r *recorder) next(t *testing.T) float64 {
	t.Helper()
	select {
	case v := <-r.ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scale change")
		return 0
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
schedule:
  - after: 20s
    percent: 0
  - after: 5s
    percent: 50
  - after: 5s
    percent: 75
`)
	changes, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, []Change{
		{After: 5 * time.Second, Percent: 50},
		{After: 5 * time.Second, Percent: 75},
		{After: 20 * time.Second, Percent: 0},
	}, changes)
}

func TestParseYAML_Errors(t *testing.T) {
	_, err := ParseYAML([]byte("schedule: [{{"))
	assert.Error(t, err)

	_, err = ParseYAML([]byte("schedule:\n  - after: -1s\n    percent: 10\n"))
	assert.ErrorContains(t, err, "after must be >= 0")
}

func TestFromConfig(t *testing.T) {
	changes := FromConfig([]config.ScheduleEntry{
		{After: 2 * time.Second, Percent: 10},
		{After: time.Second, Percent: 20},
	})
	assert.Equal(t, []Change{
		{After: time.Second, Percent: 20},
		{After: 2 * time.Second, Percent: 10},
	}, changes)
}

func TestScheduler_AppliesInOrder(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()

	var seen []Change
	var mu sync.Mutex
	s := NewScheduler(rec, []Change{
		{After: 20 * time.Millisecond, Percent: 0},
		{After: 0, Percent: 100},
		{After: 10 * time.Millisecond, Percent: 50},
	}, fc)
	s.AddListener(func(c Change) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	// Zero offset applies immediately.
	assert.Equal(t, 100.0, rec.next(t))

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(10 * time.Millisecond)
	assert.Equal(t, 50.0, rec.next(t))

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(10 * time.Millisecond)
	assert.Equal(t, 0.0, rec.next(t))

	s.Wait()
	assert.Equal(t, 3, s.Applied())

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
	assert.Equal(t, 50.0, seen[1].Percent)
}

func TestScheduler_StopInterrupts(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	s := NewScheduler(rec, []Change{{After: time.Hour, Percent: 10}}, fc)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Start(ctx)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	s.Stop()
	s.Stop()
	assert.Equal(t, 0, s.Applied())
	assert.Empty(t, rec.values)
}

func TestScheduler_ContextCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := NewScheduler(newRecorder(), []Change{{After: time.Hour, Percent: 10}}, fc)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, fc.BlockUntilContext(waitCtx, 1))

	cancel()
	s.Wait()
	assert.Equal(t, 0, s.Applied())
}

func TestScheduler_DrivesScaledClock(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := clock.New(1_000_000, 100, false, clock.WithClock(fc))
	c.Start()
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// Clock ticker
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	s := NewScheduler(c, []Change{{After: 10 * time.Millisecond, Percent: 25}}, fc)
	s.Start(ctx)
	defer s.Stop()
	// Clock ticker + schedule timer
	require.NoError(t, fc.BlockUntilContext(ctx, 2))

	fc.Advance(10 * time.Millisecond)
	require.Eventually(t, func() bool { return s.Applied() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 25.0, c.Scale())
}
