package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/myorg/scaledclock/internal/clock"
)

const (
	// Histogram range: 1 microsecond to 1 hour
	minValueUs = 1
	maxValueUs = 3_600_000_000
	sigFigs    = 3
)

// Collector aggregates statistics about elapsed notifications.
// It implements clock.Listener.
type Collector struct {
	interval time.Duration

	mu        sync.Mutex
	lag       *hdrhistogram.Histogram // ScaledElapsed - interval
	gap       *hdrhistogram.Histogram // real time between consecutive events
	realDelta *hdrhistogram.Histogram // real time of the crossing sample
	byScale   map[string]int64
	lastFire  time.Time
	startTime time.Time

	count atomic.Int64
}

// NewCollector creates a Collector for a clock with the given interval.
func NewCollector(interval time.Duration) *Collector {
	return &Collector{
		interval:  interval,
		lag:       newHistogram(),
		gap:       newHistogram(),
		realDelta: newHistogram(),
		byScale:   make(map[string]int64),
		startTime: time.Now(),
	}
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minValueUs, maxValueUs, sigFigs)
}

func record(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < minValueUs {
		us = minValueUs
	}
	if us > maxValueUs {
		us = maxValueUs
	}
	_ = h.RecordValue(us)
}

// OnElapsed records one notification.
func (c *Collector) OnElapsed(ev clock.ElapsedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record(c.lag, ev.ScaledElapsed-c.interval)
	record(c.realDelta, ev.RealDelta)
	if !c.lastFire.IsZero() {
		record(c.gap, ev.Timestamp.Sub(c.lastFire))
	}
	c.lastFire = ev.Timestamp
	c.byScale[scaleKey(ev.ScalePercent)]++

	c.count.Add(1)
}

func scaleKey(percent float64) string {
	return strconv.FormatFloat(percent, 'f', -1, 64)
}

// Count returns the number of notifications recorded.
func (c *Collector) Count() int64 {
	return c.count.Load()
}

// GetSnapshot returns a point-in-time snapshot of all statistics.
func (c *Collector) GetSnapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Since(c.startTime)
	count := c.count.Load()

	byScale := make(map[string]int64, len(c.byScale))
	for k, v := range c.byScale {
		byScale[k] = v
	}

	snap := &Snapshot{
		StartTime: c.startTime,
		Duration:  duration,
		Interval:  c.interval,
		Events:    count,
		Lag:       distribution(c.lag),
		Gap:       distribution(c.gap),
		RealDelta: distribution(c.realDelta),
		ByScale:   byScale,
	}
	if duration.Seconds() > 0 {
		snap.Rate = float64(count) / duration.Seconds()
	}
	return snap
}

func distribution(h *hdrhistogram.Histogram) DistStats {
	if h.TotalCount() == 0 {
		return DistStats{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return DistStats{
		Count:  h.TotalCount(),
		Min:    us(h.Min()),
		Max:    us(h.Max()),
		Mean:   time.Duration(h.Mean() * float64(time.Microsecond)),
		StdDev: time.Duration(h.StdDev() * float64(time.Microsecond)),
		P50:    us(h.ValueAtQuantile(50)),
		P90:    us(h.ValueAtQuantile(90)),
		P99:    us(h.ValueAtQuantile(99)),
	}
}

// Reset clears all collected statistics and resets the start time.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lag.Reset()
	c.gap.Reset()
	c.realDelta.Reset()
	c.byScale = make(map[string]int64)
	c.lastFire = time.Time{}
	c.startTime = time.Now()
	c.count.Store(0)
}
