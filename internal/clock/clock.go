// Package clock provides ScaledClock, a polling timer whose elapsed time runs
// at an adjustable fraction of real time and which notifies listeners each
// time the scaled elapsed time reaches a configured interval.
package clock

import "time"

// ElapsedEvent is delivered to listeners when the scaled interval is reached.
type ElapsedEvent struct {
	// Timestamp is the clock reading of the sample that crossed the interval.
	Timestamp time.Time
	// ScaledElapsed is the accumulated scaled time at the crossing.
	ScaledElapsed time.Duration
	// ScalePercent is the scale in effect for the crossing sample (0-100).
	ScalePercent float64
	// RealDelta is the real time between the crossing sample and the previous one.
	RealDelta time.Duration
}

// Listener receives elapsed notifications.
// OnElapsed runs on the goroutine that took the sample, normally the polling
// loop, so implementations must return quickly.
type Listener interface {
	OnElapsed(ev ElapsedEvent)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(ev ElapsedEvent)

// OnElapsed calls f(ev).
func (f ListenerFunc) OnElapsed(ev ElapsedEvent) {
	f(ev)
}

// State is a point-in-time view of a ScaledClock taken without sampling.
type State struct {
	Running      bool          `json:"running"`
	ScalePercent float64       `json:"scale_percent"`
	Elapsed      time.Duration `json:"elapsed"`
	Interval     time.Duration `json:"interval"`
	AutoReset    bool          `json:"auto_reset"`
	HasBaseline  bool          `json:"has_baseline"`
}

// clampFactor converts a percentage into a factor in [0, 1].
func clampFactor(percent float64) float64 {
	f := percent / 100.0
	// NaN fails both comparisons below; treat it as paused.
	if f != f {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func durationToMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
