package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ScaledClock accumulates real elapsed time multiplied by a scale factor in
// [0, 1] and notifies listeners whenever the accumulated time reaches the
// configured interval.
//
// A background goroutine samples the time source every poll interval while
// the clock is running. All state is guarded by a single mutex; listeners are
// invoked after the mutex is released so they may call back into the clock.
//
// Callers must Stop (or Shutdown) a running clock before dropping it, since
// the polling goroutine keeps the clock reachable.
type ScaledClock struct {
	interval   float64 // ms
	startScale float64 // percent
	autoReset  bool

	clock        clockwork.Clock
	pollInterval time.Duration
	logger       *slog.Logger

	mu          sync.Mutex
	factor      float64
	accumulated float64 // ms
	last        time.Time
	hasSample   bool
	running     bool
	loop        *loop
	listeners   []listenerEntry
	nextID      uint64
}

type listenerEntry struct {
	id uint64
	l  Listener
}

// New creates a stopped ScaledClock.
// intervalMs is the scaled threshold in milliseconds; startScale is the
// percentage applied on every Start and is clamped to [0, 100] only then.
func New(intervalMs, startScale float64, autoReset bool, opts ...Option) *ScaledClock {
	c := &ScaledClock{
		interval:     intervalMs,
		startScale:   startScale,
		autoReset:    autoReset,
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.factor = clampFactor(startScale)
	return c
}

// Start resets the accumulated time, applies the start scale and launches the
// polling goroutine. It does nothing if the clock is already running.
func (c *ScaledClock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}

	c.factor = clampFactor(c.startScale)
	c.accumulated = 0
	c.last = time.Time{}
	c.hasSample = false
	c.running = true

	l := newLoop()
	c.loop = l
	go c.run(l)

	c.logger.Debug("scaled clock started",
		slog.Float64("interval_ms", c.interval),
		slog.Float64("scale_percent", c.factor*100),
		slog.Bool("auto_reset", c.autoReset),
	)
}

// Stop marks the clock stopped and asks the polling goroutine to exit. It does
// not wait for the exit; a notification may still be delivered concurrently
// with Stop. Use Shutdown when that matters. Calling Stop on a stopped clock
// is a no-op.
func (c *ScaledClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *ScaledClock) stopLocked() {
	wasRunning := c.running
	c.running = false
	if c.loop != nil {
		c.loop.cancel()
	}
	if wasRunning {
		c.logger.Debug("scaled clock stopped",
			slog.Float64("elapsed_ms", c.accumulated),
		)
	}
}

// Shutdown stops the clock and waits until its polling goroutine has exited.
// Once it returns nil no further notification will come from the loop.
// It must not be called from a listener.
func (c *ScaledClock) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	l := c.loop
	c.stopLocked()
	c.mu.Unlock()

	if l == nil {
		return nil
	}

	select {
	case <-l.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the current polling goroutine exits.
// For a clock that was never started the channel is already closed.
func (c *ScaledClock) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loop == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.loop.exited
}

// SetScale sets the scale factor to percent/100 clamped to [0, 1]. The new
// factor applies from the next sample on.
func (c *ScaledClock) SetScale(percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factor = clampFactor(percent)
}

// Reset zeroes the accumulated time and drops the sample baseline. The running
// state and the scale are unchanged.
func (c *ScaledClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accumulated = 0
	c.last = time.Time{}
	c.hasSample = false
}

// GetTime takes a sample and returns the accumulated scaled time.
func (c *ScaledClock) GetTime() time.Duration {
	c.mu.Lock()
	ev, listeners, fired := c.sampleLocked()
	elapsed := msToDuration(c.accumulated)
	c.mu.Unlock()

	if fired {
		dispatch(listeners, ev)
	}
	return elapsed
}

// Running reports whether the clock is running.
func (c *ScaledClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Scale returns the current scale as a percentage in [0, 100].
func (c *ScaledClock) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factor * 100
}

// Interval returns the scaled threshold.
func (c *ScaledClock) Interval() time.Duration {
	return msToDuration(c.interval)
}

// AutoReset reports whether the clock rearms after firing.
func (c *ScaledClock) AutoReset() bool {
	return c.autoReset
}

// Snapshot returns the current state without taking a sample.
func (c *ScaledClock) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Running:      c.running,
		ScalePercent: c.factor * 100,
		Elapsed:      msToDuration(c.accumulated),
		Interval:     msToDuration(c.interval),
		AutoReset:    c.autoReset,
		HasBaseline:  c.hasSample,
	}
}

// AddListener attaches l and returns a function that detaches it.
// Listeners are invoked in the order they were added.
func (c *ScaledClock) AddListener(l Listener) (remove func()) {
	c.mu.Lock()
	id := c.addListenerLocked(l)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.listeners {
			if e.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *ScaledClock) addListenerLocked(l Listener) uint64 {
	c.nextID++
	c.listeners = append(c.listeners, listenerEntry{id: c.nextID, l: l})
	return c.nextID
}

// sampleFrom takes a sample on behalf of loop l. It returns false when l is no
// longer the clock's current loop, telling the goroutine to exit.
func (c *ScaledClock) sampleFrom(l *loop) bool {
	c.mu.Lock()
	if c.loop != l {
		c.mu.Unlock()
		return false
	}
	ev, listeners, fired := c.sampleLocked()
	c.mu.Unlock()

	if fired {
		dispatch(listeners, ev)
	}
	return true
}

// sampleLocked advances the accumulator by the real time since the previous
// sample times the current factor. A sample without a previous one only
// records the baseline. When the interval is reached it prepares an
// event and either rearms or stops the clock. The caller dispatches the event
// to the returned listeners after unlocking.
func (c *ScaledClock) sampleLocked() (ElapsedEvent, []Listener, bool) {
	if !c.running {
		return ElapsedEvent{}, nil, false
	}

	now := c.clock.Now()

	var (
		ev    ElapsedEvent
		fired bool
	)
	// The first sample after Start or Reset only sets the baseline.
	if c.hasSample {
		deltaMs := durationToMs(now.Sub(c.last))
		if deltaMs < 0 {
			deltaMs = 0
		}
		c.accumulated += deltaMs * c.factor

		if c.accumulated >= c.interval {
			ev = ElapsedEvent{
				Timestamp:     now,
				ScaledElapsed: msToDuration(c.accumulated),
				ScalePercent:  c.factor * 100,
				RealDelta:     msToDuration(deltaMs),
			}
			fired = true

			// Overshoot past the interval is dropped, not carried over.
			if c.autoReset {
				c.accumulated = 0
			} else {
				c.stopLocked()
			}
		}
	}

	c.last = now
	c.hasSample = true

	if !fired {
		return ev, nil, false
	}

	listeners := make([]Listener, len(c.listeners))
	for i, e := range c.listeners {
		listeners[i] = e.l
	}
	return ev, listeners, true
}

func dispatch(listeners []Listener, ev ElapsedEvent) {
	for _, l := range listeners {
		l.OnElapsed(ev)
	}
}
