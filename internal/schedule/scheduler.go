package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scaler is the target of scale changes. *clock.ScaledClock satisfies it.
type Scaler interface {
	SetScale(percent float64)
}

// Scheduler applies a list of changes to a Scaler at their offsets.
type Scheduler struct {
	clock     clockwork.Clock
	target    Scaler
	changes   []Change
	listeners []func(Change)
	logger    *slog.Logger
	applied   int
	mu        sync.Mutex
	done      chan struct{}
	wg        sync.WaitGroup
	started   bool
	stopped   bool
}

// NewScheduler creates a scheduler. A nil clk uses the real clock.
func NewScheduler(target Scaler, changes []Change, clk clockwork.Clock) *Scheduler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	return &Scheduler{
		clock:   clk,
		target:  target,
		changes: Sorted(changes),
		logger:  slog.New(slog.DiscardHandler),
		done:    make(chan struct{}),
	}
}

// SetLogger sets the logger used when changes are applied.
func (s *Scheduler) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger
	}
}

// AddListener registers fn to be called after each applied change.
func (s *Scheduler) AddListener(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start runs the schedule in a goroutine. Offsets are measured from this call.
// Calling Start more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	s.wg.Add(1)
	go s.run(ctx, s.clock.Now())
}

// Stop ends the schedule early. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
}

// Wait blocks until every change was applied or the scheduler was stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Applied returns the number of changes applied so far.
func (s *Scheduler) Applied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

func (s *Scheduler) run(ctx context.Context, start time.Time) {
	defer s.wg.Done()

	for _, c := range s.changes {
		if wait := c.After - s.clock.Since(start); wait > 0 {
			timer := s.clock.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.done:
				timer.Stop()
				return
			case <-timer.Chan():
			}
		}

		s.target.SetScale(c.Percent)

		s.mu.Lock()
		s.applied++
		listeners := make([]func(Change), len(s.listeners))
		copy(listeners, s.listeners)
		logger := s.logger
		s.mu.Unlock()

		logger.Info("scale changed",
			slog.Duration("after", c.After),
			slog.Float64("percent", c.Percent),
		)
		for _, fn := range listeners {
			fn(c)
		}
	}
}
