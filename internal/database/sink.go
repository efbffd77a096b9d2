package database

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/myorg/scaledclock/internal/clock"
)

const insertTimeout = 5 * time.Second

// EventWriter stores a single event. *EventStore satisfies it.
type EventWriter interface {
	InsertEvent(ctx context.Context, runID string, ev clock.ElapsedEvent) error
}

// EventSink stores elapsed events through an EventWriter. It implements
// clock.Listener. OnElapsed only enqueues; a writer goroutine performs the
// inserts so the clock's polling loop never waits on the database. Events
// arriving while the queue is full or after Close are dropped and counted.
type EventSink struct {
	w      EventWriter
	runID  string
	logger *slog.Logger

	// mu orders enqueues against Close so every event is either drained
	// or counted as dropped.
	mu     sync.Mutex
	closed bool
	queue  chan clock.ElapsedEvent
	done   chan struct{}
	wg     sync.WaitGroup

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// SinkStats reports the outcome of queued events.
type SinkStats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// NewEventSink starts a sink writing events tagged with runID.
func NewEventSink(w EventWriter, runID string, queueSize int, logger *slog.Logger) *EventSink {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &EventSink{
		w:      w,
		runID:  runID,
		logger: logger,
		queue:  make(chan clock.ElapsedEvent, queueSize),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writer()
	return s
}

// OnElapsed queues ev for insertion without blocking.
func (s *EventSink) OnElapsed(ev clock.ElapsedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.queue <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *EventSink) writer() {
	defer s.wg.Done()

	for {
		select {
		case ev := <-s.queue:
			s.insert(ev)
		case <-s.done:
			// Drain what was queued before Close.
			for {
				select {
				case ev := <-s.queue:
					s.insert(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *EventSink) insert(ev clock.ElapsedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := s.w.InsertEvent(ctx, s.runID, ev); err != nil {
		s.failed.Add(1)
		s.logger.Warn("storing elapsed event failed", slog.Any("error", err))
		return
	}
	s.written.Add(1)
}

// Close stops accepting events and waits for queued ones to be written.
func (s *EventSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (s *EventSink) Stats() SinkStats {
	return SinkStats{
		Written: s.written.Load(),
		Dropped: s.dropped.Load(),
		Failed:  s.failed.Load(),
	}
}
