package timeline

import (
	"sync"
	"time"

	"github.com/myorg/scaledclock/internal/clock"
)

// Timeline stores the sequence of elapsed notifications of a run.
type Timeline struct {
	Entries   []Entry
	StartTime time.Time
	EndTime   time.Time
	mu        sync.RWMutex
}

// Entry is one elapsed notification.
type Entry struct {
	Sequence      int64         `json:"sequence"`
	Timestamp     time.Time     `json:"timestamp"`
	ScaledElapsed time.Duration `json:"scaled_elapsed"`
	ScalePercent  float64       `json:"scale_percent"`
	RealDelta     time.Duration `json:"real_delta"`
}

// EntryFromEvent converts an elapsed event into a timeline entry.
func EntryFromEvent(seq int64, ev clock.ElapsedEvent) Entry {
	return Entry{
		Sequence:      seq,
		Timestamp:     ev.Timestamp,
		ScaledElapsed: ev.ScaledElapsed,
		ScalePercent:  ev.ScalePercent,
		RealDelta:     ev.RealDelta,
	}
}

// NewTimeline creates an empty Timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		Entries: make([]Entry, 0, 64),
	}
}

// AddEntry adds a new entry to the timeline.
func (t *Timeline) AddEntry(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.StartTime.IsZero() || entry.Timestamp.Before(t.StartTime) {
		t.StartTime = entry.Timestamp
	}
	if entry.Timestamp.After(t.EndTime) {
		t.EndTime = entry.Timestamp
	}

	t.Entries = append(t.Entries, entry)
}

// GetEntries returns a copy of all entries.
func (t *Timeline) GetEntries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Entry, len(t.Entries))
	copy(result, t.Entries)
	return result
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.Entries)
}

// Duration returns the time between the first and last entry.
func (t *Timeline) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.StartTime.IsZero() {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}

// Summary describes a timeline.
type Summary struct {
	Entries       int             `json:"entries"`
	Duration      time.Duration   `json:"duration"`
	AvgGap        time.Duration   `json:"avg_gap"`
	AvgElapsed    time.Duration   `json:"avg_scaled_elapsed"`
	ScalePercents map[float64]int `json:"-"`
}

// GetSummary computes a summary of the timeline.
func (t *Timeline) GetSummary() *Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := &Summary{
		Entries:       len(t.Entries),
		ScalePercents: make(map[float64]int),
	}
	if len(t.Entries) == 0 {
		return s
	}

	s.Duration = t.EndTime.Sub(t.StartTime)
	if len(t.Entries) > 1 {
		s.AvgGap = s.Duration / time.Duration(len(t.Entries)-1)
	}

	var total time.Duration
	for _, e := range t.Entries {
		total += e.ScaledElapsed
		s.ScalePercents[e.ScalePercent]++
	}
	s.AvgElapsed = total / time.Duration(len(t.Entries))
	return s
}
