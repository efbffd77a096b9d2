package timeline

import (
	"sync"

	"github.com/myorg/scaledclock/internal/clock"
)

// StreamingTimeline writes timeline entries incrementally to a CSV file.
// Entries are not kept in memory; use ReadCSV to load them back.
// It implements clock.Listener; write errors are kept and reported by Err
// and Close since a listener cannot return them.
type StreamingTimeline struct {
	csvWriter  *CSVWriter
	flushEvery int
	unflushed  int
	seq        int64
	err        error
	mu         sync.Mutex
}

// NewStreamingTimeline creates a new streaming timeline writer.
func NewStreamingTimeline(path string, flushEvery int) (*StreamingTimeline, error) {
	csvWriter, err := NewCSVWriter(path)
	if err != nil {
		return nil, err
	}

	// Write header immediately
	if err := csvWriter.WriteHeader(); err != nil {
		csvWriter.Close()
		return nil, err
	}

	if flushEvery <= 0 {
		flushEvery = 10 // Default: flush every 10 entries
	}

	return &StreamingTimeline{
		csvWriter:  csvWriter,
		flushEvery: flushEvery,
	}, nil
}

// OnElapsed records the event as the next entry. Sequence numbers follow
// the order rows are written, even with concurrent callers.
func (st *StreamingTimeline) OnElapsed(ev clock.ElapsedEvent) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.seq++
	if err := st.recordLocked(EntryFromEvent(st.seq, ev)); err != nil && st.err == nil {
		st.err = err
	}
}

func (st *StreamingTimeline) recordLocked(entry Entry) error {
	if err := st.csvWriter.WriteEntry(entry); err != nil {
		return err
	}

	st.unflushed++

	if st.unflushed >= st.flushEvery {
		if err := st.csvWriter.Flush(); err != nil {
			return err
		}
		st.unflushed = 0
	}

	return nil
}

// Flush forces a flush of the CSV writer.
func (st *StreamingTimeline) Flush() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.csvWriter.Flush(); err != nil {
		return err
	}
	st.unflushed = 0
	return nil
}

// Err returns the first error hit while recording events.
func (st *StreamingTimeline) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Close flushes and closes the streaming timeline.
// Returns the number of entries written.
func (st *StreamingTimeline) Close() (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	written := st.csvWriter.Written()
	err := st.csvWriter.Close()
	if err == nil {
		err = st.err
	}

	return written, err
}

// Len returns the number of rows written so far.
func (st *StreamingTimeline) Len() int64 {
	return st.csvWriter.Written()
}
