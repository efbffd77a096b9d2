package timeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// CSVWriter writes timeline entries to a CSV file.
type CSVWriter struct {
	file    *os.File
	writer  *csv.Writer
	headers []string
	written int64
	mu      sync.Mutex
}

// CSV headers for timeline export.
var defaultHeaders = []string{
	"sequence",
	"timestamp",
	"scaled_elapsed_ms",
	"scale_percent",
	"real_delta_ms",
}

// NewCSVWriter creates a new CSV writer for the specified path.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	return &CSVWriter{
		file:    f,
		writer:  csv.NewWriter(f),
		headers: defaultHeaders,
	}, nil
}

// WriteHeader writes the CSV header row.
func (w *CSVWriter) WriteHeader() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(w.headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	w.writer.Flush()
	return w.writer.Error()
}

// WriteEntry writes a single timeline entry as a CSV row.
func (w *CSVWriter) WriteEntry(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(entryToRow(entry)); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}

	w.written++
	return nil
}

// Flush flushes the CSV writer buffer to disk.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes and closes the CSV file.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Written returns the number of entries written.
func (w *CSVWriter) Written() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func entryToRow(e Entry) []string {
	return []string{
		strconv.FormatInt(e.Sequence, 10),
		e.Timestamp.Format(time.RFC3339Nano),
		formatMs(e.ScaledElapsed),
		strconv.FormatFloat(e.ScalePercent, 'f', -1, 64),
		formatMs(e.RealDelta),
	}
}

func formatMs(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}

func parseMs(s string) (time.Duration, error) {
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms * float64(time.Millisecond)).Round(time.Microsecond), nil
}

// rowToEntry parses a CSV row back to an Entry.
func rowToEntry(row []string) (Entry, error) {
	if len(row) < len(defaultHeaders) {
		return Entry{}, fmt.Errorf("row has %d columns, need %d", len(row), len(defaultHeaders))
	}

	var e Entry
	var err error

	if e.Sequence, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return e, fmt.Errorf("invalid sequence: %w", err)
	}
	if e.Timestamp, err = time.Parse(time.RFC3339Nano, row[1]); err != nil {
		return e, fmt.Errorf("invalid timestamp: %w", err)
	}
	if e.ScaledElapsed, err = parseMs(row[2]); err != nil {
		return e, fmt.Errorf("invalid scaled_elapsed_ms: %w", err)
	}
	if e.ScalePercent, err = strconv.ParseFloat(row[3], 64); err != nil {
		return e, fmt.Errorf("invalid scale_percent: %w", err)
	}
	if e.RealDelta, err = parseMs(row[4]); err != nil {
		return e, fmt.Errorf("invalid real_delta_ms: %w", err)
	}
	return e, nil
}

// ReadCSV reads a CSV file written by CSVWriter.
func ReadCSV(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(records) < 2 {
		return nil, nil // Empty file or header only
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, row := range records[1:] {
		entry, err := rowToEntry(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
