package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/myorg/scaledclock/internal/metrics"
)

// jsonReport is the serialized form of Report. Durations are written as
// strings, with a numeric millisecond copy for programmatic access.
type jsonReport struct {
	Version      string            `json:"version"`
	RunInfo      jsonRunInfo       `json:"run_info"`
	Clock        jsonClock         `json:"clock"`
	Summary      jsonSummary       `json:"summary"`
	Timing       *metrics.Snapshot `json:"timing,omitempty"`
	ScaleChanges []jsonScaleChange `json:"scale_changes,omitempty"`
	Outputs      *OutputInfo       `json:"outputs,omitempty"`
}

type jsonRunInfo struct {
	RunID       string  `json:"run_id"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Duration    string  `json:"duration"`
	DurationSec float64 `json:"duration_sec"`
	StopReason  string  `json:"stop_reason"`
}

type jsonClock struct {
	Interval     string  `json:"interval"`
	IntervalMs   float64 `json:"interval_ms"`
	PollInterval string  `json:"poll_interval"`
	StartScale   float64 `json:"start_scale"`
	AutoReset    bool    `json:"auto_reset"`
	FinalScale   float64 `json:"final_scale"`
	FinalElapsed string  `json:"final_elapsed"`
	Running      bool    `json:"running"`
}

type jsonSummary struct {
	Events       int64   `json:"events"`
	EventsPerSec float64 `json:"events_per_sec"`
	ScaledTotal  string  `json:"scaled_total"`
	MeanLagMs    float64 `json:"mean_lag_ms"`
	P99LagMs     float64 `json:"p99_lag_ms"`
	MaxLagMs     float64 `json:"max_lag_ms"`
}

type jsonScaleChange struct {
	After   string  `json:"after"`
	Percent float64 `json:"percent"`
}

// ToJSON serializes the report to indented JSON.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r.toJSONReport(), "", "  ")
}

// ToJSONCompact serializes the report to compact JSON.
func (r *Report) ToJSONCompact() ([]byte, error) {
	return json.Marshal(r.toJSONReport())
}

// WriteToFile writes the report to a file.
func (r *Report) WriteToFile(path string) error {
	data, err := r.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// LoadFromFile reads a report written by WriteToFile.
func LoadFromFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON report.
func Parse(data []byte) (*Report, error) {
	var jr jsonReport
	if err := json.Unmarshal(data, &jr); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return jr.toReport()
}

func (r *Report) toJSONReport() jsonReport {
	jr := jsonReport{
		Version: r.Version,
		RunInfo: jsonRunInfo{
			RunID:       r.RunInfo.RunID,
			StartTime:   r.RunInfo.StartTime.Format(time.RFC3339Nano),
			EndTime:     r.RunInfo.EndTime.Format(time.RFC3339Nano),
			Duration:    r.RunInfo.Duration.String(),
			DurationSec: r.RunInfo.Duration.Seconds(),
			StopReason:  r.RunInfo.StopReason,
		},
		Clock: jsonClock{
			Interval:     r.Clock.Interval.String(),
			IntervalMs:   toMs(r.Clock.Interval),
			PollInterval: r.Clock.PollInterval.String(),
			StartScale:   r.Clock.StartScale,
			AutoReset:    r.Clock.AutoReset,
			FinalScale:   r.Clock.FinalScale,
			FinalElapsed: r.Clock.FinalElapsed.String(),
			Running:      r.Clock.Running,
		},
		Summary: jsonSummary{
			Events:       r.Summary.Events,
			EventsPerSec: r.Summary.EventsPerSec,
			ScaledTotal:  r.Summary.ScaledTotal.String(),
			MeanLagMs:    toMs(r.Summary.MeanLag),
			P99LagMs:     toMs(r.Summary.P99Lag),
			MaxLagMs:     toMs(r.Summary.MaxLag),
		},
		Timing:  r.Timing,
		Outputs: r.Outputs,
	}

	for _, c := range r.ScaleChanges {
		jr.ScaleChanges = append(jr.ScaleChanges, jsonScaleChange{
			After:   c.After.String(),
			Percent: c.Percent,
		})
	}

	return jr
}

func (jr *jsonReport) toReport() (*Report, error) {
	r := &Report{
		Version: jr.Version,
		RunInfo: RunInfo{
			RunID:      jr.RunInfo.RunID,
			StopReason: jr.RunInfo.StopReason,
		},
		Clock: ClockInfo{
			StartScale: jr.Clock.StartScale,
			AutoReset:  jr.Clock.AutoReset,
			FinalScale: jr.Clock.FinalScale,
			Running:    jr.Clock.Running,
		},
		Summary: Summary{
			Events:       jr.Summary.Events,
			EventsPerSec: jr.Summary.EventsPerSec,
			MeanLag:      fromMs(jr.Summary.MeanLagMs),
			P99Lag:       fromMs(jr.Summary.P99LagMs),
			MaxLag:       fromMs(jr.Summary.MaxLagMs),
		},
		Timing:  jr.Timing,
		Outputs: jr.Outputs,
	}

	var err error
	if r.RunInfo.StartTime, err = parseTime(jr.RunInfo.StartTime); err != nil {
		return nil, fmt.Errorf("run_info.start_time: %w", err)
	}
	if r.RunInfo.EndTime, err = parseTime(jr.RunInfo.EndTime); err != nil {
		return nil, fmt.Errorf("run_info.end_time: %w", err)
	}

	durations := []struct {
		field string
		src   string
		dst   *time.Duration
	}{
		{"run_info.duration", jr.RunInfo.Duration, &r.RunInfo.Duration},
		{"clock.interval", jr.Clock.Interval, &r.Clock.Interval},
		{"clock.poll_interval", jr.Clock.PollInterval, &r.Clock.PollInterval},
		{"clock.final_elapsed", jr.Clock.FinalElapsed, &r.Clock.FinalElapsed},
		{"summary.scaled_total", jr.Summary.ScaledTotal, &r.Summary.ScaledTotal},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.src); err != nil {
			return nil, fmt.Errorf("%s: %w", d.field, err)
		}
	}

	for i, c := range jr.ScaleChanges {
		after, err := parseDuration(c.After)
		if err != nil {
			return nil, fmt.Errorf("scale_changes[%d].after: %w", i, err)
		}
		r.ScaleChanges = append(r.ScaleChanges, ScaleChange{After: after, Percent: c.Percent})
	}

	return r, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMs(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// String returns a one-line summary of the report.
func (r *Report) String() string {
	return fmt.Sprintf(
		"Report: %d notifications (%.2f/s) every %s scaled, final scale %.1f%%, duration: %s",
		r.Summary.Events,
		r.Summary.EventsPerSec,
		r.Clock.Interval,
		r.Clock.FinalScale,
		r.RunInfo.Duration,
	)
}
