package report

import (
	"time"

	"github.com/myorg/scaledclock/internal/clock"
	"github.com/myorg/scaledclock/internal/config"
	"github.com/myorg/scaledclock/internal/metrics"
)

// FormatVersion is written into every report.
const FormatVersion = "1.0"

// Stop reasons recorded in RunInfo.
const (
	StopDuration    = "duration"
	StopInterrupted = "interrupted"
	StopFired       = "fired"
)

// Report describes one run of the scaled clock.
type Report struct {
	Version      string            `json:"version"`
	RunInfo      RunInfo           `json:"run_info"`
	Clock        ClockInfo         `json:"clock"`
	Summary      Summary           `json:"summary"`
	Timing       *metrics.Snapshot `json:"timing,omitempty"`
	ScaleChanges []ScaleChange     `json:"scale_changes,omitempty"`
	Outputs      *OutputInfo       `json:"outputs,omitempty"`
}

// RunInfo contains execution metadata.
type RunInfo struct {
	RunID      string        `json:"run_id"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	StopReason string        `json:"stop_reason"`
}

// ClockInfo holds the clock settings and its state when the run ended.
type ClockInfo struct {
	Interval     time.Duration `json:"interval"`
	PollInterval time.Duration `json:"poll_interval"`
	StartScale   float64       `json:"start_scale"`
	AutoReset    bool          `json:"auto_reset"`
	FinalScale   float64       `json:"final_scale"`
	FinalElapsed time.Duration `json:"final_elapsed"`
	Running      bool          `json:"running"`
}

// Summary contains aggregated notification figures.
type Summary struct {
	Events       int64         `json:"events"`
	EventsPerSec float64       `json:"events_per_sec"`
	ScaledTotal  time.Duration `json:"scaled_total"`
	MeanLag      time.Duration `json:"mean_lag"`
	P99Lag       time.Duration `json:"p99_lag"`
	MaxLag       time.Duration `json:"max_lag"`
}

// ScaleChange records a scale applied during the run.
type ScaleChange struct {
	After   time.Duration `json:"after"`
	Percent float64       `json:"percent"`
}

// OutputInfo describes where notifications were persisted.
type OutputInfo struct {
	EventsCSV string `json:"events_csv,omitempty"`
	CSVRows   int64  `json:"csv_rows,omitempty"`
	CSVBytes  int64  `json:"csv_bytes,omitempty"`
	DBTable   string `json:"db_table,omitempty"`
	DBWritten int64  `json:"db_written,omitempty"`
	DBDropped int64  `json:"db_dropped,omitempty"`
	DBFailed  int64  `json:"db_failed,omitempty"`
}

// GenerateReport builds a Report from the run metadata, the timer settings,
// the clock state at the end of the run and the collected statistics.
// snapshot may be nil.
func GenerateReport(runInfo RunInfo, timer config.TimerConfig, final clock.State, snapshot *metrics.Snapshot) *Report {
	report := &Report{
		Version: FormatVersion,
		RunInfo: runInfo,
		Clock: ClockInfo{
			Interval:     timer.Interval,
			PollInterval: timer.PollInterval,
			StartScale:   timer.StartScale,
			AutoReset:    timer.AutoReset,
			FinalScale:   final.ScalePercent,
			FinalElapsed: final.Elapsed,
			Running:      final.Running,
		},
		Timing: snapshot,
	}

	if snapshot != nil {
		report.Summary = buildSummary(snapshot)
	}

	return report
}

func buildSummary(snapshot *metrics.Snapshot) Summary {
	return Summary{
		Events:       snapshot.Events,
		EventsPerSec: snapshot.Rate,
		ScaledTotal:  time.Duration(snapshot.Events) * snapshot.Interval,
		MeanLag:      snapshot.Lag.Mean,
		P99Lag:       snapshot.Lag.P99,
		MaxLag:       snapshot.Lag.Max,
	}
}

// WithScaleChanges records the scale changes applied during the run.
func (r *Report) WithScaleChanges(changes []ScaleChange) *Report {
	r.ScaleChanges = changes
	return r
}

// WithOutputs records where notifications were persisted.
func (r *Report) WithOutputs(info *OutputInfo) *Report {
	r.Outputs = info
	return r
}
