package metrics

import (
	"encoding/json"
	"time"
)

// Snapshot represents a point-in-time view of collected statistics.
type Snapshot struct {
	StartTime time.Time        `json:"start_time"`
	Duration  time.Duration    `json:"duration"`
	Interval  time.Duration    `json:"interval"`
	Events    int64            `json:"events"`
	Rate      float64          `json:"events_per_sec"`
	Lag       DistStats        `json:"lag"`
	Gap       DistStats        `json:"gap"`
	RealDelta DistStats        `json:"real_delta"`
	ByScale   map[string]int64 `json:"by_scale_percent,omitempty"`
}

// DistStats holds a duration distribution.
type DistStats struct {
	Count  int64         `json:"count"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"std_dev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P99    time.Duration `json:"p99"`
}

// ToJSON serializes the snapshot to JSON.
func (s *Snapshot) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// ToJSONIndent serializes the snapshot to indented JSON.
func (s *Snapshot) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// MarshalJSON writes durations as strings.
func (d DistStats) MarshalJSON() ([]byte, error) {
	type distJSON struct {
		Count  int64  `json:"count"`
		Min    string `json:"min"`
		Max    string `json:"max"`
		Mean   string `json:"mean"`
		StdDev string `json:"std_dev"`
		P50    string `json:"p50"`
		P90    string `json:"p90"`
		P99    string `json:"p99"`
	}

	return json.Marshal(distJSON{
		Count:  d.Count,
		Min:    d.Min.String(),
		Max:    d.Max.String(),
		Mean:   d.Mean.String(),
		StdDev: d.StdDev.String(),
		P50:    d.P50.String(),
		P90:    d.P90.String(),
		P99:    d.P99.String(),
	})
}

// UnmarshalJSON reads durations written by MarshalJSON.
func (d *DistStats) UnmarshalJSON(data []byte) error {
	var raw struct {
		Count  int64  `json:"count"`
		Min    string `json:"min"`
		Max    string `json:"max"`
		Mean   string `json:"mean"`
		StdDev string `json:"std_dev"`
		P50    string `json:"p50"`
		P90    string `json:"p90"`
		P99    string `json:"p99"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Count = raw.Count
	fields := []struct {
		src string
		dst *time.Duration
	}{
		{raw.Min, &d.Min},
		{raw.Max, &d.Max},
		{raw.Mean, &d.Mean},
		{raw.StdDev, &d.StdDev},
		{raw.P50, &d.P50},
		{raw.P90, &d.P90},
		{raw.P99, &d.P99},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		v, err := time.ParseDuration(f.src)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

// MarshalJSON customizes JSON output for Snapshot.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type snapshotJSON struct {
		StartTime string           `json:"start_time"`
		Duration  string           `json:"duration"`
		Interval  string           `json:"interval"`
		Events    int64            `json:"events"`
		Rate      float64          `json:"events_per_sec"`
		Lag       DistStats        `json:"lag"`
		Gap       DistStats        `json:"gap"`
		RealDelta DistStats        `json:"real_delta"`
		ByScale   map[string]int64 `json:"by_scale_percent,omitempty"`
	}

	return json.Marshal(snapshotJSON{
		StartTime: s.StartTime.Format(time.RFC3339),
		Duration:  s.Duration.String(),
		Interval:  s.Interval.String(),
		Events:    s.Events,
		Rate:      s.Rate,
		Lag:       s.Lag,
		Gap:       s.Gap,
		RealDelta: s.RealDelta,
		ByScale:   s.ByScale,
	})
}

// UnmarshalJSON reads a snapshot written by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		StartTime string           `json:"start_time"`
		Duration  string           `json:"duration"`
		Interval  string           `json:"interval"`
		Events    int64            `json:"events"`
		Rate      float64          `json:"events_per_sec"`
		Lag       DistStats        `json:"lag"`
		Gap       DistStats        `json:"gap"`
		RealDelta DistStats        `json:"real_delta"`
		ByScale   map[string]int64 `json:"by_scale_percent,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if raw.StartTime != "" {
		if s.StartTime, err = time.Parse(time.RFC3339, raw.StartTime); err != nil {
			return err
		}
	}
	if raw.Duration != "" {
		if s.Duration, err = time.ParseDuration(raw.Duration); err != nil {
			return err
		}
	}
	if raw.Interval != "" {
		if s.Interval, err = time.ParseDuration(raw.Interval); err != nil {
			return err
		}
	}
	s.Events = raw.Events
	s.Rate = raw.Rate
	s.Lag = raw.Lag
	s.Gap = raw.Gap
	s.RealDelta = raw.RealDelta
	s.ByScale = raw.ByScale
	return nil
}
