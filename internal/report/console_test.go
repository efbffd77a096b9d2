package report

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/myorg/scaledclock/internal/metrics"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{1, "1"},
		{12, "12"},
		{123, "123"},
		{1234, "1,234"},
		{12345, "12,345"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{12345678, "12,345,678"},
		{123456789, "123,456,789"},
		{45230, "45,230"},
		{1000000, "1,000,000"},
		{-1234, "-1,234"},
		{-123456789, "-123,456,789"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatNumber(tt.input)
			if result != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatNumberInt(t *testing.T) {
	tests := []struct {
		input    int
		expected string
	}{
		{0, "0"},
		{1234, "1,234"},
		{-5678, "-5,678"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatNumber(tt.input)
			if result != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{0, "0s"},
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1s"},
		{30 * time.Second, "30s"},
		{60 * time.Second, "1m"},
		{90 * time.Second, "1m30s"},
		{5 * time.Minute, "5m"},
		{5*time.Minute + 30*time.Second, "5m30s"},
		{1 * time.Hour, "1h"},
		{1*time.Hour + 30*time.Minute, "1h30m"},
		{2*time.Hour + 15*time.Minute + 30*time.Second, "2h15m30s"},
		{24 * time.Hour, "24h"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDuration(tt.input)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1572864, "1.5 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatBytes(tt.input)
			if result != tt.expected {
				t.Errorf("formatBytes(%d) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"ab", 2, "ab"},
		{"abc", 2, "ab"},
		{"abcd", 3, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := truncateString(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestConsoleFormatterNoColor(t *testing.T) {
	// Set NO_COLOR env var
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	formatter := NewConsoleFormatter()

	// Test that colors are disabled
	result := formatter.bold("test")
	if strings.Contains(result, "\033[") {
		t.Errorf("Expected no ANSI codes with NO_COLOR, got %q", result)
	}
	if result != "test" {
		t.Errorf("Expected 'test', got %q", result)
	}

	result = formatter.red("error")
	if strings.Contains(result, "\033[") {
		t.Errorf("Expected no ANSI codes with NO_COLOR, got %q", result)
	}
	if result != "error" {
		t.Errorf("Expected 'error', got %q", result)
	}
}

func TestConsoleFormatterWithColor(t *testing.T) {
	// Ensure NO_COLOR is not set
	os.Unsetenv("NO_COLOR")

	formatter := NewConsoleFormatter()

	// Test that colors are enabled
	result := formatter.bold("test")
	if !strings.Contains(result, "\033[1m") {
		t.Errorf("Expected bold ANSI code, got %q", result)
	}

	result = formatter.red("error")
	if !strings.Contains(result, "\033[31m") {
		t.Errorf("Expected red ANSI code, got %q", result)
	}
}

func TestConsoleFormatterColorizeLag(t *testing.T) {
	os.Unsetenv("NO_COLOR")
	formatter := NewConsoleFormatter()

	tests := []struct {
		lag           time.Duration
		poll          time.Duration
		expectedColor string
	}{
		{0, time.Millisecond, colorGreen},
		{time.Millisecond, time.Millisecond, colorGreen},
		{2 * time.Millisecond, time.Millisecond, colorYellow},
		{10 * time.Millisecond, time.Millisecond, colorYellow},
		{11 * time.Millisecond, time.Millisecond, colorRed},
		{500 * time.Microsecond, 0, colorGreen},
		{50 * time.Millisecond, 10 * time.Millisecond, colorYellow},
	}

	for _, tt := range tests {
		t.Run(tt.lag.String()+"/"+tt.poll.String(), func(t *testing.T) {
			result := formatter.colorizeLag("test", tt.lag, tt.poll)
			if !strings.Contains(result, tt.expectedColor) {
				t.Errorf("colorizeLag(%v, %v) expected color %q, got %q", tt.lag, tt.poll, tt.expectedColor, result)
			}
		})
	}
}

func TestConsoleFormatterPrintSummaryNilReport(t *testing.T) {
	var buf bytes.Buffer
	formatter := NewConsoleFormatter().WithWriter(&buf).WithNoColor(true)

	formatter.PrintSummary(nil)

	if buf.Len() != 0 {
		t.Errorf("Expected no output for nil report, got %q", buf.String())
	}
}

func TestConsoleFormatterPrintSummaryEmptyReport(t *testing.T) {
	var buf bytes.Buffer
	formatter := NewConsoleFormatter().WithWriter(&buf).WithNoColor(true)

	report := &Report{
		Version: FormatVersion,
		RunInfo: RunInfo{
			RunID:      "run-empty",
			StartTime:  time.Now(),
			EndTime:    time.Now(),
			Duration:   5 * time.Second,
			StopReason: StopInterrupted,
		},
		Clock: ClockInfo{
			Interval:   time.Second,
			StartScale: 100,
		},
	}

	formatter.PrintSummary(report)

	output := buf.String()
	if !strings.Contains(output, "run-empty") {
		t.Errorf("Expected run ID in output, got %q", output)
	}
	if !strings.Contains(output, "interrupted") {
		t.Errorf("Expected stop reason in output, got %q", output)
	}
	if !strings.Contains(output, "No timing data available") {
		t.Errorf("Expected empty timing notice, got %q", output)
	}
}

func TestConsoleFormatterPrintSummaryWithData(t *testing.T) {
	var buf bytes.Buffer
	formatter := NewConsoleFormatter().
		WithWriter(&buf).
		WithNoColor(true).
		WithReportPath("/tmp/report.json")

	report := &Report{
		Version: FormatVersion,
		RunInfo: RunInfo{
			RunID:      "run-42",
			StartTime:  time.Now(),
			EndTime:    time.Now().Add(5 * time.Minute),
			Duration:   5 * time.Minute,
			StopReason: StopDuration,
		},
		Clock: ClockInfo{
			Interval:     10 * time.Millisecond,
			PollInterval: time.Millisecond,
			StartScale:   100,
			AutoReset:    true,
			FinalScale:   50,
			FinalElapsed: 4 * time.Millisecond,
			Running:      true,
		},
		Summary: Summary{
			Events:       22615,
			EventsPerSec: 75.38,
			ScaledTotal:  22615 * 10 * time.Millisecond,
			P99Lag:       800 * time.Microsecond,
		},
		Timing: &metrics.Snapshot{
			Events:   22615,
			Interval: 10 * time.Millisecond,
			Lag: metrics.DistStats{
				Count: 22615,
				Mean:  300 * time.Microsecond,
				P50:   250 * time.Microsecond,
				P90:   600 * time.Microsecond,
				P99:   800 * time.Microsecond,
				Max:   2 * time.Millisecond,
			},
			ByScale: map[string]int64{"100": 15000, "50": 7615},
		},
		ScaleChanges: []ScaleChange{{After: 2 * time.Minute, Percent: 50}},
		Outputs: &OutputInfo{
			EventsCSV: "/tmp/events.csv",
			CSVRows:   22615,
			CSVBytes:  1048576,
			DBTable:   "scaledclock_events",
			DBWritten: 22600,
			DBDropped: 15,
		},
	}

	formatter.PrintSummary(report)

	output := buf.String()

	for _, want := range []string{
		"scaledclock",
		"run-42",
		"22,615",
		"75.38",
		"running at 50.0%",
		"lag",
		"15,000",
		"-> 50.0%",
		"1.0 MB",
		"22,600 written, 15 lost",
		"/tmp/report.json",
		"┌",
		"└",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output", want)
		}
	}

	// Gap and real delta have no samples and are omitted.
	if strings.Contains(output, "real_delta") {
		t.Error("Expected empty distributions to be skipped")
	}
}

func TestConsoleFormatterVisibleLength(t *testing.T) {
	formatter := NewConsoleFormatter()

	tests := []struct {
		input    string
		expected int
	}{
		{"hello", 5},
		{"", 0},
		{"\033[1mhello\033[0m", 5},     // bold "hello"
		{"\033[31mred\033[0m", 3},       // red "red"
		{"\033[1m\033[31mbold red\033[0m", 8}, // bold red "bold red"
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := formatter.visibleLength(tt.input)
			if result != tt.expected {
				t.Errorf("visibleLength(%q) = %d, want %d", tt.input, result, tt.expected)
			}
		})
	}
}
