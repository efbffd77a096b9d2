package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/myorg/scaledclock/internal/metrics"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// Box-drawing Unicode characters
const (
	boxHorizontal    = "─"
	boxVertical      = "│"
	boxTopLeft       = "┌"
	boxTopRight      = "┐"
	boxBottomLeft    = "└"
	boxBottomRight   = "┘"
	boxVerticalRight = "├"
	boxVerticalLeft  = "┤"
)

// ConsoleFormatter formats reports for console output.
type ConsoleFormatter struct {
	writer     io.Writer
	noColor    bool
	reportPath string
}

// NewConsoleFormatter creates a new console formatter.
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{
		writer:  os.Stdout,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// WithWriter sets a custom writer (useful for testing).
func (cf *ConsoleFormatter) WithWriter(w io.Writer) *ConsoleFormatter {
	cf.writer = w
	return cf
}

// WithReportPath sets the path to the JSON report file.
func (cf *ConsoleFormatter) WithReportPath(path string) *ConsoleFormatter {
	cf.reportPath = path
	return cf
}

// WithNoColor disables color output.
func (cf *ConsoleFormatter) WithNoColor(noColor bool) *ConsoleFormatter {
	cf.noColor = noColor
	return cf
}

// PrintSummary prints a formatted summary of the report.
func (cf *ConsoleFormatter) PrintSummary(report *Report) {
	if report == nil {
		return
	}

	cf.printHeader(report)
	cf.printSummarySection(report)
	cf.printTimingTable(report)
	cf.printScaleChanges(report)
	cf.printOutputs(report)
	cf.printFooter()
}

func (cf *ConsoleFormatter) printHeader(report *Report) {
	width := 70

	cf.println(cf.boxLine(boxTopLeft, boxHorizontal, boxTopRight, width))

	title := " scaledclock - Run Results "
	cf.println(cf.boxRow(cf.bold(cf.cyan(title)), width))

	cf.println(cf.boxLine(boxVerticalRight, boxHorizontal, boxVerticalLeft, width))

	cf.println(cf.boxRow(fmt.Sprintf("  Run: %s", cf.bold(truncateString(report.RunInfo.RunID, 36))), width))

	cf.println(cf.boxRow(fmt.Sprintf("  Duration: %s    Stopped: %s",
		cf.bold(formatDuration(report.RunInfo.Duration)),
		report.RunInfo.StopReason), width))

	cf.println(cf.boxRow(fmt.Sprintf("  Interval: %s    Start Scale: %.1f%%    Auto Reset: %t",
		cf.bold(formatDuration(report.Clock.Interval)),
		report.Clock.StartScale,
		report.Clock.AutoReset), width))
}

func (cf *ConsoleFormatter) printSummarySection(report *Report) {
	width := 70

	cf.println(cf.boxLine(boxVerticalRight, boxHorizontal, boxVerticalLeft, width))

	cf.println(cf.boxRow(cf.bold("  Summary"), width))
	cf.println(cf.boxRow("", width))

	cf.println(cf.boxRow(fmt.Sprintf("  Notifications:  %s",
		cf.bold(formatNumber(report.Summary.Events))), width))

	cf.println(cf.boxRow(fmt.Sprintf("  Rate:           %s /s",
		cf.bold(fmt.Sprintf("%.2f", report.Summary.EventsPerSec))), width))

	cf.println(cf.boxRow(fmt.Sprintf("  Scaled Total:   %s",
		formatDuration(report.Summary.ScaledTotal)), width))

	lag := report.Summary.P99Lag
	cf.println(cf.boxRow(fmt.Sprintf("  P99 Lag:        %s",
		cf.colorizeLag(formatDuration(lag), lag, report.Clock.PollInterval)), width))

	state := "stopped"
	if report.Clock.Running {
		state = "running"
	}
	cf.println(cf.boxRow(fmt.Sprintf("  Final State:    %s at %.1f%%, %s accumulated",
		state,
		report.Clock.FinalScale,
		formatDuration(report.Clock.FinalElapsed)), width))
}

func (cf *ConsoleFormatter) printTimingTable(report *Report) {
	width := 70

	cf.println(cf.boxLine(boxVerticalRight, boxHorizontal, boxVerticalLeft, width))

	cf.println(cf.boxRow(cf.bold("  Timing (µs)"), width))
	cf.println(cf.boxRow("", width))

	snap := report.Timing
	if snap == nil || snap.Events == 0 {
		cf.println(cf.boxRow("  No timing data available", width))
		return
	}

	header := fmt.Sprintf("  %-14s %8s %8s %8s %8s %8s",
		"Measure", "Avg", "p50", "p90", "p99", "Max")
	cf.println(cf.boxRow(cf.dim(header), width))

	cf.println(cf.boxRow("  "+strings.Repeat("─", 62), width))

	rows := []struct {
		name string
		d    metrics.DistStats
	}{
		{"lag", snap.Lag},
		{"gap", snap.Gap},
		{"real_delta", snap.RealDelta},
	}

	for _, r := range rows {
		if r.d.Count == 0 {
			continue
		}
		row := fmt.Sprintf("  %-14s %8s %8s %8s %8s %8s",
			truncateString(r.name, 14),
			formatNumber(r.d.Mean.Microseconds()),
			formatNumber(r.d.P50.Microseconds()),
			formatNumber(r.d.P90.Microseconds()),
			formatNumber(r.d.P99.Microseconds()),
			formatNumber(r.d.Max.Microseconds()))
		cf.println(cf.boxRow(row, width))
	}

	if len(snap.ByScale) > 0 {
		cf.println(cf.boxRow("", width))
		scales := make([]string, 0, len(snap.ByScale))
		for s := range snap.ByScale {
			scales = append(scales, s)
		}
		sort.Strings(scales)
		for _, s := range scales {
			cf.println(cf.boxRow(fmt.Sprintf("  at %6s%%: %s notifications",
				s, formatNumber(snap.ByScale[s])), width))
		}
	}
}

func (cf *ConsoleFormatter) printScaleChanges(report *Report) {
	if len(report.ScaleChanges) == 0 {
		return
	}
	width := 70

	cf.println(cf.boxLine(boxVerticalRight, boxHorizontal, boxVerticalLeft, width))
	cf.println(cf.boxRow(cf.bold("  Scale Changes"), width))
	cf.println(cf.boxRow("", width))

	for _, c := range report.ScaleChanges {
		cf.println(cf.boxRow(fmt.Sprintf("  +%-10s -> %.1f%%",
			formatDuration(c.After), c.Percent), width))
	}
}

func (cf *ConsoleFormatter) printOutputs(report *Report) {
	out := report.Outputs
	if out == nil {
		return
	}
	width := 70

	cf.println(cf.boxLine(boxVerticalRight, boxHorizontal, boxVerticalLeft, width))
	cf.println(cf.boxRow(cf.bold("  Outputs"), width))
	cf.println(cf.boxRow("", width))

	if out.EventsCSV != "" {
		cf.println(cf.boxRow(fmt.Sprintf("  CSV:      %s (%s rows, %s)",
			truncateString(out.EventsCSV, 30),
			formatNumber(out.CSVRows),
			formatBytes(out.CSVBytes)), width))
	}
	if out.DBTable != "" {
		lost := out.DBDropped + out.DBFailed
		cf.println(cf.boxRow(fmt.Sprintf("  Database: %s (%s written, %s lost)",
			truncateString(out.DBTable, 24),
			formatNumber(out.DBWritten),
			cf.colorizeLost(formatNumber(lost), lost)), width))
	}
}

func (cf *ConsoleFormatter) printFooter() {
	width := 70

	cf.println(cf.boxLine(boxVerticalRight, boxHorizontal, boxVerticalLeft, width))

	if cf.reportPath != "" {
		cf.println(cf.boxRow(fmt.Sprintf("  Full report: %s", cf.dim(cf.reportPath)), width))
	}

	cf.println(cf.boxRow(fmt.Sprintf("  Generated: %s",
		cf.dim(time.Now().Format("2006-01-02 15:04:05"))), width))

	cf.println(cf.boxLine(boxBottomLeft, boxHorizontal, boxBottomRight, width))
}

// Helper methods for box drawing

func (cf *ConsoleFormatter) boxLine(left, fill, right string, width int) string {
	return left + strings.Repeat(fill, width-2) + right
}

func (cf *ConsoleFormatter) boxRow(content string, width int) string {
	// Calculate visible length (excluding ANSI codes)
	visibleLen := cf.visibleLength(content)
	padding := width - 2 - visibleLen
	if padding < 0 {
		padding = 0
	}
	return boxVertical + content + strings.Repeat(" ", padding) + boxVertical
}

func (cf *ConsoleFormatter) visibleLength(s string) int {
	// Remove ANSI escape sequences to calculate visible length
	inEscape := false
	length := 0
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if r == 'm' {
				inEscape = false
			}
			continue
		}
		length++
	}
	return length
}

// Color helper methods

func (cf *ConsoleFormatter) colorize(s string, color string) string {
	if cf.noColor {
		return s
	}
	return color + s + colorReset
}

func (cf *ConsoleFormatter) bold(s string) string {
	return cf.colorize(s, colorBold)
}

func (cf *ConsoleFormatter) dim(s string) string {
	return cf.colorize(s, colorDim)
}

func (cf *ConsoleFormatter) green(s string) string {
	return cf.colorize(s, colorGreen)
}

func (cf *ConsoleFormatter) yellow(s string) string {
	return cf.colorize(s, colorYellow)
}

func (cf *ConsoleFormatter) red(s string) string {
	return cf.colorize(s, colorRed)
}

func (cf *ConsoleFormatter) cyan(s string) string {
	return cf.colorize(s, colorCyan)
}

// colorizeLag colors lag relative to the sampling period: within one poll is
// expected, within ten is tolerable.
func (cf *ConsoleFormatter) colorizeLag(s string, lag, poll time.Duration) string {
	if poll <= 0 {
		poll = time.Millisecond
	}
	if lag <= poll {
		return cf.green(s)
	} else if lag <= 10*poll {
		return cf.yellow(s)
	}
	return cf.red(s)
}

func (cf *ConsoleFormatter) colorizeLost(s string, lost int64) string {
	if lost == 0 {
		return cf.green(s)
	}
	return cf.red(s)
}

func (cf *ConsoleFormatter) println(s string) {
	fmt.Fprintln(cf.writer, s)
}

// Formatting helper functions

// formatNumber formats an integer with thousands separators.
// Example: 45230 -> "45,230"
func formatNumber[T int | int64](n T) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}

	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		if len(str) > remainder {
			result.WriteString(",")
		}
	}

	for i := remainder; i < len(str); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}

	return result.String()
}

// formatDuration formats a duration in a human-readable way.
// Example: 5m0s, 1h30m, 2h0m0s -> "2h"
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Millisecond).String()
	}

	d = d.Round(time.Second)

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		if minutes == 0 && seconds == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		if seconds == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}

	if minutes > 0 {
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}

	return fmt.Sprintf("%ds", seconds)
}

// formatBytes formats bytes in human-readable format.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// truncateString truncates a string to maxLen, adding ellipsis if needed.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
