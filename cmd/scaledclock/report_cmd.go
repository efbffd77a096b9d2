package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/myorg/scaledclock/internal/report"
	"github.com/myorg/scaledclock/internal/timeline"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report analysis commands",
	Long:  "Display run reports and summarize notification logs written by 'run'.",
}

var reportCfg struct {
	JSON bool
}

var reportShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Show formatted report",
	Long: `Display a run report in human-readable form.

Examples:
  scaledclock report show results.json
  scaledclock report show results.json --json
`,
	Args: cobra.ExactArgs(1),
	RunE: runReportShow,
}

var reportEventsCmd = &cobra.Command{
	Use:   "events <csv>",
	Short: "Summarize a CSV notification log",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportEvents,
}

func init() {
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportEventsCmd)

	reportShowCmd.Flags().BoolVar(&reportCfg.JSON, "json", false, "print the report as JSON")
}

func runReportShow(cmd *cobra.Command, args []string) error {
	filename := args[0]

	rpt, err := report.LoadFromFile(filename)
	if err != nil {
		return err
	}

	if reportCfg.JSON {
		data, err := rpt.ToJSON()
		if err != nil {
			return fmt.Errorf("serializing report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	formatter := report.NewConsoleFormatter().WithReportPath(filename)
	formatter.PrintSummary(rpt)
	return nil
}

func runReportEvents(cmd *cobra.Command, args []string) error {
	entries, err := timeline.ReadCSV(args[0])
	if err != nil {
		return err
	}

	tl := timeline.NewTimeline()
	for _, e := range entries {
		tl.AddEntry(e)
	}
	sum := tl.GetSummary()

	fmt.Printf("Notifications: %d\n", sum.Entries)
	if sum.Entries == 0 {
		return nil
	}
	fmt.Printf("Span:          %s\n", sum.Duration.Round(time.Millisecond))
	fmt.Printf("Average gap:   %s\n", sum.AvgGap.Round(time.Microsecond))
	fmt.Printf("Average fire:  %s scaled\n", sum.AvgElapsed.Round(time.Microsecond))

	scales := make([]float64, 0, len(sum.ScalePercents))
	for s := range sum.ScalePercents {
		scales = append(scales, s)
	}
	sort.Float64s(scales)

	fmt.Println("By scale:")
	for _, s := range scales {
		fmt.Printf("  %6.1f%%  %d\n", s, sum.ScalePercents[s])
	}
	return nil
}
