package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scaledclock",
	Short: "Scaled-time interval timer",
	Long: `scaledclock runs a timer whose elapsed time advances at a percentage of
real time and fires a notification each time a scaled interval passes.

Commands:
  Execution:
    run         Run the scaled clock and record its notifications

  Report Analysis:
    report show     Show a formatted run report
    report events   Summarize a CSV log of notifications

  Configuration:
    config init      Generate example configuration file
    config validate  Validate configuration file
    config show      Show effective configuration

Examples:
  # One notification per scaled second at half speed, for 30s
  scaledclock run --interval 1s --scale 50 --duration 30s

  # Fire once after 5s of scaled time, then exit
  scaledclock run --interval 5s --auto-reset=false --duration 0

  # Change speed over time and expose Prometheus metrics
  scaledclock run --config scaledclock.yaml --metrics-addr :9464`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
