package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/myorg/scaledclock/internal/clock"
	"github.com/myorg/scaledclock/internal/config"
	"github.com/myorg/scaledclock/internal/database"
	"github.com/myorg/scaledclock/internal/logger"
	"github.com/myorg/scaledclock/internal/metrics"
	"github.com/myorg/scaledclock/internal/report"
	"github.com/myorg/scaledclock/internal/schedule"
	"github.com/myorg/scaledclock/internal/server"
	"github.com/myorg/scaledclock/internal/timeline"
)

const shutdownTimeout = 5 * time.Second

// RunConfig holds the run command flags. Flags only override the loaded
// configuration when set explicitly.
type RunConfig struct {
	ConfigFile   string
	Interval     time.Duration
	Scale        float64
	AutoReset    bool
	PollInterval time.Duration
	Duration     time.Duration
	ScheduleFile string
	Output       string
	Format       string
	EventsCSV    string
	MetricsAddr  string
	Database     bool
	LogLevel     string
	Quiet        bool
}

var runCfg RunConfig

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scaled clock",
	Long: `Run a scaled clock and record every notification it fires.

The clock accumulates real elapsed time multiplied by --scale percent. Each
time the accumulated time reaches --interval a notification fires; with
--auto-reset the clock rearms, otherwise it stops and the run ends.

Examples:
  # Quarter speed, one notification per scaled 100ms
  scaledclock run --interval 100ms --scale 25 --duration 10s

  # Log every notification to CSV and PostgreSQL
  scaledclock run --events-csv events.csv --db --output results.json

  # Apply scale changes from a schedule file
  scaledclock run --schedule ramp.yaml --duration 1m
`,
	PreRunE: validateRunFlags,
	RunE:    runClock,
}

func init() {
	runCmd.Flags().StringVar(&runCfg.ConfigFile, "config", "", "configuration file")
	runCmd.Flags().DurationVar(&runCfg.Interval, "interval", time.Second, "scaled time between notifications")
	runCmd.Flags().Float64Var(&runCfg.Scale, "scale", 100, "start scale in percent of real time (clamped to 0-100)")
	runCmd.Flags().BoolVar(&runCfg.AutoReset, "auto-reset", true, "rearm after each notification instead of stopping")
	runCmd.Flags().DurationVar(&runCfg.PollInterval, "poll-interval", clock.DefaultPollInterval, "sampling period of the clock")
	runCmd.Flags().DurationVar(&runCfg.Duration, "duration", 10*time.Second, "real-time length of the run, 0 runs until interrupted")
	runCmd.Flags().StringVar(&runCfg.ScheduleFile, "schedule", "", "YAML file of scale changes")
	runCmd.Flags().StringVar(&runCfg.Output, "output", "", "report file (JSON)")
	runCmd.Flags().StringVar(&runCfg.Format, "format", "text", "console summary format: text or json")
	runCmd.Flags().StringVar(&runCfg.EventsCSV, "events-csv", "", "CSV file receiving every notification")
	runCmd.Flags().StringVar(&runCfg.MetricsAddr, "metrics-addr", "", "serve /metrics, /state and /stats on this address")
	runCmd.Flags().BoolVar(&runCfg.Database, "db", false, "store notifications in PostgreSQL")
	runCmd.Flags().StringVar(&runCfg.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	runCmd.Flags().BoolVar(&runCfg.Quiet, "quiet", false, "suppress progress output")
}

func validateRunFlags(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("interval") && runCfg.Interval <= 0 {
		return fmt.Errorf("--interval must be > 0")
	}
	if cmd.Flags().Changed("poll-interval") && runCfg.PollInterval <= 0 {
		return fmt.Errorf("--poll-interval must be > 0")
	}
	if runCfg.Duration < 0 {
		return fmt.Errorf("--duration must be >= 0")
	}
	if runCfg.Format != "text" && runCfg.Format != "json" {
		return fmt.Errorf("--format must be 'text' or 'json'")
	}
	return nil
}

func runClock(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logProgress("Received signal %v, shutting down gracefully...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagsToConfig(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	runCfg.Quiet = cfg.Output.Quiet

	changes, err := loadSchedule(cfg)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	runID := uuid.NewString()
	log = log.With(slog.String("run_id", runID))

	logProgress("scaledclock %s", Version)
	logProgress("=========================================")
	logProgress("Interval %s, start scale %.1f%%, auto reset %t",
		cfg.Timer.Interval, cfg.Timer.StartScale, cfg.Timer.AutoReset)

	c := clock.New(cfg.Timer.IntervalMs(), cfg.Timer.StartScale, cfg.Timer.AutoReset,
		clock.WithPollInterval(cfg.Timer.PollInterval),
		clock.WithLogger(log),
	)

	collector := metrics.NewCollector(cfg.Timer.Interval)
	c.AddListener(collector)
	c.AddListener(clock.ListenerFunc(func(ev clock.ElapsedEvent) {
		log.Debug("elapsed",
			slog.Duration("scaled_elapsed", ev.ScaledElapsed),
			slog.Float64("scale_percent", ev.ScalePercent),
			slog.Duration("real_delta", ev.RealDelta),
		)
	}))

	outputs := &report.OutputInfo{}

	var events *timeline.StreamingTimeline
	if cfg.Output.EventsCSV != "" {
		events, err = timeline.NewStreamingTimeline(cfg.Output.EventsCSV, cfg.Output.FlushEvery)
		if err != nil {
			return fmt.Errorf("opening events CSV: %w", err)
		}
		c.AddListener(events)
		outputs.EventsCSV = cfg.Output.EventsCSV
		logProgress("Writing notifications to %s", cfg.Output.EventsCSV)
	}

	var sink *database.EventSink
	if cfg.Database.Enabled {
		logProgress("Connecting to database %s@%s:%d/%s...",
			cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

		store, err := database.Open(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}

		sink = database.NewEventSink(store, runID, cfg.Database.QueueSize, log)
		c.AddListener(sink)
		outputs.DBTable = cfg.Database.Table
		logProgress("Storing notifications in table %s", cfg.Database.Table)
	}

	g, gctx := errgroup.WithContext(ctx)

	var srv *server.Server
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		prom := metrics.NewPromCollector(c)
		reg.MustRegister(
			prom,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		c.AddListener(prom)

		srv = server.NewServer(cfg.Metrics.Addr, reg, c, collector, log)
		g.Go(srv.Start)
		logProgress("Serving metrics on %s", cfg.Metrics.Addr)
	}

	var (
		appliedMu sync.Mutex
		applied   []report.ScaleChange
	)
	scheduler := schedule.NewScheduler(c, changes, clockwork.NewRealClock())
	scheduler.SetLogger(log)
	scheduler.AddListener(func(ch schedule.Change) {
		appliedMu.Lock()
		applied = append(applied, report.ScaleChange{After: ch.After, Percent: ch.Percent})
		appliedMu.Unlock()
		logProgress("Scale set to %.1f%% after %s", ch.Percent, ch.After)
	})

	startTime := time.Now()
	collector.Reset()
	c.Start()
	scheduler.Start(ctx)

	progressCtx, stopProgress := context.WithCancel(ctx)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		reportProgress(progressCtx, c, collector)
	}()

	if cfg.Run.Duration > 0 {
		logProgress("Running for %s...", cfg.Run.Duration)
	} else {
		logProgress("Running until interrupted...")
	}

	stopReason := waitForStop(gctx, ctx, c.Done(), cfg.Run.Duration)

	stopProgress()
	<-progressDone
	scheduler.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := c.Shutdown(shutdownCtx); err != nil {
		log.Warn("clock did not stop in time", slog.Any("error", err))
	}
	endTime := time.Now()
	final := c.Snapshot()

	if events != nil {
		rows, err := events.Close()
		if err != nil {
			log.Error("writing events CSV failed", slog.Any("error", err))
		}
		outputs.CSVRows = rows
		if fi, err := os.Stat(cfg.Output.EventsCSV); err == nil {
			outputs.CSVBytes = fi.Size()
		}
	}

	if sink != nil {
		if err := sink.Close(shutdownCtx); err != nil {
			log.Warn("event sink did not drain in time", slog.Any("error", err))
		}
		st := sink.Stats()
		outputs.DBWritten = st.Written
		outputs.DBDropped = st.Dropped
		outputs.DBFailed = st.Failed
	}

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown failed", slog.Any("error", err))
		}
	}
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}

	logProgress("")
	logProgress("Generating report...")

	runInfo := report.RunInfo{
		RunID:      runID,
		StartTime:  startTime,
		EndTime:    endTime,
		Duration:   endTime.Sub(startTime),
		StopReason: stopReason,
	}

	appliedMu.Lock()
	scaleChanges := append([]report.ScaleChange(nil), applied...)
	appliedMu.Unlock()

	rpt := report.GenerateReport(runInfo, cfg.Timer, final, collector.GetSnapshot()).
		WithScaleChanges(scaleChanges)
	if outputs.EventsCSV != "" || outputs.DBTable != "" {
		rpt.WithOutputs(outputs)
	}

	return writeReport(rpt, cfg)
}

// waitForStop blocks until the run should end and returns the reason.
// groupCtx is cancelled by an interrupt or by a failed background task.
func waitForStop(groupCtx, runCtx context.Context, fired <-chan struct{}, d time.Duration) string {
	var timeout <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-groupCtx.Done():
		if runCtx.Err() == nil {
			logProgress("Background task failed, stopping")
		}
		return report.StopInterrupted
	case <-timeout:
		return report.StopDuration
	case <-fired:
		logProgress("Clock fired and stopped")
		return report.StopFired
	}
}

func writeReport(rpt *report.Report, cfg *config.Config) error {
	if cfg.Output.File != "" {
		if err := rpt.WriteToFile(cfg.Output.File); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		logProgress("Report written to %s", cfg.Output.File)
	}

	if cfg.Output.Format == "json" {
		jsonData, err := rpt.ToJSON()
		if err != nil {
			return fmt.Errorf("serializing report: %w", err)
		}
		fmt.Println(string(jsonData))
	} else if !cfg.Output.Quiet {
		fmt.Fprintln(os.Stderr, "")
		formatter := report.NewConsoleFormatter().WithReportPath(cfg.Output.File)
		formatter.PrintSummary(rpt)
	}

	logProgress("")
	logProgress("Done.")
	return nil
}

func loadConfig() (*config.Config, error) {
	if runCfg.ConfigFile != "" {
		cfg, err := config.LoadConfig(runCfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.LoadConfigWithDefaults(), nil
}

func applyFlagsToConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Timer.Interval = runCfg.Interval
	}
	if flags.Changed("scale") {
		cfg.Timer.StartScale = runCfg.Scale
	}
	if flags.Changed("auto-reset") {
		cfg.Timer.AutoReset = runCfg.AutoReset
	}
	if flags.Changed("poll-interval") {
		cfg.Timer.PollInterval = runCfg.PollInterval
	}
	if flags.Changed("duration") {
		cfg.Run.Duration = runCfg.Duration
	}
	if flags.Changed("output") {
		cfg.Output.File = runCfg.Output
	}
	if flags.Changed("format") {
		cfg.Output.Format = runCfg.Format
	}
	if flags.Changed("events-csv") {
		cfg.Output.EventsCSV = runCfg.EventsCSV
	}
	if flags.Changed("quiet") {
		cfg.Output.Quiet = runCfg.Quiet
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = runCfg.MetricsAddr
	}
	if flags.Changed("db") {
		cfg.Database.Enabled = runCfg.Database
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = runCfg.LogLevel
	}
}

func loadSchedule(cfg *config.Config) ([]schedule.Change, error) {
	changes := schedule.FromConfig(cfg.Schedule)
	if runCfg.ScheduleFile != "" {
		fromFile, err := schedule.ParseFile(runCfg.ScheduleFile)
		if err != nil {
			return nil, err
		}
		changes = append(changes, fromFile...)
	}
	if err := schedule.Validate(changes); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	return changes, nil
}

func reportProgress(ctx context.Context, c *clock.ScaledClock, collector *metrics.Collector) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.Snapshot()
			logProgress("[%5.1f%%] Notifications: %d | Accumulated: %s",
				s.ScalePercent, collector.Count(), s.Elapsed.Round(time.Millisecond))
		}
	}
}

func logProgress(format string, args ...interface{}) {
	if runCfg.Quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
