package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Timer    TimerConfig     `yaml:"timer"`
	Run      RunConfig       `yaml:"run"`
	Schedule []ScheduleEntry `yaml:"schedule"`
	Output   OutputConfig    `yaml:"output"`
	Database DatabaseConfig  `yaml:"database"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Log      LogConfig       `yaml:"log"`
}

// TimerConfig holds the scaled clock parameters.
type TimerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	StartScale   float64       `yaml:"start_scale"`
	AutoReset    bool          `yaml:"auto_reset"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// RunConfig holds settings for a CLI run.
type RunConfig struct {
	// Duration is the real-time length of the run; zero runs until interrupted
	// or until a non-resetting clock fires.
	Duration time.Duration `yaml:"duration"`
}

// ScheduleEntry changes the clock scale once After has passed in real time.
type ScheduleEntry struct {
	After   time.Duration `yaml:"after"`
	Percent float64       `yaml:"percent"`
}

// OutputConfig holds output settings.
type OutputConfig struct {
	File       string `yaml:"file"`
	Format     string `yaml:"format"`
	EventsCSV  string `yaml:"events_csv"`
	FlushEvery int    `yaml:"flush_every"`
	Quiet      bool   `yaml:"quiet"`
}

// DatabaseConfig holds PostgreSQL settings for the elapsed event sink.
type DatabaseConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	DBName    string `yaml:"dbname"`
	SSLMode   string `yaml:"sslmode"`
	Table     string `yaml:"table"`
	QueueSize int    `yaml:"queue_size"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9464". Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// LoadConfig reads configuration from a YAML file and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := LoadConfigWithDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithDefaults returns a Config with default values.
func LoadConfigWithDefaults() *Config {
	cfg := &Config{
		Timer: TimerConfig{
			Interval:     time.Second,
			StartScale:   100,
			AutoReset:    true,
			PollInterval: time.Millisecond,
		},
		Run: RunConfig{
			Duration: 10 * time.Second,
		},
		Output: OutputConfig{
			Format:     "text",
			FlushEvery: 10,
		},
		Database: DatabaseConfig{
			Host:      "localhost",
			Port:      5432,
			User:      "postgres",
			DBName:    "postgres",
			SSLMode:   "prefer",
			Table:     "scaledclock_events",
			QueueSize: 1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}

	applyEnvOverrides(cfg)
	return cfg
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCALEDCLOCK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timer.Interval = d
		}
	}
	if v := os.Getenv("SCALEDCLOCK_START_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Timer.StartScale = f
		}
	}
	if v := os.Getenv("SCALEDCLOCK_AUTO_RESET"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Timer.AutoReset = b
		}
	}
	if v := os.Getenv("SCALEDCLOCK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SCALEDCLOCK_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("PGHOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PGPORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PGUSER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PGPASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PGDATABASE"); v != "" {
		cfg.Database.DBName = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Timer.Interval <= 0 {
		return fmt.Errorf("timer.interval must be > 0")
	}
	if c.Timer.PollInterval <= 0 {
		return fmt.Errorf("timer.poll_interval must be > 0")
	}
	if c.Timer.PollInterval > time.Second {
		return fmt.Errorf("timer.poll_interval must be <= 1s")
	}
	if c.Run.Duration < 0 {
		return fmt.Errorf("run.duration must be >= 0")
	}
	for i, e := range c.Schedule {
		if e.After < 0 {
			return fmt.Errorf("schedule[%d].after must be >= 0", i)
		}
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("output.format must be 'text' or 'json'")
	}
	if c.Output.FlushEvery < 0 {
		return fmt.Errorf("output.flush_every must be >= 0")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	if c.Database.Enabled {
		if err := c.Database.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535")
	}
	if d.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if d.DBName == "" {
		return fmt.Errorf("database.dbname is required")
	}
	if !tableNameRe.MatchString(d.Table) {
		return fmt.Errorf("database.table %q is not a valid identifier", d.Table)
	}
	if d.QueueSize < 1 {
		return fmt.Errorf("database.queue_size must be >= 1")
	}
	return nil
}

// IntervalMs returns the timer interval in milliseconds.
func (t *TimerConfig) IntervalMs() float64 {
	return float64(t.Interval) / float64(time.Millisecond)
}

// ConnectionString returns a PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf("host=%s port=%d user=%s dbname=%s",
		d.Host, d.Port, d.User, d.DBName)
	if d.Password != "" {
		connStr += fmt.Sprintf(" password=%s", d.Password)
	}
	if d.SSLMode != "" {
		connStr += fmt.Sprintf(" sslmode=%s", d.SSLMode)
	}
	return connStr
}

// ToYAML serializes the configuration. The database password is masked.
func (c *Config) ToYAML() ([]byte, error) {
	masked := *c
	if masked.Database.Password != "" {
		masked.Database.Password = "********"
	}
	return yaml.Marshal(&masked)
}

// ExampleYAML is written by "config init".
const ExampleYAML = `# scaledclock configuration
timer:
  interval: 1s        # scaled time between notifications
  start_scale: 100    # percent applied on start, clamped to 0-100
  auto_reset: true    # rearm after firing instead of stopping
  poll_interval: 1ms

run:
  duration: 30s       # real time; 0 runs until interrupted

# scale changes applied at real-time offsets from the start of the run
schedule:
  - after: 10s
    percent: 50
  - after: 20s
    percent: 0

output:
  file: ""            # JSON report path
  format: text        # console summary: text or json
  events_csv: ""      # CSV log of every notification
  flush_every: 10

database:
  enabled: false
  host: localhost
  port: 5432
  user: postgres
  dbname: postgres
  sslmode: prefer
  table: scaledclock_events
  queue_size: 1024

metrics:
  addr: ""            # e.g. ":9464" to serve /metrics

log:
  level: info
  format: text
`
