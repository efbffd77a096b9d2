package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/myorg/scaledclock/internal/clock"
	"github.com/myorg/scaledclock/internal/config"
)

// Pool sizing for one sink writer plus schema and count queries.
const (
	maxConns          = 2
	maxConnIdleTime   = 5 * time.Minute
	healthCheckPeriod = 30 * time.Second
)

// querier is the part of pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EventStore persists elapsed events in a single PostgreSQL table.
type EventStore struct {
	db        querier
	pool      *pgxpool.Pool
	table     string
	quoted    string
	insertSQL string
}

// Open connects to PostgreSQL and verifies the connection. The table named
// in cfg is not created; call EnsureSchema for that.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*EventStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MaxConnIdleTime = maxConnIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	s := newEventStore(pool, cfg.Table)
	s.pool = pool
	return s, nil
}

func newEventStore(db querier, table string) *EventStore {
	quoted := pgx.Identifier{table}.Sanitize()
	return &EventStore{
		db:     db,
		table:  table,
		quoted: quoted,
		insertSQL: fmt.Sprintf(`INSERT INTO %s (run_id, fired_at, scaled_elapsed_ms, scale_percent, real_delta_ms)
VALUES ($1, $2, $3, $4, $5)`, quoted),
	}
}

// Table returns the unquoted table name.
func (s *EventStore) Table() string {
	return s.table
}

// Close closes the underlying pool, if the store owns one.
func (s *EventStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the event table and its run index if missing.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id                BIGSERIAL PRIMARY KEY,
	run_id            TEXT NOT NULL,
	fired_at          TIMESTAMPTZ NOT NULL,
	scaled_elapsed_ms DOUBLE PRECISION NOT NULL,
	scale_percent     DOUBLE PRECISION NOT NULL,
	real_delta_ms     DOUBLE PRECISION NOT NULL
)`, s.quoted),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (run_id, fired_at)`,
			pgx.Identifier{s.table + "_run_idx"}.Sanitize(), s.quoted),
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating event table %s: %w", s.table, err)
		}
	}
	return nil
}

// DropSchema drops the event table.
func (s *EventStore) DropSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.quoted)); err != nil {
		return fmt.Errorf("dropping event table %s: %w", s.table, err)
	}
	return nil
}

// InsertEvent stores one event tagged with runID. Durations are stored in
// milliseconds.
func (s *EventStore) InsertEvent(ctx context.Context, runID string, ev clock.ElapsedEvent) error {
	_, err := s.db.Exec(ctx, s.insertSQL,
		runID,
		ev.Timestamp,
		durationMs(ev.ScaledElapsed),
		ev.ScalePercent,
		durationMs(ev.RealDelta),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// CountEvents returns the number of stored events for a run.
func (s *EventStore) CountEvents(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE run_id = $1`, s.quoted),
		runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
