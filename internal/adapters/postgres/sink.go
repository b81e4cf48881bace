// Package postgres stores run reports in PostgreSQL through the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aretw0/iaqflow/pkg/domain"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `
CREATE TABLE IF NOT EXISTS iaq_runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	data_from   TIMESTAMPTZ,
	data_to     TIMESTAMPTZ,
	frames      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS iaq_events (
	run_id      TEXT NOT NULL REFERENCES iaq_runs (run_id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	channel     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	from_state  TEXT,
	to_state    TEXT,
	cycle       TEXT,
	stage       TEXT,
	stage_index INTEGER,
	attempt     INTEGER,
	tier        TEXT NOT NULL,
	value       DOUBLE PRECISION,
	detail      TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS iaq_channel_summaries (
	run_id  TEXT NOT NULL REFERENCES iaq_runs (run_id) ON DELETE CASCADE,
	channel TEXT NOT NULL,
	kind    TEXT NOT NULL,
	count   INTEGER NOT NULL,
	PRIMARY KEY (run_id, channel, kind)
);`

// execer is the part of *sql.DB and *sql.Tx the sink needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlTx interface {
	execer
	Commit() error
	Rollback() error
}

type database interface {
	execer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (sqlTx, error)
}

// pool adapts *sql.DB to database.
type pool struct {
	*sql.DB
}

func (p pool) BeginTx(ctx context.Context, opts *sql.TxOptions) (sqlTx, error) {
	return p.DB.BeginTx(ctx, opts)
}

// Sink implements ports.ReportWriter on PostgreSQL.
type Sink struct {
	db database
	sq *sql.DB
}

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Sink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Sink {
	return &Sink{db: pool{db}, sq: db}
}

// EnsureSchema creates the report tables when they are missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// Write replaces the stored copy of a run in one transaction: the run row is
// upserted, then its events and per-kind counts are rewritten.
func (s *Sink) Write(ctx context.Context, report *domain.Report) error {
	if s == nil || s.db == nil {
		return errors.New("postgres: nil db")
	}
	if report == nil || report.RunID == "" {
		return errors.New("postgres: report without run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := writeReport(ctx, tx, report); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func writeReport(ctx context.Context, tx execer, report *domain.Report) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO iaq_runs (run_id, started_at, finished_at, data_from, data_to, frames)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (run_id) DO UPDATE SET
	started_at = EXCLUDED.started_at,
	finished_at = EXCLUDED.finished_at,
	data_from = EXCLUDED.data_from,
	data_to = EXCLUDED.data_to,
	frames = EXCLUDED.frames`,
		report.RunID,
		report.StartedAt,
		report.FinishedAt,
		nullableTime(report.From),
		nullableTime(report.To),
		report.Frames,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM iaq_events WHERE run_id = $1`, report.RunID); err != nil {
		return fmt.Errorf("postgres: clear events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM iaq_channel_summaries WHERE run_id = $1`, report.RunID); err != nil {
		return fmt.Errorf("postgres: clear summaries: %w", err)
	}

	for _, ev := range report.Events {
		_, err := tx.ExecContext(ctx, `
INSERT INTO iaq_events (
	run_id, seq, ts, channel, kind, from_state, to_state, cycle,
	stage, stage_index, attempt, tier, value, detail
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8,
	$9, $10, $11, $12, $13, $14
)`,
			report.RunID,
			ev.Seq,
			ev.Timestamp,
			ev.Channel,
			string(ev.Kind),
			nullableString(ev.From),
			nullableString(ev.To),
			nullableString(ev.Cycle),
			nullableString(ev.Stage),
			nullableInt(ev.StageIndex),
			nullableInt(ev.Attempt),
			ev.Tier.String(),
			sql.NullFloat64{Float64: ev.Value, Valid: true},
			ev.Detail,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert event %d: %w", ev.Seq, err)
		}
	}

	for _, sum := range report.Summary {
		for _, kind := range sum.Kinds() {
			_, err := tx.ExecContext(ctx, `
INSERT INTO iaq_channel_summaries (run_id, channel, kind, count)
VALUES ($1, $2, $3, $4)`,
				report.RunID, sum.Channel, string(kind), sum.ByKind[kind])
			if err != nil {
				return fmt.Errorf("postgres: insert summary %s/%s: %w", sum.Channel, kind, err)
			}
		}
	}
	return nil
}

// Close closes the pool when the sink owns it.
func (s *Sink) Close() error {
	if s.sq == nil {
		return nil
	}
	return s.sq.Close()
}
