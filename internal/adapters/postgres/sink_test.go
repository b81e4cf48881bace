package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []any
}

type fakeDB struct {
	calls      []execCall
	failOn     string
	failCommit bool
	begun      int
	committed  int
	rolledBack int
}

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	if f.failOn != "" && strings.Contains(query, f.failOn) {
		return nil, errors.New("boom")
	}
	return driverResult(1), nil
}

func (f *fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (sqlTx, error) {
	f.begun++
	return &fakeTx{db: f}, nil
}

type fakeTx struct {
	db *fakeDB
}

func (t *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.db.ExecContext(ctx, query, args...)
}

func (t *fakeTx) Commit() error {
	if t.db.failCommit {
		return errors.New("commit refused")
	}
	t.db.committed++
	return nil
}

func (t *fakeTx) Rollback() error {
	t.db.rolledBack++
	return nil
}

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

func sampleReport() *domain.Report {
	at := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	return &domain.Report{
		RunID:      "run-1",
		StartedAt:  at,
		FinishedAt: at.Add(time.Second),
		From:       at,
		To:         at.Add(time.Hour),
		Frames:     61,
		Events: []domain.Event{
			{Seq: 1, Timestamp: at, Channel: "a.co2", Kind: domain.EventAlertRaised, From: "normal", To: "warning", Tier: domain.TierWarning, Value: 1050},
			{Seq: 2, Timestamp: at, Channel: "a.co2", Kind: domain.EventCycleStarted, Cycle: "dilution", Stage: "vav_max", StageIndex: 1, Attempt: 1, Tier: domain.TierWarning},
		},
		Summary: []domain.ChannelSummary{{
			Channel: "a.co2",
			ByKind:  map[domain.EventKind]int{domain.EventAlertRaised: 1, domain.EventCycleStarted: 1},
		}},
	}
}

func TestSink_Write(t *testing.T) {
	db := &fakeDB{}
	sink := &Sink{db: db}

	require.NoError(t, sink.Write(context.Background(), sampleReport()))
	assert.Equal(t, 1, db.begun)
	assert.Equal(t, 1, db.committed)
	assert.Zero(t, db.rolledBack)
	require.Len(t, db.calls, 7)

	assert.Contains(t, db.calls[0].query, "INSERT INTO iaq_runs")
	assert.Equal(t, "run-1", db.calls[0].args[0])
	assert.Equal(t, 61, db.calls[0].args[5])

	assert.Contains(t, db.calls[1].query, "DELETE FROM iaq_events")
	assert.Contains(t, db.calls[2].query, "DELETE FROM iaq_channel_summaries")
	assert.Equal(t, []any{"run-1"}, db.calls[1].args)

	ev := db.calls[3]
	assert.Contains(t, ev.query, "INSERT INTO iaq_events")
	assert.NotContains(t, ev.query, "ON CONFLICT")
	require.Len(t, ev.args, 14)
	assert.Equal(t, "alert_raised", ev.args[4])
	assert.Equal(t, sql.NullString{String: "normal", Valid: true}, ev.args[5])
	assert.Equal(t, sql.NullString{}, ev.args[7], "no cycle")
	assert.Equal(t, "warning", ev.args[11])

	started := db.calls[4]
	assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, started.args[9])

	assert.Contains(t, db.calls[5].query, "INSERT INTO iaq_channel_summaries")
	assert.Equal(t, []any{"run-1", "a.co2", "alert_raised", 1}, db.calls[5].args)
	assert.Equal(t, "cycle_started", db.calls[6].args[2])
}

func TestSink_WriteRollsBackOnFailure(t *testing.T) {
	db := &fakeDB{failOn: "INSERT INTO iaq_events"}
	sink := &Sink{db: db}

	err := sink.Write(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert event 1")
	assert.Len(t, db.calls, 4, "stops at the first failure")
	assert.Equal(t, 1, db.rolledBack)
	assert.Zero(t, db.committed)
}

func TestSink_WriteErrors(t *testing.T) {
	db := &fakeDB{failCommit: true}
	sink := &Sink{db: db}

	err := sink.Write(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: commit")

	assert.Error(t, sink.Write(context.Background(), &domain.Report{}))
	var nilSink *Sink
	assert.Error(t, nilSink.Write(context.Background(), sampleReport()))
}

func TestSink_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	sink := &Sink{db: db}
	require.NoError(t, sink.EnsureSchema(context.Background()))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].query, "CREATE TABLE IF NOT EXISTS iaq_events")
	assert.NoError(t, sink.Close())
}

func TestNullable(t *testing.T) {
	assert.False(t, nullableTime(time.Time{}).Valid)
	assert.True(t, nullableTime(time.Now()).Valid)
	assert.False(t, nullableInt(0).Valid)
}
