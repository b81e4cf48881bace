package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	newReport := func(id string) *domain.Report {
		return &domain.Report{
			RunID:  id,
			From:   at,
			To:     at.Add(time.Hour),
			Frames: 12,
			Events: []domain.Event{{
				Seq:       1,
				Timestamp: at.Add(10 * time.Minute),
				Channel:   "l19a.co2",
				Kind:      domain.EventAlertRaised,
				Tier:      domain.TierWarning,
				Value:     1050,
			}},
			Summary: []domain.ChannelSummary{{
				Channel:      "l19a.co2",
				AlertsRaised: 1,
				ActiveAlert:  50 * time.Minute,
				ByKind:       map[domain.EventKind]int{domain.EventAlertRaised: 1},
			}},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		report := newReport(runID)
		require.NoError(t, store.Save(ctx, report), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, report.Frames, loaded.Frames)
		require.Len(t, loaded.Events, 1)
		assert.Equal(t, domain.EventAlertRaised, loaded.Events[0].Kind)
		assert.Equal(t, domain.TierWarning, loaded.Events[0].Tier)
		assert.True(t, report.Events[0].Timestamp.Equal(loaded.Events[0].Timestamp))
		require.Len(t, loaded.Summary, 1)
		assert.Equal(t, 50*time.Minute, loaded.Summary[0].ActiveAlert)
	})

	t.Run("Loaded copy is isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		loaded.Events[0].Channel = "mutated"

		again, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, "l19a.co2", again.Events[0].Channel)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newReport(runID)))
		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, newReport(id1))
		_ = store.Save(ctx, newReport(id2))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
