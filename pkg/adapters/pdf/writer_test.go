package pdf_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/iaqflow/pkg/adapters/pdf"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	at := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	report := &domain.Report{
		RunID:      "run-1",
		From:       at,
		To:         at.Add(time.Hour),
		FinishedAt: at.Add(2 * time.Hour),
		Frames:     61,
		Events: []domain.Event{
			{Timestamp: at, Channel: "a.co2", Kind: domain.EventAlertRaised, Detail: "warning high bound held for 3 samples (value 1050 ppm)"},
			{Timestamp: at, Channel: "a.co2", Kind: domain.EventDataQuality, Detail: "missing"},
		},
		Summary: []domain.ChannelSummary{{Channel: "a.co2", AlertsRaised: 1, ActiveAlert: 30 * time.Minute}},
	}

	data, err := pdf.Build(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestWriter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, pdf.NewWriter(dir).Write(context.Background(), &domain.Report{RunID: "empty"}))
	_, err := os.Stat(filepath.Join(dir, "empty.pdf"))
	assert.NoError(t, err)
}
