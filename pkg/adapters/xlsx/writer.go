// Package xlsx writes run reports as Excel workbooks.
package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "summary"
	eventsSheet  = "events"
	countsSheet  = "counts"
)

// Writer implements ports.ReportWriter. It writes <run>.xlsx into Dir.
type Writer struct {
	Dir string
}

// NewWriter creates a writer for the given directory.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

func (w *Writer) Write(ctx context.Context, report *domain.Report) error {
	data, err := Build(report)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(filepath.Join(w.Dir, report.RunID+".xlsx"), data, 0644)
}

// Build renders the report as a workbook with a summary, an event log and
// the per-kind counts.
func Build(report *domain.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(eventsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(countsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "IAQ run report")
	_ = f.SetCellValue(summarySheet, "A2", "Run")
	_ = f.SetCellValue(summarySheet, "B2", report.RunID)
	_ = f.SetCellValue(summarySheet, "A3", "Data from")
	_ = f.SetCellValue(summarySheet, "B3", formatTime(report.From))
	_ = f.SetCellValue(summarySheet, "A4", "Data to")
	_ = f.SetCellValue(summarySheet, "B4", formatTime(report.To))
	_ = f.SetCellValue(summarySheet, "A5", "Frames")
	_ = f.SetCellValue(summarySheet, "B5", report.Frames)

	header := []any{
		"Channel", "Alerts raised", "Escalated", "Cleared", "Cycles started",
		"Completed", "Aborted", "Exhausted", "Data quality", "Stale periods", "Active alert (min)",
	}
	if err := f.SetSheetRow(summarySheet, "A7", &header); err != nil {
		return nil, err
	}
	rows := append(append([]domain.ChannelSummary(nil), report.Summary...), report.Totals())
	for i, s := range rows {
		row := []any{
			s.Channel, s.AlertsRaised, s.AlertsEscalated, s.AlertsCleared, s.CyclesStarted,
			s.CyclesCompleted, s.CyclesAborted, s.CyclesExhausted, s.DataQuality, s.StalePeriods,
			s.ActiveAlert.Minutes(),
		}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+8), &row); err != nil {
			return nil, err
		}
	}

	eventHeader := []any{"Seq", "Timestamp", "Channel", "Event", "From", "To", "Cycle", "Stage", "Attempt", "Tier", "Value", "Detail"}
	if err := f.SetSheetRow(eventsSheet, "A1", &eventHeader); err != nil {
		return nil, err
	}
	for i, ev := range report.Events {
		row := []any{
			ev.Seq, formatTime(ev.Timestamp), ev.Channel, string(ev.Kind), ev.From, ev.To,
			ev.Cycle, ev.Stage, ev.Attempt, ev.Tier.String(), ev.Value, ev.Detail,
		}
		if err := f.SetSheetRow(eventsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	_ = f.SetCellValue(countsSheet, "A1", "Channel")
	_ = f.SetCellValue(countsSheet, "B1", "Event")
	_ = f.SetCellValue(countsSheet, "C1", "Count")
	r := 2
	for _, s := range report.Summary {
		for _, kind := range s.Kinds() {
			_ = f.SetCellValue(countsSheet, fmt.Sprintf("A%d", r), s.Channel)
			_ = f.SetCellValue(countsSheet, fmt.Sprintf("B%d", r), string(kind))
			_ = f.SetCellValue(countsSheet, fmt.Sprintf("C%d", r), s.ByKind[kind])
			r++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
