// Package pdf renders a printable summary of a run.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/jung-kurt/gofpdf"
)

// maxEvents caps the event table; the full log belongs in the CSV or XLSX output.
const maxEvents = 200

// Writer implements ports.ReportWriter. It writes <run>.pdf into Dir.
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
	return os.WriteFile(filepath.Join(w.Dir, report.RunID+".pdf"), data, 0644)
}

// Build renders the per-channel summary followed by the alert and cycle events.
func Build(report *domain.Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "IAQ Run Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", report.RunID))
	pdf.Ln(5)
	if !report.From.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Data: %s to %s (%d frames)",
			report.From.Format(time.RFC3339), report.To.Format(time.RFC3339), report.Frames))
		pdf.Ln(5)
	}
	if !report.FinishedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.FinishedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	cols := []struct {
		title string
		width float64
	}{
		{"Channel", 50}, {"Raised", 20}, {"Escalated", 22}, {"Cleared", 20}, {"Started", 20},
		{"Completed", 22}, {"Aborted", 20}, {"Exhausted", 22}, {"Data quality", 26}, {"Active (min)", 26},
	}
	pdf.SetFont("Arial", "B", 9)
	for _, c := range cols {
		pdf.CellFormat(c.width, 6, c.title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	rows := append(append([]domain.ChannelSummary(nil), report.Summary...), report.Totals())
	for _, s := range rows {
		values := []string{
			tr(s.Channel),
			fmt.Sprint(s.AlertsRaised), fmt.Sprint(s.AlertsEscalated), fmt.Sprint(s.AlertsCleared),
			fmt.Sprint(s.CyclesStarted), fmt.Sprint(s.CyclesCompleted), fmt.Sprint(s.CyclesAborted),
			fmt.Sprint(s.CyclesExhausted), fmt.Sprint(s.DataQuality),
			fmt.Sprintf("%.1f", s.ActiveAlert.Minutes()),
		}
		for i, v := range values {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(cols[i].width, 6, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Events")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 8)
	shown := 0
	for _, ev := range report.Events {
		if ev.Kind == domain.EventDataQuality {
			continue
		}
		if shown == maxEvents {
			pdf.Cell(0, 5, fmt.Sprintf("... %d more events omitted", len(report.Events)-shown))
			pdf.Ln(5)
			break
		}
		pdf.CellFormat(38, 5, ev.Timestamp.Format("2006-01-02 15:04"), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 5, tr(ev.Channel), "", 0, "L", false, 0, "")
		pdf.CellFormat(34, 5, string(ev.Kind), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(ev.Detail), "", 0, "L", false, 0, "")
		pdf.Ln(5)
		shown++
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
