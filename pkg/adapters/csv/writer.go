package csv

import (
	"context"
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
)

var eventHeader = []string{
	"seq", "timestamp", "channel", "event", "from", "to", "cycle",
	"stage", "stage_index", "attempt", "tier", "value", "detail",
}

var summaryHeader = []string{"channel", "event", "count"}

// Writer implements ports.ReportWriter. It writes <run>_events.csv and
// <run>_summary.csv into Dir.
type Writer struct {
	Dir string
}

// NewWriter creates a writer for the given directory.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Write writes the event log and the grouped summary.
func (w *Writer) Write(ctx context.Context, report *domain.Report) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := writeFile(filepath.Join(w.Dir, report.RunID+"_events.csv"), func(out io.Writer) error {
		return WriteEvents(out, report.Events)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(w.Dir, report.RunID+"_summary.csv"), func(out io.Writer) error {
		return WriteSummary(out, report.Summary)
	})
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteEvents writes one row per event, in sequence order.
func WriteEvents(w io.Writer, events []domain.Event) error {
	cw := stdcsv.NewWriter(w)
	if err := cw.Write(eventHeader); err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			strconv.Itoa(ev.Seq),
			ev.Timestamp.Format(time.RFC3339),
			ev.Channel,
			string(ev.Kind),
			ev.From,
			ev.To,
			ev.Cycle,
			ev.Stage,
			optionalInt(ev.StageIndex),
			optionalInt(ev.Attempt),
			ev.Tier.String(),
			strconv.FormatFloat(ev.Value, 'g', -1, 64),
			ev.Detail,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the event counts grouped by channel and event kind.
func WriteSummary(w io.Writer, summary []domain.ChannelSummary) error {
	cw := stdcsv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range summary {
		for _, kind := range s.Kinds() {
			if err := cw.Write([]string{s.Channel, string(kind), strconv.Itoa(s.ByKind[kind])}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func optionalInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
