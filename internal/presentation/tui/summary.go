package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// SummaryMarkdown renders the per-channel summary of a run as a markdown table.
func SummaryMarkdown(report *domain.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", report.RunID)
	if !report.From.IsZero() {
		fmt.Fprintf(&sb, "%d frames from %s to %s, %d events.\n\n",
			report.Frames, report.From.Format(time.RFC3339), report.To.Format(time.RFC3339), len(report.Events))
	} else {
		fmt.Fprintf(&sb, "%d frames, %d events.\n\n", report.Frames, len(report.Events))
	}

	sb.WriteString("| Channel | Raised | Escalated | Cleared | Cycles | Completed | Aborted | Exhausted | Data quality | Stale | Alert time |\n")
	sb.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	rows := append([]domain.ChannelSummary{}, report.Summary...)
	if len(rows) > 1 {
		rows = append(rows, report.Totals())
	}
	for _, s := range rows {
		name := s.Channel
		if s.Channel == "total" {
			name = "**total**"
		}
		fmt.Fprintf(&sb, "| %s | %d | %d | %d | %d | %d | %d | %d | %d | %d | %s |\n",
			name, s.AlertsRaised, s.AlertsEscalated, s.AlertsCleared,
			s.CyclesStarted, s.CyclesCompleted, s.CyclesAborted, s.CyclesExhausted,
			s.DataQuality, s.StalePeriods, s.ActiveAlert)
	}
	return sb.String()
}

// WriteSummary prints the summary to w, through glamour when rich is set.
func WriteSummary(w io.Writer, report *domain.Report, rich bool) error {
	md := SummaryMarkdown(report)
	if rich {
		out, err := NewRenderer()(md)
		if err == nil {
			md = out
		}
	}
	_, err := io.WriteString(w, md)
	return err
}
