package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// Writer implements ports.ReportWriter. It writes the whole report as
// indented JSON to <run>.json in Dir.
type Writer struct {
	Dir string
}

// NewWriter creates a writer for the given directory.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

func (w *Writer) Write(ctx context.Context, report *domain.Report) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(w.Dir, report.RunID+".json"))
	if err != nil {
		return err
	}
	if err := Encode(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes the report as indented JSON.
func Encode(w io.Writer, report *domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// EncodeEvents writes one JSON object per line.
func EncodeEvents(w io.Writer, events []domain.Event) error {
	enc := json.NewEncoder(w)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return err
		}
	}
	return nil
}
