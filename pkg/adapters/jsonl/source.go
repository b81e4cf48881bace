// Package jsonl reads frames from JSON lines and writes reports as JSON.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// maxLine bounds a single encoded frame.
const maxLine = 1 << 20

// Source implements ports.FrameSource over newline-delimited JSON frames:
//
//	{"timestamp":"2025-03-03T09:00:00Z","readings":{"l19a.co2":820,"l19a.tvoc":null}}
//
// A reading is a number, null (missing) or an object {"value":..,"quality":..}.
type Source struct {
	scanner *bufio.Scanner
	line    int
}

// NewSource creates a source reading from r.
func NewSource(r io.Reader) *Source {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Source{scanner: sc}
}

type wireFrame struct {
	Timestamp time.Time                  `json:"timestamp"`
	Readings  map[string]json.RawMessage `json:"readings"`
}

// Next decodes the next non-blank line.
func (s *Source) Next(ctx context.Context) (domain.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Frame{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return domain.Frame{}, fmt.Errorf("line %d: %w", s.line+1, err)
			}
			return domain.Frame{}, io.EOF
		}
		s.line++
		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		f, err := decodeFrame(raw)
		if err != nil {
			return domain.Frame{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		return f, nil
	}
}

func decodeFrame(raw []byte) (domain.Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(raw, &wf); err != nil {
		return domain.Frame{}, err
	}
	if wf.Timestamp.IsZero() {
		return domain.Frame{}, errors.New("missing timestamp")
	}
	f := domain.Frame{Timestamp: wf.Timestamp, Readings: make(map[string]domain.Reading, len(wf.Readings))}
	for id, msg := range wf.Readings {
		r, err := decodeReading(msg)
		if err != nil {
			return domain.Frame{}, fmt.Errorf("reading %s: %w", id, err)
		}
		f.Readings[id] = r
	}
	return f, nil
}

func decodeReading(msg json.RawMessage) (domain.Reading, error) {
	msg = bytes.TrimSpace(msg)
	switch {
	case len(msg) == 0 || bytes.Equal(msg, []byte("null")):
		return domain.Missing(), nil
	case msg[0] == '{':
		var r struct {
			Value   *float64       `json:"value"`
			Quality domain.Quality `json:"quality"`
		}
		if err := json.Unmarshal(msg, &r); err != nil {
			return domain.Reading{}, err
		}
		if r.Value == nil {
			return domain.Missing(), nil
		}
		if r.Quality == "" {
			r.Quality = domain.QualityGood
		}
		return domain.Reading{Value: *r.Value, Quality: r.Quality}, nil
	}
	var v float64
	if err := json.Unmarshal(msg, &v); err != nil {
		return domain.Reading{}, err
	}
	return domain.Reading{Value: v, Quality: domain.QualityGood}, nil
}
