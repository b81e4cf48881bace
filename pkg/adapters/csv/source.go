package csv

import (
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/aretw0/iaqflow/pkg/ports"
)

// fallbackLayouts are tried when a timestamp does not match the configured layout.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
}

// File is a frame source backed by an open file.
type File struct {
	ports.FrameSource
	f *os.File
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

// Open opens a wide or tidy CSV file as a frame source.
func Open(path string, cols config.ColumnSettings) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := NewSource(f, cols)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{FrameSource: src, f: f}, nil
}

// NewSource reads the header and returns a tidy source when the table has
// channel and value columns, a wide source otherwise.
func NewSource(r io.Reader, cols config.ColumnSettings) (ports.FrameSource, error) {
	cr := newReader(r)
	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if tidy, ok := tidyHeader(header, cols.Timestamp); ok {
		return &TidySource{r: cr, layout: cols.Layout, cols: tidy, line: 1}, nil
	}
	return newWide(cr, header, cols)
}

func newReader(r io.Reader) *stdcsv.Reader {
	cr := stdcsv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func readHeader(cr *stdcsv.Reader) ([]string, error) {
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty table: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[i] = strings.ToLower(name)
	}
	return header, nil
}

// WideSource implements ports.FrameSource over a table with one column per measurement.
type WideSource struct {
	r        *stdcsv.Reader
	layout   string
	tsCol    int
	channels map[int]string
	line     int
}

// NewWideSource reads the header of a wide table and maps its columns onto channels.
// Columns that do not match the pattern are ignored.
func NewWideSource(r io.Reader, cols config.ColumnSettings) (*WideSource, error) {
	cr := newReader(r)
	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	return newWide(cr, header, cols)
}

func newWide(cr *stdcsv.Reader, header []string, cols config.ColumnSettings) (*WideSource, error) {
	pattern := cols.Pattern
	if pattern == "" {
		pattern = config.DefaultColumnPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid column pattern: %w", err)
	}
	zi, mi := re.SubexpIndex("zone"), re.SubexpIndex("metric")
	if zi < 0 || mi < 0 {
		return nil, fmt.Errorf("column pattern must define the groups zone and metric")
	}

	s := &WideSource{r: cr, layout: cols.Layout, tsCol: -1, channels: make(map[int]string), line: 1}
	tsName := timestampColumn(cols.Timestamp)
	for i, name := range header {
		if name == tsName {
			s.tsCol = i
			continue
		}
		if m := re.FindStringSubmatch(name); m != nil {
			s.channels[i] = m[zi] + "." + m[mi]
		}
	}
	if s.tsCol < 0 {
		return nil, fmt.Errorf("timestamp column %q not found", tsName)
	}
	if len(s.channels) == 0 {
		return nil, fmt.Errorf("no column matches %s", pattern)
	}
	return s, nil
}

// Channels returns the channel IDs the table provides.
func (s *WideSource) Channels() []string {
	f := domain.Frame{Readings: make(map[string]domain.Reading, len(s.channels))}
	for _, id := range s.channels {
		f.Readings[id] = domain.Reading{}
	}
	return f.Channels()
}

// Next returns the next row as a frame. Empty and NaN cells become invalid readings.
func (s *WideSource) Next(ctx context.Context) (domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return domain.Frame{}, err
	}
	rec, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Frame{}, io.EOF
		}
		return domain.Frame{}, fmt.Errorf("line %d: %w", s.line+1, err)
	}
	s.line++

	if s.tsCol >= len(rec) {
		return domain.Frame{}, fmt.Errorf("line %d: missing timestamp", s.line)
	}
	ts, err := parseTime(s.layout, rec[s.tsCol])
	if err != nil {
		return domain.Frame{}, fmt.Errorf("line %d: %w", s.line, err)
	}

	frame := domain.Frame{Timestamp: ts, Readings: make(map[string]domain.Reading, len(s.channels))}
	for i, id := range s.channels {
		if i >= len(rec) {
			frame.Readings[id] = domain.Missing()
			continue
		}
		frame.Readings[id] = parseValue(rec[i])
	}
	return frame, nil
}

type tidyColumns struct {
	ts, channel, value, quality int
}

func tidyHeader(header []string, timestamp string) (tidyColumns, bool) {
	cols := tidyColumns{ts: -1, channel: -1, value: -1, quality: -1}
	tsName := timestampColumn(timestamp)
	for i, name := range header {
		switch name {
		case tsName, "timestamp":
			if cols.ts < 0 {
				cols.ts = i
			}
		case "channel":
			cols.channel = i
		case "value":
			cols.value = i
		case "quality":
			cols.quality = i
		}
	}
	return cols, cols.ts >= 0 && cols.channel >= 0 && cols.value >= 0
}

// TidySource implements ports.FrameSource over a table with one reading per row.
// Consecutive rows that share a timestamp form one frame.
type TidySource struct {
	r       *stdcsv.Reader
	layout  string
	cols    tidyColumns
	pending *tidyRow
	line    int
}

type tidyRow struct {
	ts      time.Time
	channel string
	reading domain.Reading
}

// Next returns the next frame.
func (s *TidySource) Next(ctx context.Context) (domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return domain.Frame{}, err
	}
	first := s.pending
	s.pending = nil
	if first == nil {
		row, err := s.read()
		if err != nil {
			return domain.Frame{}, err
		}
		first = &row
	}

	frame := domain.Frame{
		Timestamp: first.ts,
		Readings:  map[string]domain.Reading{first.channel: first.reading},
	}
	for {
		row, err := s.read()
		if errors.Is(err, io.EOF) {
			return frame, nil
		}
		if err != nil {
			return domain.Frame{}, err
		}
		if !row.ts.Equal(frame.Timestamp) {
			s.pending = &row
			return frame, nil
		}
		frame.Readings[row.channel] = row.reading
	}
}

func (s *TidySource) read() (tidyRow, error) {
	rec, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return tidyRow{}, io.EOF
		}
		return tidyRow{}, fmt.Errorf("line %d: %w", s.line+1, err)
	}
	s.line++

	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	ts, err := parseTime(s.layout, field(s.cols.ts))
	if err != nil {
		return tidyRow{}, fmt.Errorf("line %d: %w", s.line, err)
	}
	channel := field(s.cols.channel)
	if channel == "" {
		return tidyRow{}, fmt.Errorf("line %d: empty channel", s.line)
	}

	reading := parseValue(field(s.cols.value))
	switch q := domain.Quality(strings.ToLower(field(s.cols.quality))); q {
	case domain.QualitySuspect, domain.QualityBad:
		reading.Quality = q
	}
	return tidyRow{ts: ts, channel: channel, reading: reading}, nil
}

func timestampColumn(name string) string {
	if name == "" {
		return config.DefaultTimestamp
	}
	return strings.ToLower(name)
}

func parseTime(layout, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if layout != "" {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	for _, l := range fallbackLayouts {
		if ts, err := time.Parse(l, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

func parseValue(cell string) domain.Reading {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "nan", "na", "null", "none":
		return domain.Missing()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return domain.Missing()
	}
	return domain.Reading{Value: v, Quality: domain.QualityGood}
}
