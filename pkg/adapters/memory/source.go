package memory

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// Source implements ports.FrameSource over a slice of frames.
type Source struct {
	frames []domain.Frame
	pos    int
}

// NewSource creates a source that yields the given frames in the given order.
func NewSource(frames ...domain.Frame) *Source {
	return &Source{frames: frames}
}

// NewSeries builds frames at a fixed step from per-channel value columns.
// NaN values become missing readings; columns may differ in length, in which
// case shorter channels are absent from the later frames.
func NewSeries(start time.Time, step time.Duration, columns map[string][]float64) *Source {
	n := 0
	for _, col := range columns {
		if len(col) > n {
			n = len(col)
		}
	}
	frames := make([]domain.Frame, n)
	for i := range frames {
		frames[i] = domain.Frame{
			Timestamp: start.Add(time.Duration(i) * step),
			Readings:  make(map[string]domain.Reading, len(columns)),
		}
	}
	for id, col := range columns {
		for i, v := range col {
			if math.IsNaN(v) {
				frames[i].Readings[id] = domain.Missing()
				continue
			}
			frames[i].Readings[id] = domain.Reading{Value: v, Quality: domain.QualityGood}
		}
	}
	return NewSource(frames...)
}

// Next returns the next frame or io.EOF.
func (s *Source) Next(ctx context.Context) (domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return domain.Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return domain.Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Len returns the number of frames the source was built with.
func (s *Source) Len() int {
	return len(s.frames)
}
