package ports

import (
	"context"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// FrameSource yields frames in ascending timestamp order.
// Next returns io.EOF once the source is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (domain.Frame, error)
}

// ReferenceProvider fetches auxiliary environmental data for the given day.
type ReferenceProvider interface {
	Fetch(ctx context.Context, day time.Time) (domain.ReferenceReading, error)
}

// Runner runs the decision engine over a frame source. A non-nil report
// returned with an error means the run completed but one of its outputs failed.
type Runner interface {
	Run(ctx context.Context, src FrameSource) (*domain.Report, error)
}
