package ports

import (
	"context"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// ReportWriter hands a finished report to an external format or system.
type ReportWriter interface {
	Write(ctx context.Context, report *domain.Report) error
}

// RunStore keeps finished reports so they can be fetched later by run ID.
type RunStore interface {
	// Save persists the report under report.RunID.
	Save(ctx context.Context, report *domain.Report) error

	// Load retrieves a report.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.Report, error)

	// Delete removes a report.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of the stored runs.
	List(ctx context.Context) ([]string, error)
}

// EventPublisher ships events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, runID string, events []domain.Event) error
}
