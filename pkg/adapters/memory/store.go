package memory

import (
	"context"
	"sync"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// Store implements ports.RunStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Report
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Report),
	}
}

// Save persists a copy of the report.
func (s *Store) Save(ctx context.Context, report *domain.Report) error {
	copied := cloneReport(report)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[report.RunID] = copied
	return nil
}

// Load returns a copy of the stored report.
func (s *Store) Load(ctx context.Context, runID string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return cloneReport(report), nil
}

// Delete removes the report.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns the stored run IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]string, 0, len(s.data))
	for id := range s.data {
		runs = append(runs, id)
	}
	return runs, nil
}

func cloneReport(r *domain.Report) *domain.Report {
	ret := *r
	ret.Events = append([]domain.Event(nil), r.Events...)
	ret.Summary = make([]domain.ChannelSummary, len(r.Summary))
	for i, sum := range r.Summary {
		sum.ByKind = make(map[domain.EventKind]int, len(r.Summary[i].ByKind))
		for k, v := range r.Summary[i].ByKind {
			sum.ByKind[k] = v
		}
		ret.Summary[i] = sum
	}
	return &ret
}
