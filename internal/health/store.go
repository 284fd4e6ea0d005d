package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// EventStore persists the append-only health event log.
//
// Implementations must accept concurrent Append calls from different
// dispatch tasks while PurgeBefore runs.
type EventStore interface {
	// Append stores one event.
	Append(ctx context.Context, event *domain.HealthEvent) error

	// ListBySource returns the source's events at or after since, oldest first.
	ListBySource(ctx context.Context, sourceID int64, since time.Time) ([]domain.HealthEvent, error)

	// ListFailures returns one page of failure events matching filter, newest
	// first, together with the total number of matches.
	ListFailures(ctx context.Context, filter domain.FailureFilter) ([]domain.HealthEvent, int64, error)

	// PurgeBefore deletes every event older than cutoff and returns the
	// number of events deleted. Running it twice with the same cutoff
	// deletes nothing the second time.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SourceReader looks up source definitions so statistics can carry names.
type SourceReader interface {
	Get(ctx context.Context, id int64) (*domain.Source, error)
	List(ctx context.Context) ([]domain.Source, error)
}

// MemoryStore is an in-process EventStore. Tests use it in place of the
// PostgreSQL event repository.
type MemoryStore struct {
	mu     sync.RWMutex
	events []domain.HealthEvent
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements EventStore.
func (s *MemoryStore) Append(_ context.Context, event *domain.HealthEvent) error {
	if event == nil {
		return domain.NewValidationError("event", "must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

// ListBySource implements EventStore.
func (s *MemoryStore) ListBySource(_ context.Context, sourceID int64, since time.Time) ([]domain.HealthEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.HealthEvent
	for _, e := range s.events {
		if e.SourceID == sourceID && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.HealthEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

// ListFailures implements EventStore.
func (s *MemoryStore) ListFailures(_ context.Context, filter domain.FailureFilter) ([]domain.HealthEvent, int64, error) {
	filter.Normalize()

	s.mu.RLock()
	var matched []domain.HealthEvent
	for _, e := range s.events {
		if matchesFailure(e, filter) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b domain.HealthEvent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	total := int64(len(matched))
	offset := filter.Offset()
	if offset >= len(matched) {
		return []domain.HealthEvent{}, total, nil
	}
	end := min(offset+filter.PageSize, len(matched))
	return matched[offset:end], total, nil
}

// PurgeBefore implements EventStore.
func (s *MemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.events)
	s.events = slices.DeleteFunc(s.events, func(e domain.HealthEvent) bool {
		return e.Timestamp.Before(cutoff)
	})
	return int64(before - len(s.events)), nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func matchesFailure(e domain.HealthEvent, f domain.FailureFilter) bool {
	if !e.IsFailure() {
		return false
	}
	if f.SourceID != 0 && e.SourceID != f.SourceID {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Operation != nil && e.Operation != *f.Operation {
		return false
	}
	if f.ErrorKind != nil && e.ErrorKind != *f.ErrorKind {
		return false
	}
	return true
}
