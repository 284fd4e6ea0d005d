package repository

import (
	"context"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// SourceRepository persists source definitions.
type SourceRepository interface {
	// Get retrieves a source by id.
	// Returns domain.ErrNotFound if no source exists.
	Get(ctx context.Context, id int64) (*domain.Source, error)

	// List returns every source ordered by priority, then id.
	List(ctx context.Context) ([]domain.Source, error)

	// UpdatePriority sets the priority of one source. Only the priority
	// adjuster and operators call it.
	// Returns domain.ErrInvalidInput for priorities outside [1, 50] and
	// domain.ErrNotFound if no source exists.
	UpdatePriority(ctx context.Context, id int64, priority int) error

	// Upsert inserts a source or updates the existing one with the same
	// name, keeping its current priority. The source's ID, CreatedAt and
	// UpdatedAt are filled in from the stored row.
	Upsert(ctx context.Context, src *domain.Source) error
}
