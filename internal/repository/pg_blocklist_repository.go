package repository

import (
	"context"
	"fmt"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// PgBlocklistRepository stores releases that must not be submitted again.
type PgBlocklistRepository struct {
	db DBTX
}

// NewPgBlocklistRepository creates a new PostgreSQL blocklist repository.
func NewPgBlocklistRepository(db DBTX) *PgBlocklistRepository {
	return &PgBlocklistRepository{db: db}
}

// Blocklisted reports whether the release guid was blocklisted for its source.
func (r *PgBlocklistRepository) Blocklisted(ctx context.Context, release domain.Release) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blocklist
			WHERE guid = $1 AND (source_id IS NULL OR source_id = $2)
		)`

	var blocked bool
	if err := r.db.QueryRow(ctx, query, release.GUID, release.SourceID).Scan(&blocked); err != nil {
		return false, fmt.Errorf("failed to check blocklist: %w", err)
	}
	return blocked, nil
}

// Add blocklists a release. Adding the same release twice is a no-op.
func (r *PgBlocklistRepository) Add(ctx context.Context, release domain.Release, reason string) error {
	if release.GUID == "" {
		return domain.NewValidationError("guid", "must not be empty")
	}
	var sourceID *int64
	if release.SourceID > 0 {
		sourceID = &release.SourceID
	}

	query := `
		INSERT INTO blocklist (guid, source_id, title, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guid) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, release.GUID, sourceID, release.Title, reason); err != nil {
		return fmt.Errorf("failed to add release to blocklist: %w", err)
	}
	return nil
}
