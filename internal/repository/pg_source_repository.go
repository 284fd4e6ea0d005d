package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// Compile-time interface verification.
var _ SourceRepository = (*PgSourceRepository)(nil)

const sourceColumns = `id, name, implementation, protocol, enabled, supports_listing, supports_search,
	enable_automatic_search, enable_interactive_search, priority, tags, rate_limit_interval_ms,
	settings, created_at, updated_at`

// PgSourceRepository is a PostgreSQL implementation of SourceRepository.
type PgSourceRepository struct {
	db DBTX
}

// NewPgSourceRepository creates a new PostgreSQL source repository.
func NewPgSourceRepository(db DBTX) *PgSourceRepository {
	return &PgSourceRepository{db: db}
}

// Get retrieves a source by id.
func (r *PgSourceRepository) Get(ctx context.Context, id int64) (*domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	src, err := scanSource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("source", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return src, nil
}

// List returns every source ordered by priority, then id.
func (r *PgSourceRepository) List(ctx context.Context) ([]domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY priority, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := make([]domain.Source, 0)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}
	return sources, nil
}

// UpdatePriority sets the priority of one source.
func (r *PgSourceRepository) UpdatePriority(ctx context.Context, id int64, priority int) error {
	if priority < domain.MinPriority || priority > domain.MaxPriority {
		return domain.NewValidationError("priority",
			fmt.Sprintf("must be between %d and %d", domain.MinPriority, domain.MaxPriority))
	}

	query := `UPDATE sources SET priority = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, priority, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update source priority: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("source", strconv.FormatInt(id, 10))
	}
	return nil
}

// Upsert inserts or updates a source keyed by name.
func (r *PgSourceRepository) Upsert(ctx context.Context, src *domain.Source) error {
	if src == nil || src.Name == "" {
		return domain.NewValidationError("name", "source name is required")
	}
	if src.Implementation == "" {
		return domain.NewValidationError("implementation", "source implementation is required")
	}
	if src.Protocol == "" {
		src.Protocol = domain.ProtocolHTTP
	}
	if !src.Protocol.IsValid() {
		return domain.NewValidationError("protocol", fmt.Sprintf("unknown protocol %q", src.Protocol))
	}
	if src.Priority == 0 {
		src.Priority = domain.DefaultPriority
	}
	src.Priority = domain.ClampPriority(src.Priority)

	settings, err := json.Marshal(src.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal source settings: %w", err)
	}
	tags := src.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO sources (name, implementation, protocol, enabled, supports_listing, supports_search,
			enable_automatic_search, enable_interactive_search, priority, tags, rate_limit_interval_ms, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (name) DO UPDATE SET
			implementation = EXCLUDED.implementation,
			protocol = EXCLUDED.protocol,
			enabled = EXCLUDED.enabled,
			supports_listing = EXCLUDED.supports_listing,
			supports_search = EXCLUDED.supports_search,
			enable_automatic_search = EXCLUDED.enable_automatic_search,
			enable_interactive_search = EXCLUDED.enable_interactive_search,
			tags = EXCLUDED.tags,
			rate_limit_interval_ms = EXCLUDED.rate_limit_interval_ms,
			settings = EXCLUDED.settings,
			updated_at = NOW()
		RETURNING id, priority, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		src.Name, src.Implementation, string(src.Protocol), src.Enabled, src.SupportsListing, src.SupportsSearch,
		src.EnableAutomaticSearch, src.EnableInteractiveSearch, src.Priority, tags,
		src.RateLimitInterval.Milliseconds(), settings,
	).Scan(&src.ID, &src.Priority, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

// sourceScanDest holds the destination pointers for scanning a Source row.
type sourceScanDest struct {
	src        domain.Source
	protocol   string
	intervalMS int64
	settings   []byte
}

func (d *sourceScanDest) destinations() []interface{} {
	return []interface{}{
		&d.src.ID, &d.src.Name, &d.src.Implementation, &d.protocol, &d.src.Enabled,
		&d.src.SupportsListing, &d.src.SupportsSearch, &d.src.EnableAutomaticSearch,
		&d.src.EnableInteractiveSearch, &d.src.Priority, &d.src.Tags, &d.intervalMS,
		&d.settings, &d.src.CreatedAt, &d.src.UpdatedAt,
	}
}

func (d *sourceScanDest) finalize() (*domain.Source, error) {
	d.src.Protocol = domain.Protocol(d.protocol)
	d.src.RateLimitInterval = time.Duration(d.intervalMS) * time.Millisecond
	if len(d.settings) > 0 {
		if err := json.Unmarshal(d.settings, &d.src.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings of source %d: %w", d.src.ID, err)
		}
	}
	return &d.src, nil
}

func scanSource(row pgx.Row) (*domain.Source, error) {
	var dest sourceScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
