package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/health"
)

// Compile-time interface verification.
var _ health.EventStore = (*PgHealthEventRepository)(nil)

var healthEventColumns = []string{
	"id", "source_id", "operation", "outcome", "error_kind", "http_status", "message", "occurred_at",
}

// PgHealthEventRepository stores the health event log in PostgreSQL.
// Rows are only ever inserted or bulk-deleted, never updated.
type PgHealthEventRepository struct {
	db DBTX
}

// NewPgHealthEventRepository creates a new PostgreSQL health event repository.
func NewPgHealthEventRepository(db DBTX) *PgHealthEventRepository {
	return &PgHealthEventRepository{db: db}
}

// Append stores one event.
func (r *PgHealthEventRepository) Append(ctx context.Context, event *domain.HealthEvent) error {
	if event == nil {
		return domain.NewValidationError("event", "must not be nil")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	query := `
		INSERT INTO health_events (id, source_id, operation, outcome, error_kind, http_status, message, occurred_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		event.ID, event.SourceID, string(event.Operation), string(event.Outcome),
		string(event.ErrorKind), event.HTTPStatus, event.Message, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append health event: %w", err)
	}
	return nil
}

// ListBySource returns the source's events at or after since, oldest first.
func (r *PgHealthEventRepository) ListBySource(ctx context.Context, sourceID int64, since time.Time) ([]domain.HealthEvent, error) {
	query, args, err := psql.Select(healthEventColumns...).
		From("health_events").
		Where(sq.Eq{"source_id": sourceID}).
		Where(sq.GtOrEq{"occurred_at": since}).
		OrderBy("occurred_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build health event query: %w", err)
	}

	return r.query(ctx, query, args...)
}

// ListFailures returns one page of failure events, newest first, and the
// total number of matching failures.
func (r *PgHealthEventRepository) ListFailures(ctx context.Context, filter domain.FailureFilter) ([]domain.HealthEvent, int64, error) {
	filter.Normalize()

	where := sq.And{sq.Eq{"outcome": string(domain.OutcomeFailure)}}
	if filter.SourceID != 0 {
		where = append(where, sq.Eq{"source_id": filter.SourceID})
	}
	if filter.Since != nil {
		where = append(where, sq.GtOrEq{"occurred_at": *filter.Since})
	}
	if filter.Operation != nil {
		where = append(where, sq.Eq{"operation": string(*filter.Operation)})
	}
	if filter.ErrorKind != nil {
		where = append(where, sq.Eq{"error_kind": string(*filter.ErrorKind)})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("health_events").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build failure count query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count failures: %w", err)
	}

	query, args, err := psql.Select(healthEventColumns...).
		From("health_events").
		Where(where).
		OrderBy("occurred_at DESC", "id DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(filter.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build failure query: %w", err)
	}

	events, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// PurgeBefore deletes every event older than cutoff.
func (r *PgHealthEventRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM health_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge health events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgHealthEventRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.HealthEvent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query health events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.HealthEvent, 0)
	for rows.Next() {
		event, err := scanHealthEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan health event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating health events: %w", err)
	}
	return events, nil
}

// healthEventScanDest holds the destination pointers for scanning a HealthEvent row.
type healthEventScanDest struct {
	event     domain.HealthEvent
	operation string
	outcome   string
	errorKind *string
}

func (d *healthEventScanDest) destinations() []interface{} {
	return []interface{}{
		&d.event.ID, &d.event.SourceID, &d.operation, &d.outcome, &d.errorKind,
		&d.event.HTTPStatus, &d.event.Message, &d.event.Timestamp,
	}
}

func (d *healthEventScanDest) finalize() *domain.HealthEvent {
	d.event.Operation = domain.OperationKind(d.operation)
	d.event.Outcome = domain.Outcome(d.outcome)
	if d.errorKind != nil {
		d.event.ErrorKind = domain.ErrorKind(*d.errorKind)
	}
	d.event.Timestamp = d.event.Timestamp.UTC()
	return &d.event
}

func scanHealthEvent(row pgx.Row) (*domain.HealthEvent, error) {
	var dest healthEventScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize(), nil
}
