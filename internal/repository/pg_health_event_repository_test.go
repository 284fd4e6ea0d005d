package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

func TestPgHealthEventRepository_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgHealthEventRepository(mock)
	status := 503
	now := time.Now().UTC()

	event := &domain.HealthEvent{
		SourceID:   3,
		Operation:  domain.OperationSearch,
		Outcome:    domain.OutcomeFailure,
		ErrorKind:  domain.ErrorKindHTTP,
		HTTPStatus: &status,
		Message:    "service unavailable",
		Timestamp:  now,
	}

	mock.ExpectExec(`INSERT INTO health_events`).
		WithArgs(pgxmock.AnyArg(), int64(3), "search", "failure", "http_error", &status, "service unavailable", now).
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))

	require.NoError(t, repo.Append(context.Background(), event))
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, errors.Is(repo.Append(context.Background(), nil), domain.ErrInvalidInput))
}

func TestPgHealthEventRepository_ListBySource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgHealthEventRepository(mock)
	since := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	kind := "timeout"

	rows := pgxmock.NewRows(healthEventColumns).
		AddRow(uuid.New(), int64(3), "search", "success", nil, nil, "", since.Add(time.Hour)).
		AddRow(uuid.New(), int64(3), "download", "failure", &kind, nil, "deadline exceeded", since.Add(2*time.Hour))

	mock.ExpectQuery(`SELECT id, source_id, .* FROM health_events WHERE source_id = \$1 AND occurred_at >= \$2 ORDER BY occurred_at ASC, id ASC`).
		WithArgs(int64(3), since).
		WillReturnRows(rows)

	events, err := repo.ListBySource(context.Background(), 3, since)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.OutcomeSuccess, events[0].Outcome)
	assert.Empty(t, events[0].ErrorKind)
	assert.Equal(t, domain.OperationDownload, events[1].Operation)
	assert.Equal(t, domain.ErrorKindTimeout, events[1].ErrorKind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgHealthEventRepository_ListFailures(t *testing.T) {
	t.Run("filters and pages", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgHealthEventRepository(mock)
		since := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		op := domain.OperationSearch
		kind := "rate_limit"

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM health_events WHERE \(outcome = \$1 AND source_id = \$2 AND occurred_at >= \$3 AND operation = \$4\)`).
			WithArgs("failure", int64(3), since, "search").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))

		mock.ExpectQuery(`FROM health_events WHERE .* ORDER BY occurred_at DESC, id DESC LIMIT 5 OFFSET 5`).
			WithArgs("failure", int64(3), since, "search").
			WillReturnRows(pgxmock.NewRows(healthEventColumns).
				AddRow(uuid.New(), int64(3), "search", "failure", &kind, nil, "slow down", since.Add(time.Hour)))

		events, total, err := repo.ListFailures(context.Background(), domain.FailureFilter{
			SourceID:  3,
			Since:     &since,
			Operation: &op,
			Page:      2,
			PageSize:  5,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(12), total)
		require.Len(t, events, 1)
		assert.Equal(t, domain.ErrorKindRateLimit, events[0].ErrorKind)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("defaults page size", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgHealthEventRepository(mock)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM health_events WHERE \(outcome = \$1\)`).
			WithArgs("failure").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectQuery(`LIMIT 50 OFFSET 0`).
			WithArgs("failure").
			WillReturnRows(pgxmock.NewRows(healthEventColumns))

		events, total, err := repo.ListFailures(context.Background(), domain.FailureFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgHealthEventRepository_PurgeBefore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgHealthEventRepository(mock)
	cutoff := time.Now().UTC().Add(-720 * time.Hour)

	mock.ExpectExec(`DELETE FROM health_events WHERE occurred_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgconn.NewCommandTag("DELETE 42"))

	n, err := repo.PurgeBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
