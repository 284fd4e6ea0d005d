//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// startPostgres runs a disposable PostgreSQL container with the schema
// migrated and returns a pool connected to it.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("acquisition_test"),
		postgres.WithUsername("acquisition"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := migrate.New("file://../../migrations", dsn)
	require.NoError(t, err)
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migration failed: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestRepositories_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	sources := NewPgSourceRepository(pool)
	events := NewPgHealthEventRepository(pool)
	catalog := NewPgCatalogRepository(pool)
	blocklist := NewPgBlocklistRepository(pool)

	src := &domain.Source{
		Name:           "arxiv",
		Implementation: "arxiv",
		Enabled:        true,
		SupportsSearch: true,
		Tags:           []string{"physics"},
		Settings:       map[string]string{"base_url": "https://export.arxiv.org"},
	}

	t.Run("source upsert keeps adjusted priority", func(t *testing.T) {
		require.NoError(t, sources.Upsert(ctx, src))
		assert.Equal(t, domain.DefaultPriority, src.Priority)

		require.NoError(t, sources.UpdatePriority(ctx, src.ID, 3))

		again := &domain.Source{Name: "arxiv", Implementation: "arxiv", Enabled: false, Priority: 40}
		require.NoError(t, sources.Upsert(ctx, again))
		assert.Equal(t, src.ID, again.ID)
		assert.Equal(t, 3, again.Priority)

		got, err := sources.Get(ctx, src.ID)
		require.NoError(t, err)
		assert.False(t, got.Enabled)
	})

	t.Run("health events roundtrip and purge", func(t *testing.T) {
		old := time.Now().UTC().Add(-800 * time.Hour).Truncate(time.Microsecond)
		recent := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
		status := 503

		require.NoError(t, events.Append(ctx, &domain.HealthEvent{
			SourceID: src.ID, Operation: domain.OperationSearch, Outcome: domain.OutcomeFailure,
			ErrorKind: domain.ErrorKindHTTP, HTTPStatus: &status, Message: "unavailable", Timestamp: old,
		}))
		require.NoError(t, events.Append(ctx, &domain.HealthEvent{
			SourceID: src.ID, Operation: domain.OperationSearch, Outcome: domain.OutcomeSuccess, Timestamp: recent,
		}))

		all, err := events.ListBySource(ctx, src.ID, time.Time{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, old, all[0].Timestamp)
		require.NotNil(t, all[0].HTTPStatus)
		assert.Equal(t, 503, *all[0].HTTPStatus)

		failures, total, err := events.ListFailures(ctx, domain.FailureFilter{SourceID: src.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, failures, 1)

		purged, err := events.PurgeBefore(ctx, time.Now().UTC().Add(-720*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)
	})

	t.Run("catalog lookup by doi", func(t *testing.T) {
		var authorID, bookID int64
		require.NoError(t, pool.QueryRow(ctx,
			`INSERT INTO authors (name, kind, tags) VALUES ('Jane Doe', 'person', '{biology}') RETURNING id`,
		).Scan(&authorID))
		require.NoError(t, pool.QueryRow(ctx,
			`INSERT INTO books (author_id, title, doi) VALUES ($1, 'Deep Sea Vents', '10.1000/vents') RETURNING id`,
			authorID,
		).Scan(&bookID))

		author, books, err := catalog.FindByDOI(ctx, "doi:10.1000/VENTS")
		require.NoError(t, err)
		assert.Equal(t, authorID, author.ID)
		require.Len(t, books, 1)
		assert.Equal(t, bookID, books[0].ID)

		require.NoError(t, catalog.MarkSearched(ctx, []int64{bookID}, time.Now().UTC()))
		got, err := catalog.GetBooks(ctx, []int64{bookID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.NotNil(t, got[0].LastSearchTime)
	})

	t.Run("blocklist", func(t *testing.T) {
		release := domain.Release{GUID: "arxiv:2101.00001", SourceID: src.ID, Title: "Vents"}

		blocked, err := blocklist.Blocklisted(ctx, release)
		require.NoError(t, err)
		assert.False(t, blocked)

		require.NoError(t, blocklist.Add(ctx, release, "corrupt"))
		require.NoError(t, blocklist.Add(ctx, release, "corrupt"))

		blocked, err = blocklist.Blocklisted(ctx, release)
		require.NoError(t, err)
		assert.True(t, blocked)
	})
}
