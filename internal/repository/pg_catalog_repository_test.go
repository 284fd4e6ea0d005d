package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

var (
	authorRowColumns = []string{"id", "foreign_id", "name", "kind", "disambiguation", "tags", "quality_profile"}
	bookRowColumns   = []string{"id", "foreign_id", "author_id", "title", "doi", "monitored", "last_search_time"}
)

func strPtr(s string) *string { return &s }

func TestPgCatalogRepository_GetAuthor(t *testing.T) {
	t.Run("decodes quality profile", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCatalogRepository(mock)

		mock.ExpectQuery(`FROM authors a WHERE a.id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows(authorRowColumns).AddRow(
				int64(1), strPtr("A5023888391"), "Jane Doe", "person", nil, []string{"biology"},
				[]byte(`{"name":"Any","items":["EPUB","PDF"]}`),
			))

		author, err := repo.GetAuthor(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "A5023888391", author.ForeignID)
		assert.Equal(t, domain.AuthorKindPerson, author.Kind)
		assert.Empty(t, author.Disambiguation)
		require.NotNil(t, author.QualityProfile)
		assert.Equal(t, "Any", author.QualityProfile.Name)
		assert.Equal(t, []string{"EPUB", "PDF"}, author.QualityProfile.Items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCatalogRepository(mock)

		mock.ExpectQuery(`FROM authors a WHERE a.id = \$1`).
			WithArgs(int64(2)).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetAuthor(context.Background(), 2)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgCatalogRepository_GetBooks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgCatalogRepository(mock)
	searched := time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM books b WHERE b.id = ANY\(\$1\) ORDER BY b.id`).
		WithArgs([]int64{7, 9}).
		WillReturnRows(pgxmock.NewRows(bookRowColumns).
			AddRow(int64(7), nil, int64(1), "Deep Sea Vents", strPtr("10.1000/vents"), true, &searched).
			AddRow(int64(9), nil, int64(1), "Other", nil, false, nil))

	books, err := repo.GetBooks(context.Background(), []int64{7, 9})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "10.1000/vents", books[0].DOI)
	require.NotNil(t, books[0].LastSearchTime)
	assert.Equal(t, searched, *books[0].LastSearchTime)
	assert.Empty(t, books[1].DOI)
	assert.Nil(t, books[1].LastSearchTime)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.GetBooks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPgCatalogRepository_ListFiles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgCatalogRepository(mock)

	mock.ExpectQuery(`FROM book_files WHERE book_id = ANY\(\$1\)`).
		WithArgs([]int64{7}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "book_id", "path", "quality_name", "quality_revision"}).
			AddRow(int64(1), int64(7), "/library/vents.pdf", "pdf", 1))

	files, err := repo.ListFiles(context.Background(), []int64{7})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pdf", files[0].Quality.Name)
	assert.Equal(t, 1, files[0].Quality.Revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCatalogRepository_FindByDOI(t *testing.T) {
	columns := append(append([]string{}, authorRowColumns...), bookRowColumns...)

	t.Run("returns author and matching books", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCatalogRepository(mock)

		mock.ExpectQuery(`FROM books b JOIN authors a ON a.id = b.author_id WHERE b.doi = \$1`).
			WithArgs("10.1000/vents").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(int64(1), nil, "Jane Doe", "person", nil, []string{}, nil,
					int64(7), nil, int64(1), "Deep Sea Vents", strPtr("10.1000/vents"), true, nil).
				AddRow(int64(2), nil, "John Roe", "person", nil, []string{}, nil,
					int64(8), nil, int64(2), "Deep Sea Vents", strPtr("10.1000/vents"), true, nil))

		author, books, err := repo.FindByDOI(context.Background(), "https://doi.org/10.1000/VENTS")
		require.NoError(t, err)
		assert.Equal(t, int64(1), author.ID)
		require.Len(t, books, 1)
		assert.Equal(t, int64(7), books[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss is not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCatalogRepository(mock)

		mock.ExpectQuery(`WHERE b.doi = \$1`).
			WithArgs("10.1000/none").
			WillReturnRows(pgxmock.NewRows(columns))

		_, _, err = repo.FindByDOI(context.Background(), "10.1000/none")
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		_, _, err = repo.FindByDOI(context.Background(), "not a doi")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgCatalogRepository_MarkSearched(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgCatalogRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE books SET last_search_time = \$2 WHERE id = ANY\(\$1\)`).
		WithArgs([]int64{7, 9}, at).
		WillReturnResult(pgconn.NewCommandTag("UPDATE 2"))

	require.NoError(t, repo.MarkSearched(context.Background(), []int64{7, 9}, at))
	require.NoError(t, repo.MarkSearched(context.Background(), nil, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
