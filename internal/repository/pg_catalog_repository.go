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
	"github.com/helixir/paper-acquisition-service/internal/doi"
)

// Compile-time interface verification.
var _ CatalogRepository = (*PgCatalogRepository)(nil)

const (
	authorColumns = `a.id, a.foreign_id, a.name, a.kind, a.disambiguation, a.tags, a.quality_profile`
	bookColumns   = `b.id, b.foreign_id, b.author_id, b.title, b.doi, b.monitored, b.last_search_time`
)

// PgCatalogRepository is a PostgreSQL implementation of CatalogRepository.
type PgCatalogRepository struct {
	db DBTX
}

// NewPgCatalogRepository creates a new PostgreSQL catalog repository.
func NewPgCatalogRepository(db DBTX) *PgCatalogRepository {
	return &PgCatalogRepository{db: db}
}

// GetAuthor retrieves an author by id.
func (r *PgCatalogRepository) GetAuthor(ctx context.Context, id int64) (*domain.Author, error) {
	query := `SELECT ` + authorColumns + ` FROM authors a WHERE a.id = $1`

	author, err := scanAuthor(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("author", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get author: %w", err)
	}
	return author, nil
}

// GetBooks returns the books with the given ids ordered by id.
func (r *PgCatalogRepository) GetBooks(ctx context.Context, ids []int64) ([]domain.Book, error) {
	if len(ids) == 0 {
		return []domain.Book{}, nil
	}
	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.id = ANY($1) ORDER BY b.id`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get books: %w", err)
	}
	defer rows.Close()

	books := make([]domain.Book, 0, len(ids))
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, *book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}
	return books, nil
}

// ListFiles returns the stored files of the given books.
func (r *PgCatalogRepository) ListFiles(ctx context.Context, bookIDs []int64) ([]domain.BookFile, error) {
	if len(bookIDs) == 0 {
		return []domain.BookFile{}, nil
	}
	query := `
		SELECT id, book_id, path, quality_name, quality_revision
		FROM book_files
		WHERE book_id = ANY($1)
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, bookIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list book files: %w", err)
	}
	defer rows.Close()

	files := make([]domain.BookFile, 0)
	for rows.Next() {
		var f domain.BookFile
		if err := rows.Scan(&f.ID, &f.BookID, &f.Path, &f.Quality.Name, &f.Quality.Revision); err != nil {
			return nil, fmt.Errorf("failed to scan book file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating book files: %w", err)
	}
	return files, nil
}

// FindByDOI returns the author of the first book carrying the DOI together
// with every book of that author carrying it.
func (r *PgCatalogRepository) FindByDOI(ctx context.Context, raw string) (*domain.Author, []domain.Book, error) {
	normalized := doi.Normalize(raw)
	if normalized == "" {
		return nil, nil, domain.NewNotFoundError("book", raw)
	}

	query := `
		SELECT ` + authorColumns + `, ` + bookColumns + `
		FROM books b
		JOIN authors a ON a.id = b.author_id
		WHERE b.doi = $1
		ORDER BY b.id`

	rows, err := r.db.Query(ctx, query, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find book by doi: %w", err)
	}
	defer rows.Close()

	var (
		author *domain.Author
		books  []domain.Book
	)
	for rows.Next() {
		var (
			a authorScanDest
			b bookScanDest
		)
		if err := rows.Scan(append(a.destinations(), b.destinations()...)...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan book by doi: %w", err)
		}
		found, err := a.finalize()
		if err != nil {
			return nil, nil, err
		}
		if author == nil {
			author = found
		}
		if found.ID == author.ID {
			books = append(books, *b.finalize())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating books by doi: %w", err)
	}
	if author == nil {
		return nil, nil, domain.NewNotFoundError("book", normalized)
	}
	return author, books, nil
}

// MarkSearched sets the last search time of the given books.
func (r *PgCatalogRepository) MarkSearched(ctx context.Context, bookIDs []int64, at time.Time) error {
	if len(bookIDs) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, `UPDATE books SET last_search_time = $2 WHERE id = ANY($1)`, bookIDs, at); err != nil {
		return fmt.Errorf("failed to update last search time: %w", err)
	}
	return nil
}

// authorScanDest holds the destination pointers for scanning an Author row.
type authorScanDest struct {
	author         domain.Author
	foreignID      *string
	kind           string
	disambiguation *string
	profile        []byte
}

func (d *authorScanDest) destinations() []interface{} {
	return []interface{}{
		&d.author.ID, &d.foreignID, &d.author.Name, &d.kind, &d.disambiguation, &d.author.Tags, &d.profile,
	}
}

func (d *authorScanDest) finalize() (*domain.Author, error) {
	d.author.Kind = domain.AuthorKind(d.kind)
	if d.foreignID != nil {
		d.author.ForeignID = *d.foreignID
	}
	if d.disambiguation != nil {
		d.author.Disambiguation = *d.disambiguation
	}
	if len(d.profile) > 0 {
		var profile domain.QualityProfile
		if err := json.Unmarshal(d.profile, &profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quality profile of author %d: %w", d.author.ID, err)
		}
		d.author.QualityProfile = &profile
	}
	return &d.author, nil
}

func scanAuthor(row pgx.Row) (*domain.Author, error) {
	var dest authorScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// bookScanDest holds the destination pointers for scanning a Book row.
type bookScanDest struct {
	book      domain.Book
	foreignID *string
	doi       *string
}

func (d *bookScanDest) destinations() []interface{} {
	return []interface{}{
		&d.book.ID, &d.foreignID, &d.book.AuthorID, &d.book.Title, &d.doi, &d.book.Monitored, &d.book.LastSearchTime,
	}
}

func (d *bookScanDest) finalize() *domain.Book {
	if d.foreignID != nil {
		d.book.ForeignID = *d.foreignID
	}
	if d.doi != nil {
		d.book.DOI = *d.doi
	}
	return &d.book
}

func scanBook(row pgx.Row) (*domain.Book, error) {
	var dest bookScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize(), nil
}
