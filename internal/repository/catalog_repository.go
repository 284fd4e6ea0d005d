package repository

import (
	"context"
	"time"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// CatalogRepository reads catalog identity: the authors and journals
// releases are acquired for and the items requested from them.
type CatalogRepository interface {
	// GetAuthor retrieves an author by id.
	// Returns domain.ErrNotFound if no author exists.
	GetAuthor(ctx context.Context, id int64) (*domain.Author, error)

	// GetBooks returns the books with the given ids. Unknown ids are skipped.
	GetBooks(ctx context.Context, ids []int64) ([]domain.Book, error)

	// ListFiles returns the stored files of the given books.
	ListFiles(ctx context.Context, bookIDs []int64) ([]domain.BookFile, error)

	// FindByDOI returns the author and books carrying a DOI.
	// Returns domain.ErrNotFound if no book carries it.
	FindByDOI(ctx context.Context, doi string) (*domain.Author, []domain.Book, error)

	// MarkSearched sets the last search time of the given books.
	MarkSearched(ctx context.Context, bookIDs []int64, at time.Time) error
}
