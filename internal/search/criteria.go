package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/helixir/paper-acquisition-service/internal/doi"
	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// Catalog is the read side of the catalog criteria are built from.
type Catalog interface {
	GetAuthor(ctx context.Context, id int64) (*domain.Author, error)
	GetBooks(ctx context.Context, ids []int64) ([]domain.Book, error)
	ListFiles(ctx context.Context, bookIDs []int64) ([]domain.BookFile, error)
	FindByDOI(ctx context.Context, doi string) (*domain.Author, []domain.Book, error)
}

// Request describes a search in terms of catalog references. At least one
// of AuthorID, BookIDs, DOI or a free-text query must be set.
type Request struct {
	AuthorID    int64   `json:"author_id,omitempty" validate:"gte=0"`
	BookIDs     []int64 `json:"book_ids,omitempty" validate:"dive,gt=0"`
	DOI         string  `json:"doi,omitempty" validate:"max=256"`
	Identifier  string  `json:"identifier,omitempty" validate:"max=64"`
	Year        int     `json:"year,omitempty" validate:"gte=0,lte=3000"`
	AuthorQuery string  `json:"author_query,omitempty" validate:"max=512"`
	BookQuery   string  `json:"book_query,omitempty" validate:"max=512"`
	Interactive bool    `json:"interactive"`
	UserInvoked bool    `json:"user_invoked"`
}

// BuildCriteria resolves a request against the catalog. Requested books must
// all exist and belong to one author. A DOI-only request adopts the catalog
// entry carrying the DOI when there is one and stays a free search otherwise.
func BuildCriteria(ctx context.Context, catalog Catalog, req Request) (*domain.SearchCriteria, error) {
	criteria := &domain.SearchCriteria{
		DOI:               doi.Normalize(req.DOI),
		Identifier:        strings.TrimSpace(req.Identifier),
		Year:              req.Year,
		AuthorQuery:       strings.TrimSpace(req.AuthorQuery),
		BookQuery:         strings.TrimSpace(req.BookQuery),
		InteractiveSearch: req.Interactive,
		UserInvokedSearch: req.UserInvoked,
	}
	if req.DOI != "" && criteria.DOI == "" {
		return nil, domain.NewValidationError("doi", fmt.Sprintf("%q is not a valid DOI", req.DOI))
	}

	authorID := req.AuthorID
	if len(req.BookIDs) > 0 {
		books, err := catalog.GetBooks(ctx, req.BookIDs)
		if err != nil {
			return nil, fmt.Errorf("loading books: %w", err)
		}
		if err := checkBooks(req.BookIDs, books, &authorID); err != nil {
			return nil, err
		}
		criteria.Books = books
	}

	switch {
	case authorID > 0:
		author, err := catalog.GetAuthor(ctx, authorID)
		if err != nil {
			return nil, fmt.Errorf("loading author: %w", err)
		}
		criteria.Author = author
	case criteria.DOI != "":
		author, books, err := catalog.FindByDOI(ctx, criteria.DOI)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("looking up doi: %w", err)
		default:
			criteria.Author = author
			criteria.Books = books
		}
	case criteria.AuthorQuery == "" && criteria.BookQuery == "":
		return nil, domain.NewValidationError("request", "an author, books, a DOI or a query is required")
	}

	if criteria.Author != nil {
		criteria.Disambiguation = criteria.Author.Disambiguation
	}
	if criteria.DOI == "" && len(criteria.Books) == 1 {
		criteria.DOI = doi.Normalize(criteria.Books[0].DOI)
	}

	if ids := criteria.BookIDs(); len(ids) > 0 {
		files, err := catalog.ListFiles(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("loading book files: %w", err)
		}
		criteria.ExistingFiles = files
	}
	return criteria, nil
}

// checkBooks verifies every requested id was found and that all books share
// one author, which becomes the target when none was given.
func checkBooks(requested []int64, books []domain.Book, authorID *int64) error {
	found := make(map[int64]bool, len(books))
	for _, b := range books {
		found[b.ID] = true
	}
	for _, id := range requested {
		if !found[id] {
			return domain.NewNotFoundError("book", strconv.FormatInt(id, 10))
		}
	}

	for _, b := range books {
		if *authorID == 0 {
			*authorID = b.AuthorID
			continue
		}
		if b.AuthorID != *authorID {
			return domain.NewValidationError("book_ids", "books must belong to the requested author")
		}
	}
	return nil
}
