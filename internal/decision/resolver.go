package decision

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
)

// Resolution is a release's identity in the catalog. Author is nil and
// Books empty when nothing matched.
type Resolution struct {
	Author *domain.Author
	Books  []domain.Book
}

// Resolver maps a release onto catalog identity.
type Resolver interface {
	Resolve(ctx context.Context, release *domain.Release, criteria *domain.SearchCriteria) (Resolution, error)
}

// Catalog looks up stored catalog identity by DOI.
// Implementations return domain.ErrNotFound when no item carries the DOI.
type Catalog interface {
	FindByDOI(ctx context.Context, doi string) (*domain.Author, []domain.Book, error)
}

// CatalogResolver resolves against the criteria first and falls back to a
// catalog DOI lookup. The catalog may be nil.
type CatalogResolver struct {
	catalog Catalog
}

// NewCatalogResolver creates a resolver.
func NewCatalogResolver(catalog Catalog) *CatalogResolver {
	return &CatalogResolver{catalog: catalog}
}

// Resolve implements Resolver.
func (r *CatalogResolver) Resolve(ctx context.Context, release *domain.Release, criteria *domain.SearchCriteria) (Resolution, error) {
	var res Resolution

	if criteria != nil {
		res.Books = matchBooks(release, criteria.Books)
		if criteria.Author != nil && (len(res.Books) > 0 || matchesAuthor(release, criteria.Author)) {
			res.Author = criteria.Author
		}
	}

	if (res.Author == nil || len(res.Books) == 0) && release.DOI != "" && r.catalog != nil {
		author, books, err := r.catalog.FindByDOI(ctx, release.DOI)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return Resolution{}, fmt.Errorf("looking up %s: %w", release.DOI, err)
		default:
			if res.Author == nil {
				res.Author = author
			}
			if len(res.Books) == 0 {
				res.Books = books
			}
		}
	}

	// A DOI equal to the requested one identifies the author even when the
	// release names nobody recognisable. Books are left unresolved so the
	// requested-item rule still decides on the DOI.
	if res.Author == nil && criteria != nil && criteria.Author != nil && doi.IsMatch(release, criteria) {
		res.Author = criteria.Author
	}
	return res, nil
}

func matchBooks(release *domain.Release, books []domain.Book) []domain.Book {
	var out []domain.Book
	for _, b := range books {
		if release.DOI != "" && doi.Equal(b.DOI, release.DOI) {
			out = append(out, b)
			continue
		}
		if SimilarTitle(release.BookTitle, b.Title) {
			out = append(out, b)
		}
	}
	return out
}

func matchesAuthor(release *domain.Release, author *domain.Author) bool {
	if author.IsJournal() {
		return SameName(release.SourceJournal, author.Name)
	}
	return SameName(release.AuthorName, author.Name)
}
