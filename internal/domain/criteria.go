package domain

import (
	"strings"
	"time"
)

// AuthorKind distinguishes person authors from collective (journal) entities.
// These values must match the database enum author_kind.
type AuthorKind string

const (
	AuthorKindPerson  AuthorKind = "person"
	AuthorKindJournal AuthorKind = "journal"
)

// Author is a catalog entity releases are acquired for: a person or a journal.
type Author struct {
	ID             int64           `json:"id"`
	ForeignID      string          `json:"foreign_id,omitempty"`
	Name           string          `json:"name"`
	Kind           AuthorKind      `json:"kind"`
	Disambiguation string          `json:"disambiguation,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	QualityProfile *QualityProfile `json:"quality_profile,omitempty"`
}

// IsJournal reports whether the author is a collective entity. The legacy
// shape marks journals through the disambiguation string only.
func (a *Author) IsJournal() bool {
	if a == nil {
		return false
	}
	return a.Kind == AuthorKindJournal || strings.EqualFold(a.Disambiguation, "journal")
}

// Book is one requested catalog item (a paper).
type Book struct {
	ID             int64      `json:"id"`
	ForeignID      string     `json:"foreign_id,omitempty"`
	AuthorID       int64      `json:"author_id"`
	Title          string     `json:"title"`
	DOI            string     `json:"doi,omitempty"`
	Monitored      bool       `json:"monitored"`
	LastSearchTime *time.Time `json:"last_search_time,omitempty"`
}

// BookFile is a stored file of a catalog item, used by the upgrade rule.
type BookFile struct {
	ID      int64   `json:"id"`
	BookID  int64   `json:"book_id"`
	Path    string  `json:"path"`
	Quality Quality `json:"quality"`
}

// SearchCriteria holds the parameters of one search request.
type SearchCriteria struct {
	// Author is the target entity, nil for free searches.
	Author *Author `json:"author,omitempty"`

	// Books lists specifically requested items; empty for entity-level searches.
	Books []Book `json:"books,omitempty"`

	// DOI is an optional strong identifier; normalized before comparison.
	DOI string `json:"doi,omitempty"`

	// Identifier is an alternate identifier such as an ISBN.
	Identifier string `json:"identifier,omitempty"`

	Year           int    `json:"year,omitempty"`
	Disambiguation string `json:"disambiguation,omitempty"`

	InteractiveSearch bool `json:"interactive_search"`
	UserInvokedSearch bool `json:"user_invoked_search"`

	// AuthorQuery and BookQuery are the free-text queries adapters send.
	AuthorQuery string `json:"author_query,omitempty"`
	BookQuery   string `json:"book_query,omitempty"`

	// ExistingFiles are stored files for the target, compared by the upgrade rule.
	ExistingFiles []BookFile `json:"existing_files,omitempty"`
}

// AuthorTags returns the target entity's tags, or nil.
func (c *SearchCriteria) AuthorTags() []string {
	if c == nil || c.Author == nil {
		return nil
	}
	return c.Author.Tags
}

// BookIDs returns the ids of the requested items.
func (c *SearchCriteria) BookIDs() []int64 {
	if c == nil {
		return nil
	}
	ids := make([]int64, 0, len(c.Books))
	for _, b := range c.Books {
		ids = append(ids, b.ID)
	}
	return ids
}

// QueryAuthor returns the author query, derived from the target if unset.
func (c *SearchCriteria) QueryAuthor() string {
	if q := strings.TrimSpace(c.AuthorQuery); q != "" {
		return q
	}
	if c.Author != nil && !c.Author.IsJournal() {
		return strings.TrimSpace(c.Author.Name)
	}
	return ""
}

// QueryBook returns the book query, derived from the first requested item if unset.
func (c *SearchCriteria) QueryBook() string {
	if q := strings.TrimSpace(c.BookQuery); q != "" {
		return q
	}
	if len(c.Books) > 0 {
		return strings.TrimSpace(c.Books[0].Title)
	}
	return ""
}
