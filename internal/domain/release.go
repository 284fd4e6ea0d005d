package domain

import (
	"strings"
	"time"
)

// UnknownAuthor is substituted into display titles when a source gives no author.
const UnknownAuthor = "Unknown Author"

// CategoryBook is the default category stamped on academic releases.
const CategoryBook = 8000

// Release is a Candidate Release: one normalized record produced by a
// source adapter. Releases are treated as immutable once produced.
type Release struct {
	// GUID is the source-scoped identity, stable across re-fetches.
	GUID string `json:"guid"`

	// Title is the synthesized display title "{author} - {title}".
	Title string `json:"title"`

	// BookTitle is the parsed work title.
	BookTitle string `json:"bookTitle"`

	// AuthorName is the parsed author name.
	AuthorName string `json:"authorName"`

	// DOI is the normalized DOI, empty when unknown.
	DOI string `json:"doi,omitempty"`

	// SourceJournal is the journal or server name, empty when unknown.
	SourceJournal string `json:"sourceJournal,omitempty"`

	DownloadURL string `json:"downloadUrl"`
	InfoURL     string `json:"infoUrl"`

	// Container is the container/format tag (e.g. "PDF").
	Container string `json:"container"`

	Categories []int `json:"categories"`

	// Size is the size in bytes, 0 when unknown.
	Size int64 `json:"sizeBytes"`

	PublishDate time.Time `json:"publishDate"`
	Protocol    Protocol  `json:"protocol"`

	// SourceID and SourcePriority are stamped by the dispatcher from the
	// per-dispatch snapshot of the originating source.
	SourceID       int64  `json:"sourceId"`
	SourceName     string `json:"source"`
	SourcePriority int    `json:"sourcePriority"`
}

// Validate checks the release carries the fields every consumer depends on.
func (r *Release) Validate() error {
	if strings.TrimSpace(r.GUID) == "" {
		return NewValidationError("guid", "must not be empty")
	}
	if strings.TrimSpace(r.DownloadURL) == "" {
		return NewValidationError("downloadUrl", "must not be empty")
	}
	return nil
}

// IsMagnet reports whether the download URL is a magnet link.
func (r *Release) IsMagnet() bool {
	return strings.HasPrefix(strings.ToLower(r.DownloadURL), "magnet:")
}

// DisplayTitle synthesizes the canonical "{author} - {title}" title.
func DisplayTitle(author, title string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		author = UnknownAuthor
	}
	return author + " - " + strings.TrimSpace(title)
}
