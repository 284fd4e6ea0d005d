// Package arxiv adapts the arXiv export API (Atom) to the indexer contract.
package arxiv

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed/atom"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const (
	// Implementation is the source implementation name for this adapter.
	Implementation = "arxiv"

	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// Config holds configuration for the arXiv adapter.
type Config struct {
	// Name overrides the display name.
	Name string

	// BaseURL is the arXiv API base URL.
	BaseURL string

	// MaxResults is the maximum results to request per query.
	MaxResults int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = sourceName
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Adapter implements indexers.Adapter for arXiv.
type Adapter struct {
	config Config
}

// Ensure Adapter implements the indexers.Adapter interface.
var _ indexers.Adapter = (*Adapter)(nil)

// New creates a new arXiv adapter with the given configuration.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg}
}

// NewFromSource builds the adapter from a source definition.
func NewFromSource(src domain.Source) (indexers.Adapter, error) {
	maxResults, _ := strconv.Atoi(src.Setting("max_results", ""))
	return New(Config{
		Name:       src.Name,
		BaseURL:    src.Setting("base_url", DefaultBaseURL),
		MaxResults: maxResults,
	}), nil
}

// Name returns the human-readable name for this source.
func (a *Adapter) Name() string {
	return a.config.Name
}

// BuildListingRequest returns the most recent submissions across all categories.
func (a *Adapter) BuildListingRequest() (*indexers.Request, error) {
	req := a.buildRequest("all", "submittedDate", indexers.KindListing)
	return &req, nil
}

// BuildSearchRequest returns one request per available free-text query.
func (a *Adapter) BuildSearchRequest(criteria *domain.SearchCriteria) ([]indexers.Request, error) {
	if criteria == nil {
		return nil, nil
	}

	var reqs []indexers.Request
	if q := criteria.QueryAuthor(); q != "" {
		reqs = append(reqs, a.buildRequest(q, "relevance", indexers.KindAuthor))
	}
	if q := criteria.QueryBook(); q != "" {
		reqs = append(reqs, a.buildRequest(q, "relevance", indexers.KindBook))
	}
	return reqs, nil
}

// buildRequest constructs an arXiv query URL. The query is reduced to
// alphanumerics so titles with punctuation do not break the search syntax.
func (a *Adapter) buildRequest(query, sortBy, kind string) indexers.Request {
	sanitized := strings.Join(strings.Fields(nonAlphanumeric.ReplaceAllString(query, " ")), "+")

	// search_query is assembled by hand: arXiv expects literal '+' separators.
	u := fmt.Sprintf("%s/query?search_query=all:%s&start=0&max_results=%d&sortBy=%s&sortOrder=descending",
		a.config.BaseURL, sanitized, a.config.MaxResults, url.QueryEscape(sortBy))

	return indexers.Request{
		URL:     u,
		Headers: map[string]string{"Accept": "application/atom+xml"},
		Kind:    kind,
	}
}

// Parse converts an arXiv Atom feed into releases.
func (a *Adapter) Parse(resp *indexers.Response) ([]indexers.EntryResult, error) {
	if ok, err := indexers.CheckStatus(a.config.Name, resp); !ok {
		return nil, err
	}

	parser := &atom.Parser{}
	feed, err := parser.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]indexers.EntryResult, 0, len(feed.Entries))
	for i, entry := range feed.Entries {
		results = append(results, a.entryToRelease(i, entry))
	}
	return results, nil
}

// entryToRelease converts one Atom entry. Entries without a PDF link are skipped.
func (a *Adapter) entryToRelease(index int, entry *atom.Entry) indexers.EntryResult {
	if entry == nil {
		return indexers.Skip(index, "nil entry")
	}

	title := indexers.CleanText(entry.Title)
	if title == "" {
		return indexers.Skip(index, "missing title")
	}

	pdf := pdfLink(entry.Links)
	if pdf == "" {
		return indexers.Skip(index, "missing pdf link")
	}

	author := domain.UnknownAuthor
	for _, p := range entry.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			author = indexers.CleanText(p.Name)
			break
		}
	}

	return indexers.Accept(index, domain.Release{
		GUID:          strings.TrimSpace(entry.ID),
		Title:         domain.DisplayTitle(author, title),
		BookTitle:     title,
		AuthorName:    author,
		DOI:           doi.Normalize(extensionValue(entry, "doi")),
		SourceJournal: indexers.CleanText(extensionValue(entry, "journal_ref")),
		DownloadURL:   pdf,
		InfoURL:       strings.TrimSpace(entry.ID),
		Container:     "PDF",
		Categories:    []int{domain.CategoryBook},
		PublishDate:   indexers.ParseDate(entry.Published),
		Protocol:      domain.ProtocolHTTP,
	})
}

// pdfLink returns the href of the link titled "pdf" or typed application/pdf.
func pdfLink(links []*atom.Link) string {
	for _, l := range links {
		if l == nil {
			continue
		}
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return strings.TrimSpace(l.Href)
		}
	}
	return ""
}

// extensionValue reads an arxiv: namespaced element such as arxiv:doi.
func extensionValue(entry *atom.Entry, name string) string {
	for _, e := range entry.Extensions["arxiv"][name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}
