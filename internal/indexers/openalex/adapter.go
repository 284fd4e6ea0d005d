// Package openalex adapts the OpenAlex works API to the indexer contract.
//
// OpenAlex is a catalog rather than a repository; only works with an open
// access location produce releases.
//
// API Documentation: https://docs.openalex.org/
package openalex

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const (
	// Implementation is the source implementation name for this adapter.
	Implementation = "openalex"

	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultPerPage is the page size used for searches.
	DefaultPerPage = 100

	// openAlexIDPrefix is the URL prefix for OpenAlex IDs.
	openAlexIDPrefix = "https://openalex.org/"
)

// Config holds configuration for the OpenAlex adapter.
type Config struct {
	Name    string
	BaseURL string

	// Email places requests in the polite pool.
	Email string

	PerPage int
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "OpenAlex"
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.PerPage <= 0 || c.PerPage > 200 {
		c.PerPage = DefaultPerPage
	}
}

// Adapter implements indexers.Adapter for OpenAlex.
type Adapter struct {
	config Config
}

var _ indexers.Adapter = (*Adapter)(nil)

// New creates a new OpenAlex adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg}
}

// NewFromSource builds the adapter from a source definition.
func NewFromSource(src domain.Source) (indexers.Adapter, error) {
	perPage, _ := strconv.Atoi(src.Setting("per_page", ""))
	return New(Config{
		Name:    src.Name,
		BaseURL: src.Setting("base_url", DefaultBaseURL),
		Email:   src.Setting("email", ""),
		PerPage: perPage,
	}), nil
}

// Name returns the human-readable name for this source.
func (a *Adapter) Name() string {
	return a.config.Name
}

// BuildListingRequest returns the most recently published open access works.
func (a *Adapter) BuildListingRequest() (*indexers.Request, error) {
	query := url.Values{}
	query.Set("filter", "is_oa:true")
	query.Set("sort", "publication_date:desc")
	req := a.request(query, indexers.KindListing)
	return &req, nil
}

// BuildSearchRequest builds DOI filter lookups plus author and title searches.
func (a *Adapter) BuildSearchRequest(criteria *domain.SearchCriteria) ([]indexers.Request, error) {
	if criteria == nil {
		return nil, nil
	}

	var reqs []indexers.Request
	for _, d := range indexers.CriteriaDOIs(criteria) {
		query := url.Values{}
		query.Set("filter", "doi:https://doi.org/"+d)
		reqs = append(reqs, a.request(query, indexers.KindDOI))
	}
	if q := criteria.QueryAuthor(); q != "" {
		query := url.Values{}
		query.Set("search", q)
		query.Set("sort", "publication_date:desc")
		reqs = append(reqs, a.request(query, indexers.KindAuthor))
	}
	if q := criteria.QueryBook(); q != "" {
		query := url.Values{}
		query.Set("search", q)
		query.Set("sort", "publication_date:desc")
		reqs = append(reqs, a.request(query, indexers.KindBook))
	}
	return reqs, nil
}

func (a *Adapter) request(query url.Values, kind string) indexers.Request {
	query.Set("per-page", strconv.Itoa(a.config.PerPage))
	if a.config.Email != "" {
		query.Set("mailto", a.config.Email)
	}
	return indexers.Request{
		URL:     a.config.BaseURL + "/works?" + query.Encode(),
		Headers: map[string]string{"Accept": "application/json"},
		Kind:    kind,
	}
}

// Parse converts an OpenAlex works response into releases.
func (a *Adapter) Parse(resp *indexers.Response) ([]indexers.EntryResult, error) {
	if ok, err := indexers.CheckStatus(a.config.Name, resp); !ok {
		return nil, err
	}

	var body SearchResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]indexers.EntryResult, 0, len(body.Results))
	for i, w := range body.Results {
		results = append(results, toRelease(i, w))
	}
	return results, nil
}

func toRelease(index int, w Work) indexers.EntryResult {
	id := strings.TrimPrefix(strings.TrimSpace(w.ID), openAlexIDPrefix)
	if id == "" {
		return indexers.Skip(index, "missing id")
	}
	title := indexers.CleanText(indexers.FirstNonEmpty(w.Title, w.DisplayName))
	if title == "" {
		return indexers.Skip(index, "missing title")
	}
	download := downloadURL(w)
	if download == "" {
		return indexers.Skip(index, "no open access location")
	}

	name := domain.UnknownAuthor
	for _, au := range w.Authorships {
		if n := strings.TrimSpace(au.Author.DisplayName); n != "" {
			name = n
			break
		}
	}

	var journal string
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		journal = w.PrimaryLocation.Source.DisplayName
	}

	return indexers.Accept(index, domain.Release{
		GUID:          "OpenAlex-" + id,
		Title:         domain.DisplayTitle(name, title),
		BookTitle:     title,
		AuthorName:    name,
		DOI:           doi.Normalize(w.DOI),
		SourceJournal: strings.TrimSpace(journal),
		DownloadURL:   download,
		InfoURL:       openAlexIDPrefix + id,
		Container:     "PDF",
		Categories:    []int{domain.CategoryBook},
		PublishDate:   indexers.ParseDate(w.PublicationDate),
		Protocol:      domain.ProtocolHTTP,
	})
}

// downloadURL picks the best available full-text link.
func downloadURL(w Work) string {
	if w.OpenAccess != nil {
		if u := strings.TrimSpace(w.OpenAccess.OAURL); u != "" {
			return u
		}
	}
	if loc := w.BestOALocation; loc != nil {
		if u := indexers.FirstNonEmpty(loc.PDFURL, loc.URL, loc.LandingPageURL); u != "" {
			return u
		}
	}
	if loc := w.PrimaryLocation; loc != nil && loc.Source != nil {
		return strings.TrimSpace(loc.Source.URL)
	}
	return ""
}
