// Package pmc adapts the NCBI E-utilities esearch endpoint for PubMed Central
// to the indexer contract. Only ids are returned by esearch, so releases
// carry placeholder titles derived from the PMC id.
package pmc

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const (
	// Implementation is the source implementation name for this adapter.
	Implementation = "pmc"

	// DefaultBaseURL is the E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// MaxResultsLimit bounds retmax.
	MaxResultsLimit = 100

	// maxReleases caps releases per response to keep follow-up downloads polite.
	maxReleases = 20

	articlesURL = "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC"

	freeFullText = "(free fulltext[filter])"
)

// Config holds configuration for the PMC adapter.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Email   string
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "PubMed Central"
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Adapter implements indexers.Adapter for PubMed Central.
type Adapter struct {
	config Config
}

var _ indexers.Adapter = (*Adapter)(nil)

// New creates a new PMC adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg}
}

// NewFromSource builds the adapter from a source definition.
func NewFromSource(src domain.Source) (indexers.Adapter, error) {
	return New(Config{
		Name:    src.Name,
		BaseURL: src.Setting("base_url", DefaultBaseURL),
		APIKey:  src.Setting("api_key", ""),
		Email:   src.Setting("email", ""),
	}), nil
}

// Name returns the human-readable name for this source.
func (a *Adapter) Name() string {
	return a.config.Name
}

// BuildListingRequest searches recent free full-text articles.
func (a *Adapter) BuildListingRequest() (*indexers.Request, error) {
	req := a.esearch(freeFullText+" AND (hasabstract[text])", indexers.KindListing)
	return &req, nil
}

// BuildSearchRequest issues DOI searches followed by one combined
// title/author search restricted to free full text.
func (a *Adapter) BuildSearchRequest(criteria *domain.SearchCriteria) ([]indexers.Request, error) {
	if criteria == nil {
		return nil, nil
	}

	var reqs []indexers.Request
	for _, d := range indexers.CriteriaDOIs(criteria) {
		reqs = append(reqs, a.esearch(fmt.Sprintf("%q[DOI]", d), indexers.KindDOI))
	}

	var parts []string
	kind := indexers.KindAuthor
	if q := criteria.QueryBook(); q != "" {
		parts = append(parts, fmt.Sprintf("%q[Title]", q))
		kind = indexers.KindBook
	}
	if q := criteria.QueryAuthor(); q != "" {
		parts = append(parts, fmt.Sprintf("%q[Author]", q))
	}
	if len(parts) > 0 {
		parts = append(parts, freeFullText)
		reqs = append(reqs, a.esearch(strings.Join(parts, " AND "), kind))
	}
	return reqs, nil
}

func (a *Adapter) esearch(term, kind string) indexers.Request {
	q := url.Values{}
	q.Set("db", "pmc")
	q.Set("term", term)
	q.Set("retmax", strconv.Itoa(MaxResultsLimit))
	q.Set("retmode", "xml")
	q.Set("usehistory", "y")
	if a.config.APIKey != "" {
		q.Set("api_key", a.config.APIKey)
	}
	if a.config.Email != "" {
		q.Set("email", a.config.Email)
	}
	return indexers.Request{
		URL:     a.config.BaseURL + "/esearch.fcgi?" + q.Encode(),
		Headers: map[string]string{"Accept": "application/xml"},
		Kind:    kind,
	}
}

// ESearchResult is the esearch XML response.
type ESearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
	Error string `xml:"ERROR"`
}

// Parse converts an esearch id list into releases.
func (a *Adapter) Parse(resp *indexers.Response) ([]indexers.EntryResult, error) {
	if ok, err := indexers.CheckStatus(a.config.Name, resp); !ok {
		return nil, err
	}

	var result ESearchResult
	if err := xml.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if msg := strings.TrimSpace(result.Error); msg != "" {
		return nil, domain.NewFetchError(a.config.Name, resp.Request.URL, resp.StatusCode, msg)
	}

	ids := result.IDList.IDs
	if len(ids) > maxReleases {
		ids = ids[:maxReleases]
	}

	results := make([]indexers.EntryResult, 0, len(ids))
	for i, raw := range ids {
		id := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(raw)), "PMC")
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			results = append(results, indexers.Skip(i, "invalid pmc id"))
			continue
		}

		title := "PMC" + id
		results = append(results, indexers.Accept(i, domain.Release{
			GUID:        "PMC-" + id,
			Title:       domain.DisplayTitle(domain.UnknownAuthor, title),
			BookTitle:   title,
			AuthorName:  domain.UnknownAuthor,
			DownloadURL: articlesURL + id + "/pdf/",
			InfoURL:     articlesURL + id + "/",
			Container:   "PDF",
			Categories:  []int{domain.CategoryBook},
			PublishDate: indexers.ParseDate(""),
			Protocol:    domain.ProtocolHTTP,
		}))
	}
	return results, nil
}
