// Package unpaywall adapts the Unpaywall DOI lookup API to the indexer contract.
package unpaywall

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const (
	// Implementation is the source implementation name for this adapter.
	Implementation = "unpaywall"

	// DefaultBaseURL is the Unpaywall v2 API base URL.
	DefaultBaseURL = "https://api.unpaywall.org/v2"

	// probeDOI is a known open-access DOI used for the listing probe.
	probeDOI = "10.1038/nature12373"
)

// Config holds configuration for the Unpaywall adapter.
type Config struct {
	Name    string
	BaseURL string

	// Email is required by Unpaywall's terms of use.
	Email string
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "Unpaywall"
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Adapter implements indexers.Adapter for Unpaywall.
type Adapter struct {
	config Config
}

var _ indexers.Adapter = (*Adapter)(nil)

// New creates a new Unpaywall adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg}
}

// NewFromSource builds the adapter from a source definition.
func NewFromSource(src domain.Source) (indexers.Adapter, error) {
	email := src.Setting("email", "")
	if email == "" {
		return nil, domain.NewValidationError("email", "unpaywall requires a contact email")
	}
	return New(Config{Name: src.Name, BaseURL: src.Setting("base_url", DefaultBaseURL), Email: email}), nil
}

// Name returns the human-readable name for this source.
func (a *Adapter) Name() string {
	return a.config.Name
}

// BuildListingRequest looks up a known DOI to verify connectivity.
func (a *Adapter) BuildListingRequest() (*indexers.Request, error) {
	req := a.request(probeDOI, indexers.KindListing)
	return &req, nil
}

// BuildSearchRequest issues one lookup per DOI found in the criteria. Author
// only searches produce no requests.
func (a *Adapter) BuildSearchRequest(criteria *domain.SearchCriteria) ([]indexers.Request, error) {
	dois := indexers.CriteriaDOIs(criteria)
	reqs := make([]indexers.Request, 0, len(dois))
	for _, d := range dois {
		reqs = append(reqs, a.request(d, indexers.KindDOI))
	}
	return reqs, nil
}

func (a *Adapter) request(d, kind string) indexers.Request {
	return indexers.Request{
		URL:     fmt.Sprintf("%s/%s?email=%s", a.config.BaseURL, url.PathEscape(d), url.QueryEscape(a.config.Email)),
		Headers: map[string]string{"Accept": "application/json"},
		Kind:    kind,
	}
}

type record struct {
	DOI            string    `json:"doi"`
	Title          string    `json:"title"`
	JournalName    string    `json:"journal_name"`
	Publisher      string    `json:"publisher"`
	PublishedDate  string    `json:"published_date"`
	Authors        []author  `json:"z_authors"`
	BestOALocation *location `json:"best_oa_location"`
}

type author struct {
	RawAuthorName string `json:"raw_author_name"`
	Given         string `json:"given"`
	Family        string `json:"family"`
}

func (a author) name() string {
	return indexers.FirstNonEmpty(a.RawAuthorName, strings.TrimSpace(a.Given+" "+a.Family))
}

type location struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
}

// Parse converts a single DOI record into at most one release. A 404 or a
// record without an open-access location is an empty result.
func (a *Adapter) Parse(resp *indexers.Response) ([]indexers.EntryResult, error) {
	if ok, err := indexers.CheckStatus(a.config.Name, resp, http.StatusNotFound); !ok {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(resp.Body, &rec); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if rec.BestOALocation == nil {
		return nil, nil
	}

	d := doi.Normalize(rec.DOI)
	if d == "" {
		return []indexers.EntryResult{indexers.Skip(0, "invalid doi")}, nil
	}

	download := indexers.FirstNonEmpty(rec.BestOALocation.URLForPDF, rec.BestOALocation.URL)
	if download == "" {
		return nil, nil
	}

	title := indexers.FirstNonEmpty(indexers.CleanText(rec.Title), "Unknown Title")
	name := domain.UnknownAuthor
	if len(rec.Authors) > 0 {
		name = indexers.FirstNonEmpty(rec.Authors[0].name(), domain.UnknownAuthor)
	}

	return []indexers.EntryResult{indexers.Accept(0, domain.Release{
		GUID:          "Unpaywall-" + d,
		Title:         domain.DisplayTitle(name, title),
		BookTitle:     title,
		AuthorName:    name,
		DOI:           d,
		SourceJournal: indexers.FirstNonEmpty(rec.JournalName, rec.Publisher),
		DownloadURL:   download,
		InfoURL:       "https://doi.org/" + d,
		Container:     "PDF",
		Categories:    []int{domain.CategoryBook},
		PublishDate:   indexers.ParseDate(rec.PublishedDate),
		Protocol:      domain.ProtocolHTTP,
	})}, nil
}
