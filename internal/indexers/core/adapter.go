// Package core adapts the CORE v3 works search API to the indexer contract.
package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const (
	// Implementation is the source implementation name for this adapter.
	Implementation = "core"

	// DefaultBaseURL is the CORE v3 API base URL.
	DefaultBaseURL = "https://api.core.ac.uk/v3"

	// DefaultLimit is the page size used for searches.
	DefaultLimit = 100

	displayBaseURL = "https://core.ac.uk/display/"
)

// Config holds configuration for the CORE adapter.
type Config struct {
	Name    string
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	Limit int
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "CORE"
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
}

// Adapter implements indexers.Adapter for CORE.
type Adapter struct {
	config Config
}

// Ensure Adapter implements the indexers.Adapter interface.
var _ indexers.Adapter = (*Adapter)(nil)

// New creates a new CORE adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg}
}

// NewFromSource builds the adapter from a source definition. The api_key
// setting is normally injected from the environment by the config layer.
func NewFromSource(src domain.Source) (indexers.Adapter, error) {
	return New(Config{
		Name:    src.Name,
		BaseURL: src.Setting("base_url", DefaultBaseURL),
		APIKey:  src.Setting("api_key", ""),
	}), nil
}

// Name returns the human-readable name for this source.
func (a *Adapter) Name() string {
	return a.config.Name
}

// BuildListingRequest returns a one-result probe query.
func (a *Adapter) BuildListingRequest() (*indexers.Request, error) {
	req := a.request("the", 1, indexers.KindListing)
	return &req, nil
}

// BuildSearchRequest builds an author query and a title query.
func (a *Adapter) BuildSearchRequest(criteria *domain.SearchCriteria) ([]indexers.Request, error) {
	if criteria == nil {
		return nil, nil
	}

	var reqs []indexers.Request
	if q := criteria.QueryAuthor(); q != "" {
		reqs = append(reqs, a.request(fmt.Sprintf("authors:%q", q), a.config.Limit, indexers.KindAuthor))
	}
	if q := criteria.QueryBook(); q != "" {
		reqs = append(reqs, a.request(fmt.Sprintf("title:%q", q), a.config.Limit, indexers.KindBook))
	}
	return reqs, nil
}

func (a *Adapter) request(query string, limit int, kind string) indexers.Request {
	headers := map[string]string{"Accept": "application/json"}
	if a.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + a.config.APIKey
	}
	return indexers.Request{
		URL:     fmt.Sprintf("%s/search/works?q=%s&limit=%d", a.config.BaseURL, url.QueryEscape(query), limit),
		Headers: headers,
		Kind:    kind,
	}
}

type searchResponse struct {
	TotalHits int    `json:"totalHits"`
	Results   []work `json:"results"`
}

type work struct {
	ID            json.Number `json:"id"`
	DOI           string      `json:"doi"`
	Title         string      `json:"title"`
	Authors       []author    `json:"authors"`
	DownloadURL   string      `json:"downloadUrl"`
	PublishedDate string      `json:"publishedDate"`
	Publisher     string      `json:"publisher"`
	Journals      []journal   `json:"journals"`
}

type author struct {
	Name string `json:"name"`
}

type journal struct {
	Title string `json:"title"`
}

// Parse converts a CORE search response into releases.
func (a *Adapter) Parse(resp *indexers.Response) ([]indexers.EntryResult, error) {
	if ok, err := indexers.CheckStatus(a.config.Name, resp); !ok {
		return nil, err
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]indexers.EntryResult, 0, len(body.Results))
	for i, w := range body.Results {
		id := strings.TrimSpace(w.ID.String())
		title := indexers.CleanText(w.Title)
		switch {
		case id == "":
			results = append(results, indexers.Skip(i, "missing id"))
			continue
		case title == "":
			results = append(results, indexers.Skip(i, "missing title"))
			continue
		}

		name := domain.UnknownAuthor
		if len(w.Authors) > 0 {
			name = indexers.FirstNonEmpty(w.Authors[0].Name, domain.UnknownAuthor)
		}
		var journalName string
		if len(w.Journals) > 0 {
			journalName = w.Journals[0].Title
		}

		results = append(results, indexers.Accept(i, domain.Release{
			GUID:          "Core-" + id,
			Title:         domain.DisplayTitle(name, title),
			BookTitle:     title,
			AuthorName:    name,
			DOI:           doi.Normalize(w.DOI),
			SourceJournal: indexers.FirstNonEmpty(journalName, w.Publisher),
			DownloadURL:   strings.TrimSpace(w.DownloadURL),
			InfoURL:       displayBaseURL + id,
			Container:     "PDF",
			Categories:    []int{domain.CategoryBook},
			PublishDate:   indexers.ParseDate(w.PublishedDate),
			Protocol:      domain.ProtocolHTTP,
		}))
	}
	return results, nil
}
