// Package doaj adapts the Directory of Open Access Journals article search
// API to the indexer contract.
package doaj

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
	Implementation = "doaj"

	// DefaultBaseURL is the DOAJ v2 API base URL.
	DefaultBaseURL = "https://doaj.org/api/v2"

	siteURL = "https://doaj.org"
)

// Config holds configuration for the DOAJ adapter.
type Config struct {
	Name     string
	BaseURL  string
	PageSize int
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "DOAJ"
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
}

// Adapter implements indexers.Adapter for DOAJ.
type Adapter struct {
	config Config
}

var _ indexers.Adapter = (*Adapter)(nil)

// New creates a new DOAJ adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg}
}

// NewFromSource builds the adapter from a source definition.
func NewFromSource(src domain.Source) (indexers.Adapter, error) {
	return New(Config{Name: src.Name, BaseURL: src.Setting("base_url", DefaultBaseURL)}), nil
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

// BuildSearchRequest builds field-scoped author and title queries.
func (a *Adapter) BuildSearchRequest(criteria *domain.SearchCriteria) ([]indexers.Request, error) {
	if criteria == nil {
		return nil, nil
	}

	var reqs []indexers.Request
	if q := criteria.QueryAuthor(); q != "" {
		reqs = append(reqs, a.request(fmt.Sprintf("bibjson.author.name:%q", q), a.config.PageSize, indexers.KindAuthor))
	}
	if q := criteria.QueryBook(); q != "" {
		reqs = append(reqs, a.request(fmt.Sprintf("bibjson.title:%q", q), a.config.PageSize, indexers.KindBook))
	}
	return reqs, nil
}

func (a *Adapter) request(query string, pageSize int, kind string) indexers.Request {
	return indexers.Request{
		URL: fmt.Sprintf("%s/search/articles/%s?page=1&pageSize=%d",
			a.config.BaseURL, url.PathEscape(query), pageSize),
		Headers: map[string]string{"Accept": "application/json"},
		Kind:    kind,
	}
}

type searchResponse struct {
	Total   int       `json:"total"`
	Results []article `json:"results"`
}

type article struct {
	ID          string   `json:"id"`
	CreatedDate string   `json:"created_date"`
	BibJSON     *bibJSON `json:"bibjson"`
}

type bibJSON struct {
	Title      string       `json:"title"`
	Author     []person     `json:"author"`
	Link       []link       `json:"link"`
	Identifier []identifier `json:"identifier"`
	Journal    *journal     `json:"journal"`
	Publisher  string       `json:"publisher"`
	Year       string       `json:"year"`
}

type person struct {
	Name string `json:"name"`
}

type link struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type journal struct {
	Title     string `json:"title"`
	Name      string `json:"name"`
	Publisher string `json:"publisher"`
}

// Parse converts a DOAJ search response into releases.
func (a *Adapter) Parse(resp *indexers.Response) ([]indexers.EntryResult, error) {
	if ok, err := indexers.CheckStatus(a.config.Name, resp); !ok {
		return nil, err
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]indexers.EntryResult, 0, len(body.Results))
	for i, art := range body.Results {
		results = append(results, toRelease(i, art))
	}
	return results, nil
}

func toRelease(index int, art article) indexers.EntryResult {
	bib := art.BibJSON
	id := strings.TrimSpace(art.ID)
	switch {
	case bib == nil:
		return indexers.Skip(index, "missing bibjson")
	case id == "":
		return indexers.Skip(index, "missing id")
	}

	download := absolute(fulltextLink(bib.Link))
	title := indexers.FirstNonEmpty(indexers.CleanText(bib.Title), "Unknown DOAJ Article")
	name := domain.UnknownAuthor
	if len(bib.Author) > 0 {
		name = indexers.FirstNonEmpty(bib.Author[0].Name, domain.UnknownAuthor)
	}

	var articleDOI string
	for _, ident := range bib.Identifier {
		if strings.EqualFold(ident.Type, "doi") {
			articleDOI = doi.Normalize(ident.ID)
			break
		}
	}

	var journalName string
	if bib.Journal != nil {
		journalName = indexers.FirstNonEmpty(bib.Journal.Title, bib.Journal.Name, bib.Journal.Publisher)
	}

	return indexers.Accept(index, domain.Release{
		GUID:          "DOAJ-" + id,
		Title:         domain.DisplayTitle(name, title),
		BookTitle:     title,
		AuthorName:    name,
		DOI:           articleDOI,
		SourceJournal: indexers.FirstNonEmpty(journalName, bib.Publisher),
		DownloadURL:   download,
		InfoURL:       siteURL + "/article/" + id,
		Container:     "PDF",
		Categories:    []int{domain.CategoryBook},
		PublishDate:   indexers.ParseDate(indexers.FirstNonEmpty(art.CreatedDate, bib.Year)),
		Protocol:      domain.ProtocolHTTP,
	})
}

// fulltextLink prefers a link typed fulltext or pdf, else the first link.
func fulltextLink(links []link) string {
	for _, l := range links {
		if strings.EqualFold(l.Type, "fulltext") || strings.EqualFold(l.Type, "pdf") {
			if u := strings.TrimSpace(l.URL); u != "" {
				return u
			}
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].URL)
	}
	return ""
}

func absolute(u string) string {
	switch {
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "/"):
		return siteURL + u
	}
	return u
}
