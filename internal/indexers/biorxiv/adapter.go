// Package biorxiv adapts the bioRxiv and medRxiv details API to the indexer contract.
package biorxiv

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

// Implementation names served by this package.
const (
	ImplementationBiorxiv = "biorxiv"
	ImplementationMedrxiv = "medrxiv"
)

const (
	// DefaultBaseURL is the default details API base URL shared by both servers.
	DefaultBaseURL = "https://api.biorxiv.org/details"

	pageSize          = 100
	recentWindow      = 7 * 24 * time.Hour
	searchWindowYears = 3
	searchPages       = 2
)

// Server describes one preprint server behind the details API.
type Server struct {
	// Name is the path segment used by the API ("biorxiv" or "medrxiv").
	Name string

	// DisplayName is used in guids and logs.
	DisplayName string

	// ContentBaseURL hosts the PDFs and landing pages.
	ContentBaseURL string
}

var (
	// Biorxiv is the bioRxiv server.
	Biorxiv = Server{Name: "biorxiv", DisplayName: "Biorxiv", ContentBaseURL: "https://www.biorxiv.org"}

	// Medrxiv is the medRxiv server.
	Medrxiv = Server{Name: "medrxiv", DisplayName: "Medrxiv", ContentBaseURL: "https://www.medrxiv.org"}
)

// Config holds configuration for the adapter.
type Config struct {
	Name    string
	BaseURL string
	Server  Server

	// Now returns the current time; used for date-range requests.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server = Biorxiv
	}
	if c.Name == "" {
		c.Name = c.Server.DisplayName
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.Server.ContentBaseURL = strings.TrimRight(c.Server.ContentBaseURL, "/")
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Adapter implements indexers.Adapter for one preprint server.
type Adapter struct {
	config Config
}

// Ensure Adapter implements the indexers.Adapter interface.
var _ indexers.Adapter = (*Adapter)(nil)

// New creates a new adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg}
}

// NewBiorxivFromSource builds a bioRxiv adapter from a source definition.
func NewBiorxivFromSource(src domain.Source) (indexers.Adapter, error) {
	return newFromSource(src, Biorxiv), nil
}

// NewMedrxivFromSource builds a medRxiv adapter from a source definition.
func NewMedrxivFromSource(src domain.Source) (indexers.Adapter, error) {
	return newFromSource(src, Medrxiv), nil
}

func newFromSource(src domain.Source, server Server) *Adapter {
	server.ContentBaseURL = src.Setting("content_base_url", server.ContentBaseURL)
	return New(Config{
		Name:    src.Name,
		BaseURL: src.Setting("base_url", DefaultBaseURL),
		Server:  server,
	})
}

// Name returns the human-readable name for this source.
func (a *Adapter) Name() string {
	return a.config.Name
}

// BuildListingRequest returns the preprints posted in the last week.
func (a *Adapter) BuildListingRequest() (*indexers.Request, error) {
	to := a.config.Now().UTC()
	req := a.dateRangeRequests(to.Add(-recentWindow), to, 1, "", indexers.KindListing)[0]
	return &req, nil
}

// BuildSearchRequest looks items up by DOI when possible and additionally
// runs a free-text query over the last three years.
func (a *Adapter) BuildSearchRequest(criteria *domain.SearchCriteria) ([]indexers.Request, error) {
	if criteria == nil {
		return nil, nil
	}

	var reqs []indexers.Request
	for _, d := range indexers.CriteriaDOIs(criteria) {
		reqs = append(reqs, indexers.Request{
			URL:     fmt.Sprintf("%s/%s/%s", a.config.BaseURL, a.config.Server.Name, d),
			Headers: map[string]string{"Accept": "application/json"},
			Kind:    indexers.KindDOI,
		})
	}

	query := strings.Join(strings.Fields(strings.ReplaceAll(
		criteria.QueryBook()+" "+criteria.QueryAuthor(), "+", " ")), " ")
	if query != "" {
		to := a.config.Now().UTC()
		from := to.AddDate(-searchWindowYears, 0, 0)
		kind := indexers.KindAuthor
		if criteria.QueryBook() != "" {
			kind = indexers.KindBook
		}
		reqs = append(reqs, a.dateRangeRequests(from, to, searchPages, query, kind)...)
	}
	return reqs, nil
}

func (a *Adapter) dateRangeRequests(from, to time.Time, pages int, query, kind string) []indexers.Request {
	queryPart := ""
	if query != "" {
		queryPart = "?q=" + url.QueryEscape(query)
	}

	reqs := make([]indexers.Request, 0, pages)
	for page := 0; page < pages; page++ {
		reqs = append(reqs, indexers.Request{
			URL: fmt.Sprintf("%s/%s/%s/%s/%d%s", a.config.BaseURL, a.config.Server.Name,
				from.Format("2006-01-02"), to.Format("2006-01-02"), page*pageSize, queryPart),
			Headers: map[string]string{"Accept": "application/json"},
			Kind:    kind,
		})
	}
	return reqs
}

// Parse converts a details response into releases. Withdrawn preprints are
// skipped and only the latest version of each DOI is kept.
func (a *Adapter) Parse(resp *indexers.Response) ([]indexers.EntryResult, error) {
	if ok, err := indexers.CheckStatus(a.config.Name, resp, http.StatusNotFound); !ok {
		return nil, err
	}

	var details DetailsResponse
	if err := json.Unmarshal(resp.Body, &details); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	latest := make(map[string]int, len(details.Collection))
	var order []string
	var results []indexers.EntryResult

	for i, p := range details.Collection {
		d := doi.Normalize(p.DOI)
		switch {
		case d == "":
			results = append(results, indexers.Skip(i, "invalid doi"))
			continue
		case strings.EqualFold(p.Type, "withdrawn"):
			results = append(results, indexers.Skip(i, "withdrawn"))
			continue
		}

		prev, seen := latest[d]
		if !seen {
			order = append(order, d)
			latest[d] = i
			continue
		}
		if version(p) > version(details.Collection[prev]) {
			latest[d] = i
		}
	}

	for _, d := range order {
		idx := latest[d]
		results = append(results, a.toRelease(idx, d, details.Collection[idx]))
	}
	return results, nil
}

func (a *Adapter) toRelease(index int, d string, p Preprint) indexers.EntryResult {
	title := indexers.FirstNonEmpty(indexers.CleanText(p.Title), "Unknown Title")

	author := firstAuthor(p.Authors)
	suffix := "v" + strconv.Itoa(version(p))
	content := a.config.Server.ContentBaseURL + "/content/" + d + suffix

	return indexers.Accept(index, domain.Release{
		GUID:          fmt.Sprintf("%s-%s-%s", a.config.Server.DisplayName, d, suffix),
		Title:         domain.DisplayTitle(author, title),
		BookTitle:     title,
		AuthorName:    author,
		DOI:           d,
		SourceJournal: indexers.CleanText(p.PublishedIn),
		DownloadURL:   content + ".full.pdf",
		InfoURL:       content,
		Container:     "PDF",
		Categories:    []int{domain.CategoryBook},
		PublishDate:   indexers.ParseDate(p.Date),
		Protocol:      domain.ProtocolHTTP,
	})
}

func version(p Preprint) int {
	v, err := strconv.Atoi(strings.TrimSpace(p.Version))
	if err != nil || v < 1 {
		return 1
	}
	return v
}

func firstAuthor(authors string) string {
	for _, a := range strings.Split(authors, ";") {
		if a = strings.TrimSpace(a); a != "" {
			return a
		}
	}
	return domain.UnknownAuthor
}
