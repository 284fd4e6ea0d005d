// Package scihub adapts Sci-Hub mirror pages to the indexer contract. Only
// DOI lookups are supported; the PDF link is discovered from the returned page.
package scihub

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const (
	// Implementation is the source implementation name for this adapter.
	Implementation = "scihub"

	// DefaultMirrors is used when the source does not list its own mirrors.
	DefaultMirrors = "https://sci-hub.wf, https://sci-hub.st, https://sci-hub.se, https://sci-hub.ru, https://sci-hub.ee, https://sci-hub.ren"
)

var (
	titlePrefix  = regexp.MustCompile(`(?i)^Sci-Hub\s*[|:]\s*`)
	locationHref = regexp.MustCompile(`(?i)location\.href\s*=\s*['"]([^'"]+\.pdf[^'"]*)['"]`)
	refreshURL   = regexp.MustCompile(`(?i)url=([^"' >]+)`)
)

// Config holds configuration for the Sci-Hub adapter.
type Config struct {
	Name string

	// Mirrors are tried in order; every mirror gets a request per DOI.
	Mirrors []string

	// FlareSolverrURL routes requests through a FlareSolverr instance when set.
	FlareSolverrURL string
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "Sci-Hub"
	}
	if len(c.Mirrors) == 0 {
		c.Mirrors = indexers.SplitList(DefaultMirrors)
	}
}

// Adapter implements indexers.Adapter for Sci-Hub.
type Adapter struct {
	config Config
}

var _ indexers.Adapter = (*Adapter)(nil)

// New creates a new Sci-Hub adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg}
}

// NewFromSource builds the adapter from a source definition.
func NewFromSource(src domain.Source) (indexers.Adapter, error) {
	return New(Config{
		Name:            src.Name,
		Mirrors:         indexers.SplitList(src.Setting("mirrors", DefaultMirrors)),
		FlareSolverrURL: src.Setting("flaresolverr_url", ""),
	}), nil
}

// Name returns the human-readable name for this source.
func (a *Adapter) Name() string {
	return a.config.Name
}

// BuildListingRequest is unsupported: mirrors have no recent feed.
func (a *Adapter) BuildListingRequest() (*indexers.Request, error) {
	return nil, indexers.ErrListingUnsupported
}

// BuildSearchRequest returns one request per mirror for every DOI in the
// criteria. Criteria without a DOI produce no requests.
func (a *Adapter) BuildSearchRequest(criteria *domain.SearchCriteria) ([]indexers.Request, error) {
	dois := indexers.CriteriaDOIs(criteria)
	reqs := make([]indexers.Request, 0, len(dois)*len(a.config.Mirrors))
	for _, d := range dois {
		for _, mirror := range a.config.Mirrors {
			req := indexers.Request{
				URL:     mirror + "/https://doi.org/" + d,
				Headers: map[string]string{"Accept": "text/html"},
				Kind:    indexers.KindDOI,
			}
			reqs = append(reqs, indexers.WrapFlareSolverr(a.config.FlareSolverrURL, req))
		}
	}
	return reqs, nil
}

// Parse extracts at most one release from a mirror page. Missing items and
// blocked mirrors (404, 403, redirects) produce an empty result.
func (a *Adapter) Parse(resp *indexers.Response) ([]indexers.EntryResult, error) {
	resp, err := indexers.Unwrap(resp)
	if err != nil {
		return nil, err
	}

	empty := append([]int{http.StatusNotFound, http.StatusForbidden}, indexers.Redirects...)
	if ok, err := indexers.CheckStatus(a.config.Name, resp, empty...); !ok {
		return nil, err
	}
	if provider, ok := indexers.DetectChallenge(resp.Body); ok {
		return nil, domain.NewProviderChallengeError(a.config.Name, provider)
	}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	pdf := findPDF(page)
	if pdf == "" {
		return nil, nil
	}

	base := indexers.FirstNonEmpty(resp.URL, resp.Request.URL)
	pdf = resolve(base, pdf)

	metaDOI, _ := page.Find(`meta[name="citation_doi"]`).Attr("content")
	d := indexers.FirstNonEmpty(
		doi.ExtractFromText(base),
		doi.ExtractFromText(pdf),
		doi.Normalize(metaDOI),
		doi.ExtractFromText(page.Text()),
	)

	fallback := indexers.FirstNonEmpty(d, "Unknown SciHub Paper")
	metaTitle, _ := page.Find(`meta[name="citation_title"]`).Attr("content")
	title := indexers.FirstNonEmpty(metaTitle, page.Find("title").First().Text(), fallback)
	title = titlePrefix.ReplaceAllString(indexers.CleanText(title), "")
	if title == "" || strings.Contains(strings.ToLower(title), "{title}") || strings.Contains(strings.ToLower(title), "{doi}") {
		title = fallback
	}

	metaAuthor, _ := page.Find(`meta[name="citation_author"]`).Attr("content")
	name := indexers.FirstNonEmpty(indexers.CleanText(metaAuthor), domain.UnknownAuthor)

	guid := "SciHub-" + d
	if d == "" {
		guid = "SciHub-" + pdf
	}

	return []indexers.EntryResult{indexers.Accept(0, domain.Release{
		GUID:        guid,
		Title:       domain.DisplayTitle(name, title),
		BookTitle:   title,
		AuthorName:  name,
		DOI:         d,
		DownloadURL: pdf,
		InfoURL:     base,
		Container:   "PDF",
		Categories:  []int{domain.CategoryBook},
		PublishDate: indexers.ParseDate(""),
		Protocol:    domain.ProtocolHTTP,
	})}, nil
}

// findPDF tries the embed patterns used across mirror templates, most
// specific first.
func findPDF(page *goquery.Document) string {
	if src, ok := page.Find("#pdf[src]").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}

	selectors := []struct{ sel, attr string }{
		{`iframe[src*=".pdf"]`, "src"},
		{`embed[src*=".pdf"]`, "src"},
		{`[data-src*=".pdf"]`, "data-src"},
		{`[href*=".pdf"]`, "href"},
	}
	for _, s := range selectors {
		if v, ok := page.Find(s.sel).First().Attr(s.attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	var found string
	page.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if m := locationHref.FindStringSubmatch(sel.Text()); m != nil {
			found = m[1]
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	page.Find("meta").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if equiv, _ := sel.Attr("http-equiv"); !strings.EqualFold(equiv, "refresh") {
			return true
		}
		content, _ := sel.Attr("content")
		if m := refreshURL.FindStringSubmatch(content); m != nil {
			found = m[1]
			return false
		}
		return true
	})
	return found
}

// resolve turns protocol-relative and path-relative links into absolute URLs.
func resolve(base, ref string) string {
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
