// Package libgen adapts Library Genesis mirror search pages to the indexer
// contract. Result tables are parsed with a header-driven column map so the
// layout differences between mirrors do not matter.
package libgen

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const (
	// Implementation is the source implementation name for this adapter.
	Implementation = "libgen"

	// DefaultMirrors is used when the source does not list its own mirrors.
	DefaultMirrors = "https://libgen.is, https://libgen.rs, https://libgen.st"

	unknownTitle     = "Unknown Title"
	maxDisplayAuthor = 80
)

var (
	md5Pattern     = regexp.MustCompile(`(?i)md5=([0-9a-f]{32})`)
	editionPattern = regexp.MustCompile(`(?i)edition\.php\?id=(\d+)`)
	rowDOIPattern  = regexp.MustCompile(`(?i)DOI:\s*([0-9.]+/[^\s<]+)`)
	sizePattern    = regexp.MustCompile(`(?i)([\d.,]+)\s*(kB|KB|MB|GB|Mb|Gb|KiB|MiB|GiB)\b`)
	extPattern     = regexp.MustCompile(`(?i)^(pdf|epub|mobi|azw3|djvu|doc|docx|txt|rtf|chm|fb2)$`)
	authorSuffix   = regexp.MustCompile(`(?i)\s*\(author\)\s*`)
)

// Config holds configuration for the LibGen adapter.
type Config struct {
	Name            string
	Mirrors         []string
	FlareSolverrURL string
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "LibGen"
	}
	if len(c.Mirrors) == 0 {
		c.Mirrors = indexers.SplitList(DefaultMirrors)
	}
}

// Adapter implements indexers.Adapter for LibGen.
type Adapter struct {
	config Config
}

var _ indexers.Adapter = (*Adapter)(nil)

// New creates a new LibGen adapter.
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

// BuildListingRequest returns the newest additions on the first mirror.
func (a *Adapter) BuildListingRequest() (*indexers.Request, error) {
	req := a.wrap(a.config.Mirrors[0]+"/search.php?req=&res=25", indexers.KindListing)
	return &req, nil
}

// BuildSearchRequest builds DOI, title, author and combined queries against
// every mirror.
func (a *Adapter) BuildSearchRequest(criteria *domain.SearchCriteria) ([]indexers.Request, error) {
	if criteria == nil {
		return nil, nil
	}

	var reqs []indexers.Request
	if d := doi.Normalize(criteria.DOI); d != "" {
		reqs = append(reqs, a.requests(d, "title", indexers.KindDOI)...)
	}

	book, author := criteria.QueryBook(), criteria.QueryAuthor()
	if book != "" {
		reqs = append(reqs, a.requests(book, "title", indexers.KindBook)...)
	}
	if author != "" {
		reqs = append(reqs, a.requests(author, "author", indexers.KindAuthor)...)
	}
	if book != "" && author != "" {
		reqs = append(reqs, a.requests(book+" "+author, "title", indexers.KindBook)...)
	}
	return reqs, nil
}

func (a *Adapter) requests(query, column, kind string) []indexers.Request {
	q := url.QueryEscape(query)
	reqs := make([]indexers.Request, 0, 2*len(a.config.Mirrors))
	for _, mirror := range a.config.Mirrors {
		reqs = append(reqs,
			a.wrap(fmt.Sprintf("%s/index.php?req=%s&res=100", mirror, q), kind),
			a.wrap(fmt.Sprintf("%s/search.php?req=%s&column=%s&res=100", mirror, q, column), kind),
		)
	}
	return reqs
}

func (a *Adapter) wrap(u, kind string) indexers.Request {
	return indexers.WrapFlareSolverr(a.config.FlareSolverrURL, indexers.Request{
		URL:     u,
		Headers: map[string]string{"Accept": "text/html"},
		Kind:    kind,
	})
}

// emptyStatuses are the mirror errors treated as "no results".
var emptyStatuses = append([]int{
	http.StatusNotFound,
	http.StatusForbidden,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}, indexers.Redirects...)

// Parse extracts releases from every result table on the page.
func (a *Adapter) Parse(resp *indexers.Response) ([]indexers.EntryResult, error) {
	resp, err := indexers.Unwrap(resp)
	if err != nil {
		return nil, err
	}
	if ok, err := indexers.CheckStatus(a.config.Name, resp, emptyStatuses...); !ok {
		return nil, err
	}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	base := siteRoot(indexers.FirstNonEmpty(resp.URL, resp.Request.URL))
	var results []indexers.EntryResult
	index := 0
	page.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		header := -1
		columns := map[string]int{}
		rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
			text := strings.ToLower(row.Text())
			if strings.Contains(text, "author") && strings.Contains(text, "title") {
				header = i
				row.Find("th, td").Each(func(c int, cell *goquery.Selection) {
					name := strings.ToLower(strings.TrimSpace(cell.Text()))
					if _, ok := columns[name]; !ok && name != "" {
						columns[name] = c
					}
				})
				return false
			}
			return true
		})

		rows.Each(func(i int, row *goquery.Selection) {
			if i <= header {
				return
			}
			html, _ := goquery.OuterHtml(row)
			if !md5Pattern.MatchString(html) && !editionPattern.MatchString(html) {
				return
			}
			results = append(results, parseRow(index, row, html, columns, base))
			index++
		})
	})
	return results, nil
}

func parseRow(index int, row *goquery.Selection, html string, columns map[string]int, base string) indexers.EntryResult {
	cells := row.Find("td")
	cell := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= cells.Length() {
			return ""
		}
		return indexers.CleanText(cells.Eq(i).Text())
	}

	var md5, edition string
	if m := md5Pattern.FindStringSubmatch(html); m != nil {
		md5 = strings.ToLower(m[1])
	}
	if m := editionPattern.FindStringSubmatch(html); m != nil {
		edition = m[1]
	}

	// The item link text is the title; the surrounding cell often carries
	// series, ISBN or DOI annotations as well.
	sel := `a[href*="edition.php?id="]`
	if md5 != "" {
		sel = `a[href*="md5="]`
	}
	var title string
	row.Find(sel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		title = indexers.CleanText(a.Text())
		return title == ""
	})
	title = indexers.FirstNonEmpty(title, cell("title"), unknownTitle)

	author := cell("author")
	if author == "" && cells.Length() > 1 {
		author = indexers.CleanText(cells.Eq(1).Text())
	}
	author = indexers.FirstNonEmpty(author, domain.UnknownAuthor)

	rawDOI := cell("doi")
	if rawDOI == "" {
		if m := rowDOIPattern.FindStringSubmatch(html); m != nil {
			rawDOI = m[1]
		}
	}

	var download, info, id string
	if md5 != "" {
		id = md5
		download = findDownload(row, base, md5)
		info = base + "/book/index.php?md5=" + md5
	} else {
		id = "ed" + edition
		download = base + "/ads.php?id=" + edition
		info = base + "/edition.php?id=" + edition
	}

	ext := findExtension(row, cell("extension"))
	return indexers.Accept(index, domain.Release{
		GUID:        "LibGen-" + id,
		Title:       fmt.Sprintf("%s (%s)", domain.DisplayTitle(truncateAuthors(author), title), ext),
		BookTitle:   title,
		AuthorName:  author,
		DOI:         doi.Normalize(rawDOI),
		DownloadURL: download,
		InfoURL:     info,
		Container:   ext,
		Categories:  []int{domain.CategoryBook},
		Size:        findSize(row, cell("size")),
		PublishDate: indexers.ParseDate(cell("year")),
		Protocol:    domain.ProtocolHTTP,
	})
}

// findDownload prefers mirror-local ads/get links, then known external
// mirrors, then any link carrying the hash, and finally the ads page.
func findDownload(row *goquery.Selection, base, md5 string) string {
	var hrefs []string
	row.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if h, _ := a.Attr("href"); strings.TrimSpace(h) != "" {
			hrefs = append(hrefs, strings.TrimSpace(h))
		}
	})

	preferred := []func(string) bool{
		func(h string) bool { return strings.HasPrefix(h, "/ads.php?md5=") || strings.HasPrefix(h, "/get.php?md5=") },
		func(h string) bool {
			return strings.Contains(h, "library.lol/main/") || strings.Contains(h, "randombook.org/book/") ||
				strings.Contains(h, "annas-archive") || strings.Contains(h, "bookfi.net/md5/")
		},
		func(h string) bool {
			return strings.HasPrefix(h, "http") && (strings.Contains(h, "/ads.php?md5=") || strings.Contains(h, "/get.php?md5="))
		},
		func(h string) bool { return strings.HasPrefix(h, "http") && strings.Contains(strings.ToLower(h), md5) },
	}
	for _, match := range preferred {
		for _, h := range hrefs {
			if match(h) {
				if strings.HasPrefix(h, "/") {
					return base + h
				}
				return h
			}
		}
	}
	return base + "/ads.php?md5=" + md5
}

func findSize(row *goquery.Selection, column string) int64 {
	if n := indexers.ParseSize(column); n > 0 {
		return n
	}
	if m := sizePattern.FindString(row.Text()); m != "" {
		return indexers.ParseSize(strings.ReplaceAll(m, ",", "."))
	}
	return 0
}

func findExtension(row *goquery.Selection, column string) string {
	if extPattern.MatchString(column) {
		return strings.ToUpper(column)
	}
	ext := ""
	row.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		if v := strings.TrimSpace(td.Text()); extPattern.MatchString(v) {
			ext = strings.ToUpper(v)
			return false
		}
		return true
	})
	return indexers.FirstNonEmpty(ext, "PDF")
}

// truncateAuthors shortens long author lists to "First et al." for display.
// Lengths are counted in runes.
func truncateAuthors(author string) string {
	if utf8.RuneCountInString(author) <= maxDisplayAuthor {
		return author
	}
	for _, sep := range []string{";", " and ", ", "} {
		if strings.Contains(author, sep) {
			first := strings.TrimSpace(authorSuffix.ReplaceAllString(strings.Split(author, sep)[0], " "))
			return truncateRunes(first, maxDisplayAuthor-10) + " et al."
		}
	}
	return truncateRunes(author, maxDisplayAuthor-10) + " et al."
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func siteRoot(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}
