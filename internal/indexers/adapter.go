// Package indexers defines the source adapter contract and the plumbing
// shared by every adapter: outbound request descriptions, the HTTP fetcher,
// proxy envelope handling, response status checks and failure classification.
//
// An adapter never performs I/O itself. It describes the requests it needs,
// and it turns raw responses into canonical releases:
//
//	reqs, err := adapter.BuildSearchRequest(criteria)
//	for _, req := range reqs {
//		resp, err := fetcher.Fetch(ctx, req)
//		results, err := adapter.Parse(resp)
//		releases := indexers.Releases(results)
//	}
package indexers

import (
	"errors"
	"net/http"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// ErrListingUnsupported is returned by BuildListingRequest for adapters that
// can only answer targeted lookups.
var ErrListingUnsupported = errors.New("listing not supported")

// Request kinds, used for logging and metrics labels.
const (
	KindListing = "listing"
	KindAuthor  = "author"
	KindBook    = "book"
	KindDOI     = "doi"
)

// Request describes one outbound HTTP call an adapter needs.
type Request struct {
	// Method defaults to GET when empty.
	Method string

	// URL is the absolute request URL.
	URL string

	// Headers are added to the outbound request.
	Headers map[string]string

	// Body is sent as-is for POST requests.
	Body []byte

	// Kind labels the request (listing, author, book, doi).
	Kind string
}

// Response is the raw result of fetching a Request.
type Response struct {
	Request    Request
	StatusCode int
	Header     http.Header
	Body       []byte

	// URL is the final URL after redirects or envelope unwrapping. Adapters
	// resolve relative links against it.
	URL string
}

// EntryResult is the per-entry outcome of parsing a response: either a
// release or the reason the entry was skipped. One bad entry never hides
// the rest of the batch.
type EntryResult struct {
	Release *domain.Release
	Err     error
}

// OK reports whether the entry produced a release.
func (r EntryResult) OK() bool {
	return r.Err == nil && r.Release != nil
}

// Accept wraps a parsed release, converting it into a skip when it lacks
// the guid or download URL every release must carry.
func Accept(index int, release domain.Release) EntryResult {
	if err := release.Validate(); err != nil {
		return Skip(index, err.Error())
	}
	return EntryResult{Release: &release}
}

// Skip records an entry that failed structural validation.
func Skip(index int, reason string) EntryResult {
	return EntryResult{Err: &domain.EntryParseError{Index: index, Reason: reason}}
}

// Releases returns the releases of all successful entries, in order. Entries
// that somehow carry an invalid release are dropped here as well.
func Releases(results []EntryResult) []domain.Release {
	out := make([]domain.Release, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			continue
		}
		if r.Release.Validate() != nil {
			continue
		}
		out = append(out, *r.Release)
	}
	return out
}

// Skipped counts the entries that were dropped.
func Skipped(results []EntryResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Adapter is implemented once per external source.
//
// Implementations must be safe for concurrent use: the dispatcher may reuse
// an adapter across dispatches. They must not perform network I/O.
type Adapter interface {
	// Name returns a human-readable name used in logs, metrics and guids.
	Name() string

	// BuildListingRequest returns the request for the source's most recent
	// items. Returns ErrListingUnsupported if the source has no such feed.
	BuildListingRequest() (*Request, error)

	// BuildSearchRequest returns the requests needed to answer criteria.
	// An empty slice means the source cannot serve this criteria.
	BuildSearchRequest(criteria *domain.SearchCriteria) ([]Request, error)

	// Parse canonicalizes a raw response. A non-success status yields an
	// error (typically *domain.FetchError); malformed entries yield skip
	// results without aborting the batch.
	Parse(resp *Response) ([]EntryResult, error)
}
