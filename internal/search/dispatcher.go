// Package search fans a criteria out to every eligible source, aggregates
// the candidates they return and turns them into ranked decisions.
//
// Per-source failures are caught at the dispatcher boundary: they are
// classified, recorded with the health tracker and treated as zero
// candidates from that source. They never cancel or delay sibling sources.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
	"github.com/helixir/paper-acquisition-service/internal/observability"
	"github.com/helixir/paper-acquisition-service/internal/ratelimit"
)

// SourceLister returns the current source definitions.
type SourceLister interface {
	List(ctx context.Context) ([]domain.Source, error)
}

// AdapterFactory builds the adapter of a source.
type AdapterFactory interface {
	New(src domain.Source) (indexers.Adapter, error)
}

// HealthRecorder receives the outcome of every source search.
type HealthRecorder interface {
	RecordSuccess(ctx context.Context, sourceID int64, op domain.OperationKind) error
	RecordError(ctx context.Context, sourceID int64, op domain.OperationKind, err error) indexers.Classification
}

// Decider evaluates aggregated releases.
type Decider interface {
	Decide(ctx context.Context, releases []domain.Release, criteria *domain.SearchCriteria) []domain.Decision
}

// BookMarker stamps the last search time of catalog items.
type BookMarker interface {
	MarkSearched(ctx context.Context, bookIDs []int64, at time.Time) error
}

// Dispatcher runs searches. It holds no per-search state and is safe for
// concurrent use.
type Dispatcher struct {
	sources SourceLister
	factory AdapterFactory
	fetcher indexers.Fetcher
	gate    *ratelimit.HostGate
	decider Decider
	health  HealthRecorder
	books   BookMarker
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Deps groups the dispatcher's collaborators. Books and Metrics may be nil.
type Deps struct {
	Sources SourceLister
	Factory AdapterFactory
	Fetcher indexers.Fetcher
	Gate    *ratelimit.HostGate
	Decider Decider
	Health  HealthRecorder
	Books   BookMarker
	Metrics *observability.Metrics
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(deps Deps, logger zerolog.Logger) *Dispatcher {
	gate := deps.Gate
	if gate == nil {
		gate = ratelimit.NewHostGate()
	}
	return &Dispatcher{
		sources: deps.Sources,
		factory: deps.Factory,
		fetcher: deps.Fetcher,
		gate:    gate,
		decider: deps.Decider,
		health:  deps.Health,
		books:   deps.Books,
		logger:  logger.With().Str("component", "search_dispatcher").Logger(),
		metrics: deps.Metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// sourceResult is the outcome of one source's task.
type sourceResult struct {
	source   domain.Source
	releases []domain.Release
	skipped  int
	queried  bool
	err      error
}

// Search dispatches criteria to every eligible source and returns the
// deduplicated decisions, best first. A search with no eligible source
// returns an empty list, not an error.
func (d *Dispatcher) Search(ctx context.Context, criteria *domain.SearchCriteria) ([]domain.Decision, error) {
	if criteria == nil {
		return nil, domain.NewValidationError("criteria", "must not be nil")
	}

	searchID := uuid.NewString()
	ctx = observability.WithSearchID(ctx, searchID)
	logger := observability.WithSearchContext(d.logger, searchID, criteria.InteractiveSearch)

	all, err := d.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	eligible := Eligible(all, criteria)
	if len(eligible) == 0 {
		logger.Info().Msg("no eligible sources for search")
		return []domain.Decision{}, nil
	}

	results := d.fanOut(ctx, eligible, func(adapter indexers.Adapter) ([]indexers.Request, error) {
		return adapter.BuildSearchRequest(criteria)
	})

	var (
		releases []domain.Release
		queried  int
	)
	for _, r := range results {
		if r.queried {
			queried++
		}
		releases = append(releases, r.releases...)
	}

	decisions := Deduplicate(d.decider.Decide(ctx, releases, criteria))
	Rank(decisions)

	if queried > 0 {
		d.markSearched(ctx, logger, criteria)
	}

	logger.Info().
		Int("sources", len(eligible)).
		Int("queried", queried).
		Int("releases", len(releases)).
		Int("decisions", len(decisions)).
		Msg("search completed")
	return decisions, nil
}

// Recent fetches the listing feed of every enabled source that supports one
// and returns the releases without decisioning.
func (d *Dispatcher) Recent(ctx context.Context) ([]domain.Release, error) {
	all, err := d.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	var sources []domain.Source
	for _, src := range all {
		if src.Enabled && src.SupportsListing {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		return []domain.Release{}, nil
	}

	results := d.fanOut(ctx, sources, func(adapter indexers.Adapter) ([]indexers.Request, error) {
		req, err := adapter.BuildListingRequest()
		if errors.Is(err, indexers.ErrListingUnsupported) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []indexers.Request{*req}, nil
	})

	releases := make([]domain.Release, 0)
	for _, r := range results {
		releases = append(releases, r.releases...)
	}
	return releases, nil
}

// buildFunc describes the requests a source task sends.
type buildFunc func(adapter indexers.Adapter) ([]indexers.Request, error)

// fanOut launches one task per source and waits for all of them. Results
// are returned in source order regardless of completion order.
func (d *Dispatcher) fanOut(ctx context.Context, sources []domain.Source, build buildFunc) []sourceResult {
	resultChan := make(chan sourceResult, len(sources))
	var wg sync.WaitGroup

	for _, src := range sources {
		wg.Add(1)
		go func(s domain.Source) {
			defer wg.Done()
			resultChan <- d.searchSource(ctx, s, build)
		}(src)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]sourceResult, 0, len(sources))
	for r := range resultChan {
		results = append(results, r)
	}

	slices.SortFunc(results, func(a, b sourceResult) int {
		if a.source.Priority != b.source.Priority {
			return a.source.Priority - b.source.Priority
		}
		return cmp.Compare(a.source.ID, b.source.ID)
	})
	return results
}

// searchSource runs one source's requests. A panic inside an adapter is
// converted to an error so that it is recorded like any other failure.
func (d *Dispatcher) searchSource(ctx context.Context, src domain.Source, build buildFunc) (result sourceResult) {
	result.source = src
	logger := observability.WithSourceContext(d.logger, src.ID, src.Name)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			result.releases = nil
			result.queried = true
			result.err = fmt.Errorf("adapter %s panicked: %v", src.Name, p)
		}
		d.report(ctx, logger, &result, time.Since(start))
	}()

	adapter, err := d.factory.New(src)
	if err != nil {
		result.queried = true
		result.err = err
		return result
	}

	reqs, err := build(adapter)
	if err != nil {
		result.queried = true
		result.err = fmt.Errorf("building requests: %w", err)
		return result
	}
	if len(reqs) == 0 {
		return result
	}
	result.queried = true

	var (
		firstErr  error
		succeeded int
	)
	for _, req := range reqs {
		releases, skipped, err := d.execute(ctx, src, adapter, req)
		result.skipped += skipped
		if err != nil {
			logger.Debug().Err(err).Str("kind", req.Kind).Msg("source request failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded++
		result.releases = append(result.releases, releases...)
	}

	// A source with several mirrors or query variants has succeeded when
	// any one request did.
	if succeeded == 0 {
		result.err = firstErr
	}
	return result
}

func (d *Dispatcher) execute(ctx context.Context, src domain.Source, adapter indexers.Adapter, req indexers.Request) ([]domain.Release, int, error) {
	host := ratelimit.HostKey(req.URL)
	if err := d.gate.WaitAndPulse(ctx, host, src.RateLimitInterval); err != nil {
		return nil, 0, fmt.Errorf("waiting for %s: %w", host, err)
	}

	start := time.Now()
	resp, err := d.fetcher.Fetch(ctx, req)
	if d.metrics != nil {
		d.metrics.RecordSourceRequest(host, req.Kind, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, 0, err
	}

	entries, err := adapter.Parse(resp)
	if err != nil {
		return nil, 0, err
	}

	releases := indexers.Releases(entries)
	for i := range releases {
		stamp(&releases[i], src)
	}
	return releases, indexers.Skipped(entries), nil
}

// report records the source outcome with the health tracker and metrics.
func (d *Dispatcher) report(ctx context.Context, logger zerolog.Logger, r *sourceResult, elapsed time.Duration) {
	if !r.queried {
		return
	}
	if d.metrics != nil {
		d.metrics.RecordSearchStarted(r.source.Name)
	}

	if r.err == nil {
		if err := d.health.RecordSuccess(ctx, r.source.ID, domain.OperationSearch); err != nil {
			logger.Error().Err(err).Msg("failed to record search success")
		}
		if d.metrics != nil {
			d.metrics.RecordSearchCompleted(r.source.Name, len(r.releases), r.skipped, elapsed.Seconds())
		}
		return
	}

	c := d.health.RecordError(ctx, r.source.ID, domain.OperationSearch, r.err)
	if d.metrics != nil {
		d.metrics.RecordSearchFailed(r.source.Name, string(c.Kind), elapsed.Seconds())
		if c.Kind == domain.ErrorKindRateLimit {
			d.metrics.RecordSourceRateLimited(r.source.Name)
		}
	}
	logger.Warn().
		Err(r.err).
		Str("error_kind", string(c.Kind)).
		Dur("elapsed", elapsed).
		Msg("source search failed")
}

func (d *Dispatcher) markSearched(ctx context.Context, logger zerolog.Logger, criteria *domain.SearchCriteria) {
	ids := criteria.BookIDs()
	if d.books == nil || len(ids) == 0 {
		return
	}
	if err := d.books.MarkSearched(ctx, ids, d.now()); err != nil {
		logger.Error().Err(err).Ints64("book_ids", ids).Msg("failed to update last search time")
	}
}

// stamp copies the per-dispatch source snapshot onto a release.
func stamp(r *domain.Release, src domain.Source) {
	r.SourceID = src.ID
	r.SourceName = src.Name
	r.SourcePriority = src.Priority
	if r.Protocol == "" {
		r.Protocol = src.Protocol
	}
}
