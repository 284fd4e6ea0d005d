// Package health records per-source success and failure events and derives
// reliability statistics from them on read.
//
// The tracker keeps no counters: every statistic is computed from the
// retained event log, so concurrent appends from different dispatch tasks
// need no coordination beyond what the EventStore provides.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
	"github.com/helixir/paper-acquisition-service/internal/observability"
)

// Tracker records health events and answers statistics queries.
// It is safe for concurrent use.
type Tracker struct {
	store   EventStore
	sources SourceReader
	cfg     Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker. metrics may be nil.
func NewTracker(store EventStore, sources SourceReader, cfg Config, logger zerolog.Logger, metrics *observability.Metrics, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sources: sources,
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "health_tracker").Logger(),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns the effective tracker configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// RecordSuccess appends a success event for the source.
func (t *Tracker) RecordSuccess(ctx context.Context, sourceID int64, op domain.OperationKind) error {
	event := &domain.HealthEvent{
		ID:        uuid.New(),
		SourceID:  sourceID,
		Operation: op,
		Outcome:   domain.OutcomeSuccess,
		Timestamp: t.now(),
	}
	return t.append(ctx, event)
}

// RecordFailure appends a failure event for the source. httpStatus may be nil.
func (t *Tracker) RecordFailure(ctx context.Context, sourceID int64, op domain.OperationKind, kind domain.ErrorKind, message string, httpStatus *int) error {
	if !kind.IsValid() {
		kind = domain.ErrorKindUnknown
	}
	event := &domain.HealthEvent{
		ID:         uuid.New(),
		SourceID:   sourceID,
		Operation:  op,
		Outcome:    domain.OutcomeFailure,
		ErrorKind:  kind,
		HTTPStatus: httpStatus,
		Message:    message,
		Timestamp:  t.now(),
	}
	return t.append(ctx, event)
}

// RecordError classifies err and records it as a failure. A store error is
// logged rather than returned so that health bookkeeping never masks the
// original failure. The classification is returned for the caller's logs.
func (t *Tracker) RecordError(ctx context.Context, sourceID int64, op domain.OperationKind, err error) indexers.Classification {
	c := indexers.Classify(err)
	if recErr := t.RecordFailure(ctx, sourceID, op, c.Kind, c.Message, c.HTTPStatus); recErr != nil {
		t.logger.Error().
			Err(recErr).
			Int64("source_id", sourceID).
			Str("operation", string(op)).
			Msg("failed to record health failure")
	}
	return c
}

func (t *Tracker) append(ctx context.Context, event *domain.HealthEvent) error {
	if !event.Operation.IsValid() {
		return domain.NewValidationError("operation", fmt.Sprintf("unknown operation kind %q", event.Operation))
	}
	if err := t.store.Append(ctx, event); err != nil {
		return fmt.Errorf("appending health event: %w", err)
	}
	if t.metrics != nil {
		t.metrics.RecordHealthEvent(string(event.Operation), string(event.Outcome), string(event.ErrorKind))
	}
	return nil
}

// Statistics computes the statistics of one source.
func (t *Tracker) Statistics(ctx context.Context, sourceID int64) (*domain.Statistics, error) {
	src, err := t.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("loading source %d: %w", sourceID, err)
	}
	stats, err := t.statisticsFor(ctx, *src)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// AllStatistics computes statistics for every configured source.
func (t *Tracker) AllStatistics(ctx context.Context) ([]domain.Statistics, error) {
	sources, err := t.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	out := make([]domain.Statistics, 0, len(sources))
	for _, src := range sources {
		stats, err := t.statisticsFor(ctx, src)
		if err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	return out, nil
}

func (t *Tracker) statisticsFor(ctx context.Context, src domain.Source) (domain.Statistics, error) {
	now := t.now()
	events, err := t.store.ListBySource(ctx, src.ID, now.Add(-t.cfg.Retention))
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("listing events for source %d: %w", src.ID, err)
	}
	return Compute(src, events, now, t.cfg), nil
}

// Failures returns one page of failure events and the total match count.
func (t *Tracker) Failures(ctx context.Context, filter domain.FailureFilter) ([]domain.HealthEvent, int64, error) {
	filter.Normalize()
	if filter.Operation != nil && !filter.Operation.IsValid() {
		return nil, 0, domain.NewValidationError("operation", fmt.Sprintf("unknown operation kind %q", *filter.Operation))
	}
	if filter.ErrorKind != nil && !filter.ErrorKind.IsValid() {
		return nil, 0, domain.NewValidationError("error_kind", fmt.Sprintf("unknown error kind %q", *filter.ErrorKind))
	}

	events, total, err := t.store.ListFailures(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("listing failures: %w", err)
	}
	return events, total, nil
}

// Purge deletes events older than cutoff. It is idempotent and may run
// concurrently with appends.
func (t *Tracker) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := t.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging health events: %w", err)
	}

	if t.metrics != nil {
		t.metrics.RecordHealthEventsPurged(deleted)
	}
	t.logger.Info().
		Int64("deleted_count", deleted).
		Time("cutoff", cutoff).
		Msg("purged health events")
	return deleted, nil
}

// PurgeExpired deletes events older than the retention window.
func (t *Tracker) PurgeExpired(ctx context.Context) (int64, error) {
	return t.Purge(ctx, t.now().Add(-t.cfg.Retention))
}
