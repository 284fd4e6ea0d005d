// Package priority recomputes source priorities from health statistics
// using a Bayesian reliability score.
package priority

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/observability"
)

// Bayesian prior: sources are believed 95% reliable, weighted as if 100
// operations had been observed.
const (
	priorReliability = 0.95
	priorWeight      = 100.0

	recentFailurePenalty = 0.01
	unhealthyFactor      = 0.8
)

// SourceStore reads sources and persists priority changes.
type SourceStore interface {
	List(ctx context.Context) ([]domain.Source, error)
	UpdatePriority(ctx context.Context, id int64, priority int) error
}

// StatisticsProvider computes per-source statistics.
type StatisticsProvider interface {
	Statistics(ctx context.Context, sourceID int64) (*domain.Statistics, error)
}

// Config configures the adjuster.
type Config struct {
	// AutoAdjust turns the adjuster into a no-op when false.
	AutoAdjust bool

	// MaxPriority caps assigned priorities.
	MaxPriority int
}

// Change is one persisted priority update.
type Change struct {
	SourceID    int64   `json:"source_id"`
	SourceName  string  `json:"source_name"`
	OldPriority int     `json:"old_priority"`
	NewPriority int     `json:"new_priority"`
	Score       float64 `json:"score"`
}

// Result summarises one recompute.
type Result struct {
	Enabled bool     `json:"enabled"`
	Scored  int      `json:"scored"`
	Skipped int      `json:"skipped"`
	Changes []Change `json:"changes"`
}

// Adjuster is the single writer of source priorities.
type Adjuster struct {
	sources SourceStore
	stats   StatisticsProvider
	cfg     Config
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewAdjuster creates an adjuster. metrics may be nil.
func NewAdjuster(sources SourceStore, stats StatisticsProvider, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Adjuster {
	if cfg.MaxPriority <= 0 {
		cfg.MaxPriority = domain.MaxPriority
	}
	return &Adjuster{
		sources: sources,
		stats:   stats,
		cfg:     cfg,
		logger:  logger.With().Str("component", "priority_adjuster").Logger(),
		metrics: metrics,
	}
}

type scored struct {
	source domain.Source
	stats  domain.Statistics
	score  float64
}

// Adjust recomputes every enabled source's priority and persists the ones
// that changed. Running it twice without new health events changes nothing
// the second time.
func (a *Adjuster) Adjust(ctx context.Context) (*Result, error) {
	if !a.cfg.AutoAdjust {
		a.logger.Debug().Msg("automatic priority adjustment disabled")
		if a.metrics != nil {
			a.metrics.RecordPriorityAdjustment("disabled", 0)
		}
		return &Result{Changes: []Change{}}, nil
	}

	result, err := a.adjust(ctx)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordPriorityAdjustment("failed", 0)
		}
		return nil, err
	}
	if a.metrics != nil {
		a.metrics.RecordPriorityAdjustment("applied", len(result.Changes))
	}
	return result, nil
}

func (a *Adjuster) adjust(ctx context.Context) (*Result, error) {
	sources, err := a.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	result := &Result{Enabled: true, Changes: []Change{}}
	var entries []scored
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		stats, err := a.stats.Statistics(ctx, src.ID)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Int64("source_id", src.ID).
				Str("source", src.Name).
				Msg("skipping source without statistics")
			result.Skipped++
			continue
		}
		entries = append(entries, scored{source: src, stats: *stats, score: Score(stats)})
	}

	order(entries)

	result.Scored = len(entries)
	for i, e := range entries {
		next := min(i+1, a.cfg.MaxPriority)
		if next == e.source.Priority {
			continue
		}
		if err := a.sources.UpdatePriority(ctx, e.source.ID, next); err != nil {
			return nil, fmt.Errorf("updating priority of source %d: %w", e.source.ID, err)
		}
		a.logger.Info().
			Int64("source_id", e.source.ID).
			Str("source", e.source.Name).
			Int("old_priority", e.source.Priority).
			Int("new_priority", next).
			Float64("score", e.score).
			Msg("source priority changed")
		result.Changes = append(result.Changes, Change{
			SourceID:    e.source.ID,
			SourceName:  e.source.Name,
			OldPriority: e.source.Priority,
			NewPriority: next,
			Score:       e.score,
		})
	}
	return result, nil
}

// EstimatedOperations estimates how many operations produced the observed
// failures.
func EstimatedOperations(stats *domain.Statistics) float64 {
	failures := float64(stats.TotalFailures)
	switch {
	case stats.TotalFailures > 0 && stats.FailureRate > 0:
		return failures * 100 / stats.FailureRate
	case stats.TotalFailures > 0:
		return max(failures*10, 100)
	default:
		return 100
	}
}

// Score returns the reliability score of a source in [0, 1].
func Score(stats *domain.Statistics) float64 {
	ops := EstimatedOperations(stats)
	observed := max(0, ops-float64(stats.TotalFailures)) / ops

	score := (priorReliability*priorWeight + observed*ops) / (priorWeight + ops)
	score = max(0, score-recentFailurePenalty*float64(stats.RecentFailures))
	if !stats.IsHealthy {
		score *= unhealthyFactor
	}
	return score
}

// order sorts scored sources best first. Sources without any recorded
// failure always precede sources with failures; the rest is ordered by
// score, then fewer recent failures, then fewer total failures, then id.
func order(entries []scored) {
	slices.SortStableFunc(entries, func(a, b scored) int {
		aClean, bClean := a.stats.TotalFailures == 0, b.stats.TotalFailures == 0
		if aClean != bClean {
			if aClean {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.stats.RecentFailures, b.stats.RecentFailures); c != 0 {
			return c
		}
		if c := cmp.Compare(a.stats.TotalFailures, b.stats.TotalFailures); c != 0 {
			return c
		}
		return cmp.Compare(a.source.ID, b.source.ID)
	})
}
