// Package decision evaluates candidate releases against a search criteria
// through a fixed chain of independent rules.
//
// A candidate is accepted only when every rule accepts. Every rejection is
// kept, both for diagnostics and because the dispatcher's duplicate
// resolution prefers candidates with fewer rejections.
package decision

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/observability"
)

// Config configures the engine.
type Config struct {
	// PreferRevisions enables the upgrade rule's revision tie-break.
	PreferRevisions bool
}

// Engine turns releases into decisions. It is safe for concurrent use.
type Engine struct {
	rules    []Rule
	resolver Resolver
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewEngine creates an engine with the default rule chain. metrics may be nil.
func NewEngine(resolver Resolver, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return NewEngineWithRules(resolver, DefaultRules(cfg.PreferRevisions), logger, metrics)
}

// NewEngineWithRules creates an engine with an explicit rule chain.
func NewEngineWithRules(resolver Resolver, rules []Rule, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		rules:    rules,
		resolver: resolver,
		logger:   logger.With().Str("component", "decision_engine").Logger(),
		metrics:  metrics,
	}
}

// Decide evaluates every release and returns one decision per release, in
// input order.
func (e *Engine) Decide(ctx context.Context, releases []domain.Release, criteria *domain.SearchCriteria) []domain.Decision {
	decisions := make([]domain.Decision, 0, len(releases))
	for i := range releases {
		decisions = append(decisions, e.decide(ctx, &releases[i], criteria))
	}
	return decisions
}

func (e *Engine) decide(ctx context.Context, release *domain.Release, criteria *domain.SearchCriteria) domain.Decision {
	candidate := domain.Candidate{
		Release: *release,
		Quality: domain.ParseQuality(release.Container, release.Title),
	}

	res, err := e.resolver.Resolve(ctx, release, criteria)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("guid", release.GUID).
			Str("source", release.SourceName).
			Msg("failed to resolve release")
		d := domain.NewDecision(candidate, []domain.Rejection{{Rule: "resolver", Reason: ReasonUnexpectedError}})
		e.record(&d)
		return d
	}
	candidate.Author = res.Author
	candidate.Books = res.Books

	var rejections []domain.Rejection
	for _, rule := range e.rules {
		ev := rule.Evaluate(&candidate, criteria)
		if ev.Accepted {
			continue
		}
		rejections = append(rejections, domain.Rejection{Rule: rule.Name(), Reason: ev.Reason})
	}

	d := domain.NewDecision(candidate, rejections)
	if len(rejections) > 0 {
		e.logger.Debug().
			Str("guid", release.GUID).
			Str("source", release.SourceName).
			Int("rejections", len(rejections)).
			Str("first_reason", rejections[0].Reason).
			Msg("release rejected")
	}
	e.record(&d)
	return d
}

func (e *Engine) record(d *domain.Decision) {
	if e.metrics == nil {
		return
	}
	rules := make([]string, 0, len(d.Rejections))
	for _, r := range d.Rejections {
		rules = append(rules, r.Rule)
	}
	e.metrics.RecordDecision(string(d.Verdict), rules)
}
