package health

import (
	"time"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// Config holds the windows and thresholds statistics are computed with.
type Config struct {
	// Retention is how long events are kept before housekeeping purges them.
	Retention time.Duration

	// RecentWindow bounds "recent failures" and the challenge check.
	RecentWindow time.Duration

	// RateWindow bounds the failure-rate computation.
	RateWindow time.Duration

	// FailureRateThreshold is the percentage at or above which a source is unhealthy.
	FailureRateThreshold float64
}

// DefaultConfig returns the production windows.
func DefaultConfig() Config {
	return Config{
		Retention:            30 * 24 * time.Hour,
		RecentWindow:         24 * time.Hour,
		RateWindow:           7 * 24 * time.Hour,
		FailureRateThreshold: 20.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = d.RecentWindow
	}
	if c.RateWindow <= 0 {
		c.RateWindow = d.RateWindow
	}
	if c.FailureRateThreshold <= 0 {
		c.FailureRateThreshold = d.FailureRateThreshold
	}
	return c
}

// Compute derives statistics from a source's retained events as of now.
// Events older than the retention window are ignored even if not yet purged.
func Compute(src domain.Source, events []domain.HealthEvent, now time.Time, cfg Config) domain.Statistics {
	cfg = cfg.withDefaults()

	retainedSince := now.Add(-cfg.Retention)
	recentSince := now.Add(-cfg.RecentWindow)
	rateSince := now.Add(-cfg.RateWindow)

	stats := domain.Statistics{
		SourceID:            src.ID,
		SourceName:          src.Name,
		FailuresByOperation: make(map[domain.OperationKind]int),
		FailuresByErrorKind: make(map[domain.ErrorKind]int),
		Operations:          make(map[domain.OperationKind]domain.OperationStatistics),
	}

	var (
		windowFailures  int
		windowSuccesses int
		recentChallenge bool
	)

	for i := range events {
		e := &events[i]
		if e.Timestamp.Before(retainedSince) {
			continue
		}
		inRate := !e.Timestamp.Before(rateSince)
		op := stats.Operations[e.Operation]

		if !e.IsFailure() {
			stats.LastSuccess = latest(stats.LastSuccess, e.Timestamp)
			if inRate {
				windowSuccesses++
				op.Successes++
				stats.Operations[e.Operation] = op
			}
			continue
		}

		stats.TotalFailures++
		stats.FailuresByOperation[e.Operation]++
		stats.FailuresByErrorKind[e.ErrorKind]++
		stats.LastFailure = latest(stats.LastFailure, e.Timestamp)

		if !e.Timestamp.Before(recentSince) {
			stats.RecentFailures++
			if e.ErrorKind == domain.ErrorKindProviderChallenge {
				recentChallenge = true
			}
		}
		if inRate {
			windowFailures++
			op.Failures++
			stats.Operations[e.Operation] = op
		}
	}

	for kind, op := range stats.Operations {
		op.FailureRate = failureRate(op.Failures, op.Successes)
		stats.Operations[kind] = op
	}

	stats.FailureRate = failureRate(windowFailures, windowSuccesses)
	stats.IsHealthy = stats.FailureRate < cfg.FailureRateThreshold && !recentChallenge
	return stats
}

// failureRate returns failures as a percentage of all operations, or 0 when
// nothing was recorded.
func failureRate(failures, successes int) float64 {
	total := failures + successes
	if total == 0 {
		return 0
	}
	return float64(failures) / float64(total) * 100
}

func latest(current *time.Time, t time.Time) *time.Time {
	if current == nil || t.After(*current) {
		v := t
		return &v
	}
	return current
}
