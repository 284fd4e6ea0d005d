// Package maintenance runs the periodic housekeeping jobs of the service:
// purging expired health events and recomputing source priorities.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-acquisition-service/internal/database"
	"github.com/helixir/paper-acquisition-service/internal/priority"
)

// ErrAdjustmentInProgress is returned when another process holds the
// priority adjustment lock.
var ErrAdjustmentInProgress = errors.New("priority adjustment already in progress")

// Locker runs fn inside a transaction guarded by a transaction-scoped
// advisory lock. It reports false without calling fn when the lock is held.
type Locker interface {
	TryWithAdvisoryLock(ctx context.Context, key int64, fn func(tx pgx.Tx) error) (bool, error)
}

// Purger deletes health events.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// AdjusterFunc builds a priority adjuster whose source writes go through db.
type AdjusterFunc func(db database.DBTX) *priority.Adjuster

// Service runs maintenance jobs.
type Service struct {
	locker      Locker
	purger      Purger
	newAdjuster AdjusterFunc
	logger      zerolog.Logger
}

// NewService creates a maintenance service.
func NewService(locker Locker, purger Purger, newAdjuster AdjusterFunc, logger zerolog.Logger) *Service {
	return &Service{
		locker:      locker,
		purger:      purger,
		newAdjuster: newAdjuster,
		logger:      logger.With().Str("component", "maintenance").Logger(),
	}
}

// PurgeHealthEvents deletes health events older than cutoff, or older than
// the configured retention when cutoff is nil.
func (s *Service) PurgeHealthEvents(ctx context.Context, cutoff *time.Time) (int64, error) {
	if cutoff == nil {
		return s.purger.PurgeExpired(ctx)
	}
	return s.purger.Purge(ctx, *cutoff)
}

// AdjustPriorities recomputes source priorities. Only one process runs the
// recompute at a time; concurrent callers get ErrAdjustmentInProgress.
func (s *Service) AdjustPriorities(ctx context.Context) (*priority.Result, error) {
	var result *priority.Result
	acquired, err := s.locker.TryWithAdvisoryLock(ctx, database.PriorityAdjustmentLockKey, func(tx pgx.Tx) error {
		r, err := s.newAdjuster(tx).Adjust(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adjusting priorities: %w", err)
	}
	if !acquired {
		s.logger.Info().Msg("priority adjustment skipped, lock held by another process")
		return nil, ErrAdjustmentInProgress
	}
	return result, nil
}
