package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/helixir/paper-acquisition-service/internal/maintenance"
	"github.com/helixir/paper-acquisition-service/internal/priority"
)

// Maintainer runs the maintenance operations.
type Maintainer interface {
	PurgeHealthEvents(ctx context.Context, cutoff *time.Time) (int64, error)
	AdjustPriorities(ctx context.Context) (*priority.Result, error)
}

// MaintenanceActivities provides the maintenance workflow's activities.
// Methods on this struct are registered as Temporal activities via the worker.
type MaintenanceActivities struct {
	maintainer Maintainer
}

// NewMaintenanceActivities creates a new MaintenanceActivities instance.
func NewMaintenanceActivities(maintainer Maintainer) *MaintenanceActivities {
	return &MaintenanceActivities{maintainer: maintainer}
}

// PurgeHealthEvents deletes health events older than the input cutoff.
func (a *MaintenanceActivities) PurgeHealthEvents(ctx context.Context, input PurgeHealthEventsInput) (*PurgeHealthEventsOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("purging health events", "hasCutoff", input.Cutoff != nil)

	deleted, err := a.maintainer.PurgeHealthEvents(ctx, input.Cutoff)
	if err != nil {
		logger.Error("failed to purge health events", "error", err)
		return nil, fmt.Errorf("purge health events: %w", err)
	}

	logger.Info("health events purged", "deletedCount", deleted)
	return &PurgeHealthEventsOutput{DeletedCount: deleted}, nil
}

// AdjustPriorities recomputes source priorities. An adjustment already in
// progress elsewhere is reported as skipped rather than failed, so Temporal
// does not retry it.
func (a *MaintenanceActivities) AdjustPriorities(ctx context.Context) (*AdjustPrioritiesOutput, error) {
	logger := activity.GetLogger(ctx)

	result, err := a.maintainer.AdjustPriorities(ctx)
	if errors.Is(err, maintenance.ErrAdjustmentInProgress) {
		logger.Info("priority adjustment skipped, lock held elsewhere")
		return &AdjustPrioritiesOutput{Skipped: true, Changes: []priority.Change{}}, nil
	}
	if err != nil {
		logger.Error("failed to adjust priorities", "error", err)
		return nil, fmt.Errorf("adjust priorities: %w", err)
	}

	logger.Info("priorities adjusted",
		"enabled", result.Enabled,
		"scored", result.Scored,
		"changes", len(result.Changes),
	)
	return &AdjustPrioritiesOutput{
		Enabled: result.Enabled,
		Scored:  result.Scored,
		Changes: result.Changes,
	}, nil
}
