// Package workflows contains the Temporal workflow definitions of the
// paper acquisition service.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	litemporal "github.com/helixir/paper-acquisition-service/internal/temporal"
	"github.com/helixir/paper-acquisition-service/internal/temporal/activities"
)

// MaintenanceWorkflowInput and MaintenanceWorkflowResult are shared with the
// client that starts the workflow.
type (
	MaintenanceWorkflowInput  = litemporal.MaintenanceWorkflowInput
	MaintenanceWorkflowResult = litemporal.MaintenanceWorkflowResult
)

const (
	purgeActivityTimeout  = 5 * time.Minute
	adjustActivityTimeout = 2 * time.Minute
)

// MaintenanceWorkflow purges expired health events and then recomputes
// source priorities. A failed purge is recorded in the result and does not
// prevent the adjustment; a failed adjustment fails the workflow.
func MaintenanceWorkflow(ctx workflow.Context, input MaintenanceWorkflowInput) (*MaintenanceWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("maintenance workflow started",
		"skipPurge", input.SkipPurge,
		"skipAdjust", input.SkipAdjust,
	)

	var act *activities.MaintenanceActivities
	result := &MaintenanceWorkflowResult{}

	if !input.SkipPurge {
		purgeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: purgeActivityTimeout,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    30 * time.Second,
				MaximumAttempts:    3,
			},
		})

		var out activities.PurgeHealthEventsOutput
		err := workflow.ExecuteActivity(purgeCtx, act.PurgeHealthEvents, activities.PurgeHealthEventsInput{
			Cutoff: input.Cutoff,
		}).Get(ctx, &out)
		if err != nil {
			logger.Warn("health event purge failed", "error", err)
			result.PurgeError = err.Error()
		} else {
			result.DeletedCount = out.DeletedCount
		}
	}

	if !input.SkipAdjust {
		adjustCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: adjustActivityTimeout,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    500 * time.Millisecond,
				BackoffCoefficient: 2.0,
				MaximumInterval:    10 * time.Second,
				MaximumAttempts:    5,
			},
		})

		var out activities.AdjustPrioritiesOutput
		if err := workflow.ExecuteActivity(adjustCtx, act.AdjustPriorities).Get(ctx, &out); err != nil {
			logger.Error("priority adjustment failed", "error", err)
			return nil, err
		}
		result.AdjustmentSkipped = out.Skipped
		result.Scored = out.Scored
		result.PriorityChanges = out.Changes
	}

	logger.Info("maintenance workflow completed",
		"deletedCount", result.DeletedCount,
		"priorityChanges", len(result.PriorityChanges),
		"adjustmentSkipped", result.AdjustmentSkipped,
	)
	return result, nil
}
