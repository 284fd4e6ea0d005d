// Package activities provides the Temporal activities of the maintenance
// workflow.
//
// Activity inputs and outputs cross the Temporal serialization boundary, so
// every field is exported and JSON encodable.
package activities

import (
	"time"

	"github.com/helixir/paper-acquisition-service/internal/priority"
)

// PurgeHealthEventsInput contains the parameters for the purge activity.
type PurgeHealthEventsInput struct {
	// Cutoff deletes events recorded before it. Nil applies the configured
	// retention window.
	Cutoff *time.Time
}

// PurgeHealthEventsOutput contains the result of the purge activity.
type PurgeHealthEventsOutput struct {
	DeletedCount int64
}

// AdjustPrioritiesOutput contains the result of the priority activity.
type AdjustPrioritiesOutput struct {
	// Skipped is set when another adjustment held the lock.
	Skipped bool

	// Enabled is false when automatic adjustment is switched off.
	Enabled bool

	Scored  int
	Changes []priority.Change
}
