package domain

import (
	"time"

	"github.com/google/uuid"
)

// HealthEvent is one append-only success or failure record for a source.
type HealthEvent struct {
	ID        uuid.UUID     `json:"id"`
	SourceID  int64         `json:"source_id"`
	Operation OperationKind `json:"operation"`
	Outcome   Outcome       `json:"outcome"`

	// ErrorKind, HTTPStatus and Message are set for failures only.
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	HTTPStatus *int      `json:"http_status,omitempty"`
	Message    string    `json:"message,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// IsFailure reports whether the event records a failure.
func (e *HealthEvent) IsFailure() bool {
	return e.Outcome == OutcomeFailure
}

// OperationStatistics summarises one operation kind over the rate window.
type OperationStatistics struct {
	Successes   int     `json:"successes"`
	Failures    int     `json:"failures"`
	FailureRate float64 `json:"failure_rate"`
}

// Statistics is derived on read from a source's retained event log.
type Statistics struct {
	SourceID   int64  `json:"source_id"`
	SourceName string `json:"source_name"`

	// TotalFailures counts every retained failure.
	TotalFailures int `json:"total_failures"`

	// RecentFailures counts failures inside the recent window (24h).
	RecentFailures int `json:"recent_failures"`

	// FailureRate is a percentage in [0, 100] over the rate window.
	FailureRate float64 `json:"failure_rate"`

	IsHealthy bool `json:"is_healthy"`

	LastFailure *time.Time `json:"last_failure,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`

	FailuresByOperation map[OperationKind]int                 `json:"failures_by_operation"`
	FailuresByErrorKind map[ErrorKind]int                     `json:"failures_by_error_kind"`
	Operations          map[OperationKind]OperationStatistics `json:"operations"`
}

// FailureFilter selects failure events for GetFailures.
type FailureFilter struct {
	SourceID  int64
	Since     *time.Time
	Operation *OperationKind
	ErrorKind *ErrorKind
	Page      int
	PageSize  int
}

// Failure query paging defaults.
const (
	DefaultFailurePageSize = 50
	MaxFailurePageSize     = 500
)

// Normalize applies paging defaults and bounds.
func (f *FailureFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultFailurePageSize
	}
	if f.PageSize > MaxFailurePageSize {
		f.PageSize = MaxFailurePageSize
	}
}

// Offset returns the row offset of the current page.
func (f *FailureFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
