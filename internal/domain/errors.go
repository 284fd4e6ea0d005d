package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that a source throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrSourceFailed indicates that a source answered with a non-success status.
	ErrSourceFailed = errors.New("source request failed")

	// ErrProviderChallenge indicates an anti-automation page was served instead of content.
	ErrProviderChallenge = errors.New("provider challenge")

	// ErrTerminalSubmission marks submission errors that must not be reclassified.
	ErrTerminalSubmission = errors.New("terminal submission error")

	// ErrNotApproved indicates a rejected decision was submitted for download.
	ErrNotApproved = errors.New("decision not approved")

	// ErrServiceUnavailable indicates that a dependency is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// FetchError reports a non-success HTTP status from a source. It lets
// callers tell "source returned nothing" apart from "source failed".
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Source, e.StatusCode, e.Body)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *FetchError) Unwrap() error {
	return ErrSourceFailed
}

// ProviderChallengeError reports an anti-automation challenge (e.g. a
// Cloudflare interstitial) served in place of the expected payload.
type ProviderChallengeError struct {
	Source   string
	Provider string
}

// Error implements the error interface.
func (e *ProviderChallengeError) Error() string {
	return fmt.Sprintf("%s served a %s challenge", e.Source, e.Provider)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ProviderChallengeError) Unwrap() error {
	return ErrProviderChallenge
}

// EntryParseError describes one raw entry dropped from an otherwise good response.
type EntryParseError struct {
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *EntryParseError) Error() string {
	return fmt.Sprintf("entry %d skipped: %s", e.Index, e.Reason)
}

// TerminalReason enumerates submission outcomes that are never reclassified.
type TerminalReason string

const (
	ReasonReleaseUnavailable    TerminalReason = "release_unavailable"
	ReasonReleaseBlocked        TerminalReason = "release_blocked"
	ReasonClientRejectedRelease TerminalReason = "client_rejected_release"
)

// TerminalSubmissionError is raised when a release cannot be submitted and
// retrying or reclassifying would be meaningless.
type TerminalSubmissionError struct {
	Reason  TerminalReason
	Release string
	Message string
}

// Error implements the error interface.
func (e *TerminalSubmissionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Release)
	}
	return fmt.Sprintf("%s: %s: %s", e.Reason, e.Release, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *TerminalSubmissionError) Unwrap() error {
	return ErrTerminalSubmission
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewFetchError creates a new FetchError.
func NewFetchError(source, url string, statusCode int, body string) *FetchError {
	return &FetchError{
		Source:     source,
		URL:        url,
		StatusCode: statusCode,
		Body:       body,
	}
}

// NewProviderChallengeError creates a new ProviderChallengeError.
func NewProviderChallengeError(source, provider string) *ProviderChallengeError {
	return &ProviderChallengeError{
		Source:   source,
		Provider: provider,
	}
}

// NewTerminalSubmissionError creates a new TerminalSubmissionError.
func NewTerminalSubmissionError(reason TerminalReason, release, message string) *TerminalSubmissionError {
	return &TerminalSubmissionError{
		Reason:  reason,
		Release: release,
		Message: message,
	}
}

// IsTerminalSubmission reports whether err is a TerminalSubmissionError.
func IsTerminalSubmission(err error) bool {
	return errors.Is(err, ErrTerminalSubmission)
}
