// Package domain provides the canonical record model shared by every
// component of the Paper Acquisition Service.
package domain

// Protocol identifies how a release is transferred once accepted.
// These values must match the database enum release_protocol.
type Protocol string

const (
	ProtocolHTTP    Protocol = "http"
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// IsValid returns true if the protocol is one of the known values.
func (p Protocol) IsValid() bool {
	switch p {
	case ProtocolHTTP, ProtocolTorrent, ProtocolUsenet:
		return true
	default:
		return false
	}
}

// OperationKind identifies which core operation produced a health event.
// These values must match the database enum operation_kind.
type OperationKind string

const (
	OperationSearch   OperationKind = "search"
	OperationDownload OperationKind = "download"
)

// AllOperationKinds lists every operation kind in a stable order.
func AllOperationKinds() []OperationKind {
	return []OperationKind{OperationSearch, OperationDownload}
}

// IsValid returns true if the operation kind is known.
func (k OperationKind) IsValid() bool {
	return k == OperationSearch || k == OperationDownload
}

// ErrorKind classifies a failure recorded against a source.
// These values must match the health_events.error_kind check constraint.
type ErrorKind string

const (
	ErrorKindConnection        ErrorKind = "connection"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindAuth              ErrorKind = "auth"
	ErrorKindRateLimit         ErrorKind = "rate_limit"
	ErrorKindHTTP              ErrorKind = "http_error"
	ErrorKindProviderChallenge ErrorKind = "provider_challenge"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// IsValid returns true if the error kind is known.
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrorKindConnection, ErrorKindTimeout, ErrorKindAuth, ErrorKindRateLimit,
		ErrorKindHTTP, ErrorKindProviderChallenge, ErrorKindUnknown:
		return true
	default:
		return false
	}
}

// Outcome is the result recorded by a health event.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)
