// Package observability provides logging, metrics, and context helpers for
// the paper acquisition service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Scope it to a source or a search:
//
//	logger = observability.WithSourceContext(logger, src.ID, src.Name)
//	logger = observability.WithSearchContext(logger, searchID, criteria.Interactive)
//
// # Metrics
//
//	metrics := observability.NewMetrics("acquisition")
//	metrics.RecordSearchCompleted("LibGen", 12, 1, time.Second)
//
// A nil *Metrics is accepted by every consumer in the service and disables
// recording.
//
// # Standard Fields
//
//   - request_id: API request identifier
//   - search_id: identifier of a fan-out search
//   - source_id, source: indexer source
//   - guid: release identifier
//   - trace_id, span_id: distributed trace identifiers
package observability
