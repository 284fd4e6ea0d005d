package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper acquisition service.
// Metrics are organized by subsystem: searches, source requests, decisions,
// health events, priorities and submissions. All collectors are registered
// via promauto with the default Prometheus registry.
type Metrics struct {
	// SearchesStarted counts dispatched source searches, labeled by source.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts source searches that returned a parsable response.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts source searches that failed, labeled by source and error kind.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes per-source search duration in seconds.
	SearchDuration *prometheus.HistogramVec

	// ReleasesPerSearch observes the number of releases a source contributed to one dispatch.
	ReleasesPerSearch *prometheus.HistogramVec

	// EntriesSkipped counts malformed entries dropped by adapters, labeled by source.
	EntriesSkipped *prometheus.CounterVec

	// SourceRequestsTotal counts outbound HTTP requests, labeled by host and request kind.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestDuration observes outbound HTTP request duration in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts 429 responses, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// DecisionsTotal counts decisions by verdict.
	DecisionsTotal *prometheus.CounterVec

	// RejectionsTotal counts rule rejections, labeled by rule.
	RejectionsTotal *prometheus.CounterVec

	// HealthEventsRecorded counts appended health events by operation, outcome and error kind.
	HealthEventsRecorded *prometheus.CounterVec

	// HealthEventsPurged counts events deleted by housekeeping.
	HealthEventsPurged prometheus.Counter

	// PriorityAdjustments counts priority recompute runs by result (applied, disabled, failed).
	PriorityAdjustments *prometheus.CounterVec

	// PriorityChanges counts sources whose priority changed during a recompute.
	PriorityChanges prometheus.Counter

	// SubmissionsTotal counts download submissions by client and outcome.
	SubmissionsTotal *prometheus.CounterVec

	// SubmissionDuration observes submission duration in seconds.
	SubmissionDuration prometheus.Histogram

	// EventsPublished counts grabbed events published, labeled by result.
	EventsPublished *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of source searches started by source",
		}, []string{"source"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of source searches completed by source",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of source searches that failed by source and error kind",
		}, []string{"source", "error_kind"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of source searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),
		ReleasesPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "releases_per_search",
			Help:      "Number of releases returned per search by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}, []string{"source"}),
		EntriesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_skipped_total",
			Help:      "Total number of malformed source entries dropped by source",
		}, []string{"source"}),

		// Source requests
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of outbound source requests by host and kind",
		}, []string{"host", "kind"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of outbound source requests in seconds by host",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"host"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limited responses by source",
		}, []string{"source"}),

		// Decisions
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of release decisions by verdict",
		}, []string{"verdict"}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Total number of rule rejections by rule",
		}, []string{"rule"}),

		// Health
		HealthEventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_events_recorded_total",
			Help:      "Total number of health events recorded by operation, outcome and error kind",
		}, []string{"operation", "outcome", "error_kind"}),
		HealthEventsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_events_purged_total",
			Help:      "Total number of health events deleted by housekeeping",
		}),

		// Priorities
		PriorityAdjustments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "priority_adjustments_total",
			Help:      "Total number of priority recompute runs by result",
		}, []string{"result"}),
		PriorityChanges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "priority_changes_total",
			Help:      "Total number of source priority changes persisted",
		}),

		// Submissions
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of download submissions by client and outcome",
		}, []string{"client", "outcome"}),
		SubmissionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Duration of download submissions in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of grabbed events published by result",
		}, []string{"result"}),
	}
}

// RecordSearchStarted records that a source search has started.
func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

// RecordSearchCompleted records a successful source search.
func (m *Metrics) RecordSearchCompleted(source string, releaseCount, skipped int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.ReleasesPerSearch.WithLabelValues(source).Observe(float64(releaseCount))
	if skipped > 0 {
		m.EntriesSkipped.WithLabelValues(source).Add(float64(skipped))
	}
}

// RecordSearchFailed records a failed source search.
func (m *Metrics) RecordSearchFailed(source, errorKind string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(source, errorKind).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSourceRequest records an outbound HTTP request.
func (m *Metrics) RecordSourceRequest(host, kind string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(host, kind).Inc()
	m.SourceRequestDuration.WithLabelValues(host).Observe(durationSeconds)
}

// RecordSourceRateLimited records a rate-limited response.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordDecision records one decision and its rejecting rules.
func (m *Metrics) RecordDecision(verdict string, rules []string) {
	m.DecisionsTotal.WithLabelValues(verdict).Inc()
	for _, rule := range rules {
		m.RejectionsTotal.WithLabelValues(rule).Inc()
	}
}

// RecordHealthEvent records an appended health event.
func (m *Metrics) RecordHealthEvent(operation, outcome, errorKind string) {
	m.HealthEventsRecorded.WithLabelValues(operation, outcome, errorKind).Inc()
}

// RecordHealthEventsPurged records events deleted by housekeeping.
func (m *Metrics) RecordHealthEventsPurged(count int64) {
	m.HealthEventsPurged.Add(float64(count))
}

// RecordPriorityAdjustment records a recompute run and the number of changed sources.
func (m *Metrics) RecordPriorityAdjustment(result string, changed int) {
	m.PriorityAdjustments.WithLabelValues(result).Inc()
	m.PriorityChanges.Add(float64(changed))
}

// RecordSubmission records a download submission outcome.
func (m *Metrics) RecordSubmission(client, outcome string, durationSeconds float64) {
	m.SubmissionsTotal.WithLabelValues(client, outcome).Inc()
	m.SubmissionDuration.Observe(durationSeconds)
}

// RecordEventPublished records a grabbed-event publish attempt.
func (m *Metrics) RecordEventPublished(result string) {
	m.EventsPublished.WithLabelValues(result).Inc()
}
