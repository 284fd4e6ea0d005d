package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_acquisition_new")

	assert.NotNil(t, m.SearchesStarted)
	assert.NotNil(t, m.SearchesCompleted)
	assert.NotNil(t, m.SearchesFailed)
	assert.NotNil(t, m.SearchDuration)
	assert.NotNil(t, m.SourceRequestsTotal)
	assert.NotNil(t, m.DecisionsTotal)
	assert.NotNil(t, m.HealthEventsRecorded)
	assert.NotNil(t, m.HealthEventsPurged)
	assert.NotNil(t, m.PriorityAdjustments)
	assert.NotNil(t, m.SubmissionsTotal)
	assert.NotNil(t, m.EventsPublished)
}

func TestRecordSearchStarted(t *testing.T) {
	m := NewMetrics("test_search_started")

	m.RecordSearchStarted("arXiv")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesStarted.WithLabelValues("arXiv")))
}

func TestRecordSearchCompleted(t *testing.T) {
	m := NewMetrics("test_search_completed")

	m.RecordSearchCompleted("arXiv", 12, 2, 0.8)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesCompleted.WithLabelValues("arXiv")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EntriesSkipped.WithLabelValues("arXiv")))

	m.RecordSearchCompleted("DOAJ", 3, 0, 0.1)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.EntriesSkipped.WithLabelValues("DOAJ")))
}

func TestRecordSearchFailed(t *testing.T) {
	m := NewMetrics("test_search_failed")

	m.RecordSearchFailed("Sci-Hub", "provider_challenge", 1.2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesFailed.WithLabelValues("Sci-Hub", "provider_challenge")))
}

func TestRecordSourceRequest(t *testing.T) {
	m := NewMetrics("test_source_request")

	m.RecordSourceRequest("export.arxiv.org", "book", 0.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequestsTotal.WithLabelValues("export.arxiv.org", "book")))
}

func TestRecordSourceRateLimited(t *testing.T) {
	m := NewMetrics("test_source_rate_limited")

	m.RecordSourceRateLimited("CORE")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRateLimited.WithLabelValues("CORE")))
}

func TestRecordDecision(t *testing.T) {
	m := NewMetrics("test_decision")

	m.RecordDecision("reject", []string{"identity", "requested_item"})
	m.RecordDecision("accept", nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("reject")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("accept")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("identity")))
}

func TestRecordHealthEvent(t *testing.T) {
	m := NewMetrics("test_health_event")

	m.RecordHealthEvent("search", "failure", "timeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HealthEventsRecorded.WithLabelValues("search", "failure", "timeout")))

	m.RecordHealthEventsPurged(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.HealthEventsPurged))
}

func TestRecordPriorityAdjustment(t *testing.T) {
	m := NewMetrics("test_priority_adjustment")

	m.RecordPriorityAdjustment("applied", 3)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PriorityAdjustments.WithLabelValues("applied")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PriorityChanges))
}

func TestRecordSubmission(t *testing.T) {
	m := NewMetrics("test_submission")

	m.RecordSubmission("http", "success", 2.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("http", "success")))

	histCount, err := getHistogramSampleCount(m.SubmissionDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestRecordEventPublished(t *testing.T) {
	m := NewMetrics("test_event_published")

	m.RecordEventPublished("failed")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished.WithLabelValues("failed")))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
