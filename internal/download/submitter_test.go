package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/health"
	"github.com/helixir/paper-acquisition-service/internal/observability"
	"github.com/helixir/paper-acquisition-service/internal/ratelimit"
)

type fakeClient struct {
	info  ClientInfo
	jobID string
	err   error

	mu    sync.Mutex
	calls []domain.Release
}

func (c *fakeClient) Info() ClientInfo { return c.info }

func (c *fakeClient) Download(_ context.Context, release domain.Release) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, release)
	return c.jobID, c.err
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakePublisher struct {
	err    error
	events []*domain.GrabbedEvent
}

func (p *fakePublisher) Publish(_ context.Context, event *domain.GrabbedEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type fakeBlocklist struct {
	guids map[string]bool
}

func (b *fakeBlocklist) Blocklisted(_ context.Context, release domain.Release) (bool, error) {
	return b.guids[release.GUID], nil
}

type oneSource struct{ src domain.Source }

func (s oneSource) Get(_ context.Context, id int64) (*domain.Source, error) {
	if id != s.src.ID {
		return nil, domain.NewNotFoundError("source", fmt.Sprint(id))
	}
	src := s.src
	return &src, nil
}

func (s oneSource) List(context.Context) ([]domain.Source, error) {
	return []domain.Source{s.src}, nil
}

var metricsSeq atomic.Int64

type submitHarness struct {
	submitter *Submitter
	client    *fakeClient
	publisher *fakePublisher
	tracker   *health.Tracker
	store     *health.MemoryStore
	metrics   *observability.Metrics
}

func newSubmitHarness(t *testing.T, client *fakeClient, blocklist Blocklist) *submitHarness {
	t.Helper()
	if client.info.Name == "" {
		client.info = ClientInfo{ID: 1, Name: "fake", Protocol: domain.ProtocolHTTP, Enabled: true}
	}
	store := health.NewMemoryStore()
	tracker := health.NewTracker(store, oneSource{src: domain.Source{ID: 7, Name: "arxiv", Enabled: true}},
		health.DefaultConfig(), zerolog.Nop(), nil)
	metrics := observability.NewMetrics(fmt.Sprintf("test_download_%d", metricsSeq.Add(1)))
	publisher := &fakePublisher{}

	s := NewSubmitter(Deps{
		Clients:   NewRegistry(client),
		Gate:      ratelimit.NewHostGate(),
		Health:    tracker,
		Blocklist: blocklist,
		Publisher: publisher,
		Metrics:   metrics,
	}, Config{HostInterval: time.Hour}, zerolog.Nop())

	return &submitHarness{submitter: s, client: client, publisher: publisher, tracker: tracker, store: store, metrics: metrics}
}

func approved(guid, url string) *domain.Decision {
	d := domain.NewDecision(domain.Candidate{
		Release: domain.Release{
			GUID:        guid,
			Title:       "Doe - On Things",
			DownloadURL: url,
			Protocol:    domain.ProtocolHTTP,
			SourceID:    7,
			SourceName:  "arxiv",
		},
		Author: &domain.Author{ID: 1, Name: "Doe"},
		Books:  []domain.Book{{ID: 11}},
	}, nil)
	return &d
}

func TestSubmitter_Success(t *testing.T) {
	h := newSubmitHarness(t, &fakeClient{jobID: "job-42"}, nil)
	ctx := context.Background()

	event, err := h.submitter.Submit(ctx, approved("g1", "https://example.org/a.pdf"), nil)
	require.NoError(t, err)

	assert.Equal(t, "job-42", event.RemoteJobID)
	assert.Equal(t, "fake", event.ClientName)
	assert.Equal(t, int64(1), event.ClientID)
	assert.Equal(t, []int64{11}, event.BookIDs)
	assert.Equal(t, domain.EventTypeReleaseGrabbed, event.EventType)
	require.Len(t, h.publisher.events, 1)
	assert.Same(t, event, h.publisher.events[0])

	events, err := h.store.ListBySource(ctx, 7, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.OperationDownload, events[0].Operation)
	assert.Equal(t, domain.OutcomeSuccess, events[0].Outcome)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.SubmissionsTotal.WithLabelValues("fake", "grabbed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.EventsPublished.WithLabelValues("published")))
}

func TestSubmitter_RejectsUnapproved(t *testing.T) {
	h := newSubmitHarness(t, &fakeClient{}, nil)
	d := domain.NewDecision(approved("g1", "https://example.org/a.pdf").Candidate,
		[]domain.Rejection{{Rule: "identity", Reason: "Wrong author"}})

	_, err := h.submitter.Submit(context.Background(), &d, nil)
	require.ErrorIs(t, err, domain.ErrNotApproved)
	assert.Zero(t, h.client.callCount())
}

func TestSubmitter_ValidatesInput(t *testing.T) {
	h := newSubmitHarness(t, &fakeClient{}, nil)

	_, err := h.submitter.Submit(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.submitter.Submit(context.Background(), approved("g1", ""), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSubmitter_TerminalErrorsPropagateUnmodified(t *testing.T) {
	reasons := []domain.TerminalReason{
		domain.ReasonReleaseUnavailable,
		domain.ReasonClientRejectedRelease,
	}
	for _, reason := range reasons {
		t.Run(string(reason), func(t *testing.T) {
			terminal := domain.NewTerminalSubmissionError(reason, "g1", "")
			h := newSubmitHarness(t, &fakeClient{err: terminal}, nil)
			ctx := context.Background()

			_, err := h.submitter.Submit(ctx, approved("g1", "https://example.org/a.pdf"), nil)
			require.Error(t, err)
			assert.Same(t, terminal, err)

			assert.Zero(t, h.store.Len(), "terminal errors are not health failures")
			assert.Empty(t, h.publisher.events)
		})
	}
}

func TestSubmitter_BlocklistedRelease(t *testing.T) {
	h := newSubmitHarness(t, &fakeClient{}, &fakeBlocklist{guids: map[string]bool{"g1": true}})

	_, err := h.submitter.Submit(context.Background(), approved("g1", "https://example.org/a.pdf"), nil)

	var terminal *domain.TerminalSubmissionError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, domain.ReasonReleaseBlocked, terminal.Reason)
	assert.Zero(t, h.client.callCount())
	assert.Zero(t, h.store.Len())
}

func TestSubmitter_ClassifiesAndRecordsFailures(t *testing.T) {
	cause := domain.NewFetchError("arxiv", "https://example.org/a.pdf", 503, "")
	h := newSubmitHarness(t, &fakeClient{err: cause}, nil)
	ctx := context.Background()

	_, err := h.submitter.Submit(ctx, approved("g1", "https://example.org/a.pdf"), nil)
	require.Error(t, err)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr, "the original failure is re-raised")
	assert.False(t, domain.IsTerminalSubmission(err))

	failures, total, err := h.tracker.Failures(ctx, domain.FailureFilter{SourceID: 7})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, domain.OperationDownload, failures[0].Operation)
	assert.Equal(t, domain.ErrorKindHTTP, failures[0].ErrorKind)
	require.NotNil(t, failures[0].HTTPStatus)
	assert.Equal(t, 503, *failures[0].HTTPStatus)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.SubmissionsTotal.WithLabelValues("fake", "failed")))
}

func TestSubmitter_PublishFailureIsNotReturned(t *testing.T) {
	h := newSubmitHarness(t, &fakeClient{jobID: "j"}, nil)
	h.publisher.err = errors.New("broker down")

	event, err := h.submitter.Submit(context.Background(), approved("g1", "https://example.org/a.pdf"), nil)
	require.NoError(t, err)
	assert.NotNil(t, event)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.EventsPublished.WithLabelValues("failed")))
}

func TestSubmitter_PacesSubmissionsPerHost(t *testing.T) {
	h := newSubmitHarness(t, &fakeClient{}, nil)

	_, err := h.submitter.Submit(context.Background(), approved("g1", "https://example.org/a.pdf"), nil)
	require.NoError(t, err)

	t.Run("same host waits for the interval", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := h.submitter.Submit(ctx, approved("g2", "https://EXAMPLE.org/b.pdf"), nil)
		require.Error(t, err)
		assert.Equal(t, 1, h.client.callCount())
	})

	t.Run("other hosts are not delayed", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := h.submitter.Submit(ctx, approved("g3", "https://mirror.example.net/c.pdf"), nil)
		require.NoError(t, err)
	})

	t.Run("magnet links bypass the gate", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		for _, guid := range []string{"m1", "m2"} {
			_, err := h.submitter.Submit(ctx, approved(guid, "magnet:?xt=urn:btih:abc"), nil)
			require.NoError(t, err)
		}
	})
}

func TestSubmitter_ClientResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit client id", func(t *testing.T) {
		h := newSubmitHarness(t, &fakeClient{}, nil)
		id := int64(99)
		_, err := h.submitter.Submit(ctx, approved("g1", "https://example.org/a.pdf"), &id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("no client for protocol", func(t *testing.T) {
		h := newSubmitHarness(t, &fakeClient{}, nil)
		d := approved("g1", "https://example.org/a.torrent")
		d.Candidate.Release.Protocol = domain.ProtocolTorrent

		_, err := h.submitter.Submit(ctx, d, nil)
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})
}

func TestRegistry_ForRelease(t *testing.T) {
	tagged := &fakeClient{info: ClientInfo{ID: 1, Name: "tagged", Protocol: domain.ProtocolHTTP, Enabled: true, Priority: 1, Tags: []string{"physics"}}}
	general := &fakeClient{info: ClientInfo{ID: 2, Name: "general", Protocol: domain.ProtocolHTTP, Enabled: true, Priority: 5}}
	disabled := &fakeClient{info: ClientInfo{ID: 3, Name: "off", Protocol: domain.ProtocolHTTP, Priority: 0}}
	r := NewRegistry(tagged, general, disabled)

	c, err := r.ForRelease(domain.Release{}, []string{"physics"})
	require.NoError(t, err)
	assert.Equal(t, "tagged", c.Info().Name)

	c, err = r.ForRelease(domain.Release{Protocol: domain.ProtocolHTTP}, []string{"biology"})
	require.NoError(t, err)
	assert.Equal(t, "general", c.Info().Name)

	assert.Len(t, r.List(), 3)
	assert.Equal(t, int64(1), r.List()[0].ID)
}
