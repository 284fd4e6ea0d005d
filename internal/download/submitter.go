// Package download hands approved decisions to a download client.
//
// The Submitter owns the submission policy: per-host pacing of non-magnet
// URLs, blocklist checks, health reporting tagged as download operations
// and publication of a GrabbedEvent once a client accepted the release.
// Terminal submission errors reach the caller exactly as the client
// returned them.
package download

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
	"github.com/helixir/paper-acquisition-service/internal/observability"
	"github.com/helixir/paper-acquisition-service/internal/ratelimit"
)

// DefaultHostInterval is the minimum spacing of submissions to one host.
const DefaultHostInterval = 2 * time.Second

// HealthRecorder receives the outcome of every submission.
type HealthRecorder interface {
	RecordSuccess(ctx context.Context, sourceID int64, op domain.OperationKind) error
	RecordError(ctx context.Context, sourceID int64, op domain.OperationKind, err error) indexers.Classification
}

// Blocklist reports releases that were previously rejected for good.
type Blocklist interface {
	Blocklisted(ctx context.Context, release domain.Release) (bool, error)
}

// Config configures the submitter.
type Config struct {
	// HostInterval spaces submissions to the same host. Default: 2s.
	HostInterval time.Duration
}

// Deps groups the submitter's collaborators. Blocklist, Publisher and
// Metrics may be nil.
type Deps struct {
	Clients   ClientProvider
	Gate      *ratelimit.HostGate
	Health    HealthRecorder
	Blocklist Blocklist
	Publisher EventPublisher
	Metrics   *observability.Metrics
}

// Submitter submits decisions. It is safe for concurrent use.
type Submitter struct {
	clients   ClientProvider
	gate      *ratelimit.HostGate
	health    HealthRecorder
	blocklist Blocklist
	publisher EventPublisher
	cfg       Config
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewSubmitter creates a submitter.
func NewSubmitter(deps Deps, cfg Config, logger zerolog.Logger) *Submitter {
	if cfg.HostInterval <= 0 {
		cfg.HostInterval = DefaultHostInterval
	}
	gate := deps.Gate
	if gate == nil {
		gate = ratelimit.NewHostGate()
	}
	return &Submitter{
		clients:   deps.Clients,
		gate:      gate,
		health:    deps.Health,
		blocklist: deps.Blocklist,
		publisher: deps.Publisher,
		cfg:       cfg,
		logger:    logger.With().Str("component", "download_submitter").Logger(),
		metrics:   deps.Metrics,
	}
}

// Submit hands an approved decision to the client with clientID, or to the
// best client for the release protocol when clientID is nil. It returns
// the grabbed event on success.
func (s *Submitter) Submit(ctx context.Context, decision *domain.Decision, clientID *int64) (*domain.GrabbedEvent, error) {
	if decision == nil {
		return nil, domain.NewValidationError("decision", "must not be nil")
	}
	release := decision.Candidate.Release
	if err := release.Validate(); err != nil {
		return nil, err
	}
	if !decision.Approved() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotApproved, release.GUID)
	}

	client, err := s.resolveClient(decision, clientID)
	if err != nil {
		return nil, err
	}
	info := client.Info()
	logger := observability.WithReleaseContext(s.logger, release.GUID, release.SourceName).
		With().Str("client", info.Name).Logger()

	if s.blocklist != nil {
		blocked, err := s.blocklist.Blocklisted(ctx, release)
		if err != nil {
			return nil, fmt.Errorf("checking blocklist: %w", err)
		}
		if blocked {
			logger.Debug().Msg("release previously added to blocklist, not sending to download client again")
			s.recordOutcome(info.Name, "terminal", 0)
			return nil, domain.NewTerminalSubmissionError(domain.ReasonReleaseBlocked, release.GUID, "")
		}
	}

	if !release.IsMagnet() {
		host := ratelimit.HostKey(release.DownloadURL)
		if err := s.gate.WaitAndPulse(ctx, host, s.cfg.HostInterval); err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", host, err)
		}
	}

	start := time.Now()
	jobID, err := client.Download(ctx, release)
	elapsed := time.Since(start)
	if err != nil {
		if domain.IsTerminalSubmission(err) {
			logger.Debug().Err(err).Msg("release not submitted")
			s.recordOutcome(info.Name, "terminal", elapsed)
			return nil, err
		}
		var kind domain.ErrorKind
		if release.SourceID > 0 {
			kind = s.health.RecordError(ctx, release.SourceID, domain.OperationDownload, err).Kind
		} else {
			kind = indexers.Classify(err).Kind
		}
		s.recordOutcome(info.Name, "failed", elapsed)
		logger.Warn().
			Err(err).
			Str("error_kind", string(kind)).
			Dur("elapsed", elapsed).
			Msg("download submission failed")
		return nil, fmt.Errorf("submitting %s to %s: %w", release.GUID, info.Name, err)
	}

	if release.SourceID > 0 {
		if err := s.health.RecordSuccess(ctx, release.SourceID, domain.OperationDownload); err != nil {
			logger.Error().Err(err).Msg("failed to record download success")
		}
	}
	s.recordOutcome(info.Name, "grabbed", elapsed)

	event := domain.NewGrabbedEvent(decision.Candidate, info.ID, info.Name, jobID)
	s.publish(ctx, logger, event)

	logger.Info().
		Str("remote_job_id", jobID).
		Str("title", release.Title).
		Msg("release sent to download client")
	return event, nil
}

func (s *Submitter) resolveClient(decision *domain.Decision, clientID *int64) (Client, error) {
	if s.clients == nil {
		return nil, fmt.Errorf("%w: no download clients configured", domain.ErrServiceUnavailable)
	}
	if clientID != nil {
		return s.clients.Get(*clientID)
	}
	var tags []string
	if decision.Candidate.Author != nil {
		tags = decision.Candidate.Author.Tags
	}
	return s.clients.ForRelease(decision.Candidate.Release, tags)
}

func (s *Submitter) publish(ctx context.Context, logger zerolog.Logger, event *domain.GrabbedEvent) {
	if s.publisher == nil {
		return
	}
	result := "published"
	if err := s.publisher.Publish(ctx, event); err != nil {
		result = "failed"
		logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to publish grabbed event")
	}
	if s.metrics != nil {
		s.metrics.RecordEventPublished(result)
	}
}

func (s *Submitter) recordOutcome(client, outcome string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(client, outcome, elapsed.Seconds())
	}
}
