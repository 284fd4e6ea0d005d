// Package app assembles the acquisition core from configuration. The server,
// worker and operator CLI binaries share one object graph so that a search
// started from any of them records health the same way.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-acquisition-service/internal/config"
	"github.com/helixir/paper-acquisition-service/internal/database"
	"github.com/helixir/paper-acquisition-service/internal/decision"
	"github.com/helixir/paper-acquisition-service/internal/download"
	"github.com/helixir/paper-acquisition-service/internal/health"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
	"github.com/helixir/paper-acquisition-service/internal/indexers/builtin"
	"github.com/helixir/paper-acquisition-service/internal/maintenance"
	"github.com/helixir/paper-acquisition-service/internal/observability"
	"github.com/helixir/paper-acquisition-service/internal/priority"
	"github.com/helixir/paper-acquisition-service/internal/ratelimit"
	"github.com/helixir/paper-acquisition-service/internal/repository"
	"github.com/helixir/paper-acquisition-service/internal/search"
	httpserver "github.com/helixir/paper-acquisition-service/internal/server/http"
)

// App holds the wired components.
type App struct {
	DB          *database.DB
	Sources     *repository.PgSourceRepository
	Catalog     *repository.PgCatalogRepository
	Blocklist   *repository.PgBlocklistRepository
	Tracker     *health.Tracker
	Dispatcher  *search.Dispatcher
	Submitter   *download.Submitter
	Maintenance *maintenance.Service
	Metrics     *observability.Metrics

	publisher *download.KafkaPublisher
	logger    zerolog.Logger
}

// New connects to PostgreSQL and builds every component. metrics may be nil.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*App, error) {
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &App{
		DB:        db,
		Sources:   repository.NewPgSourceRepository(db),
		Catalog:   repository.NewPgCatalogRepository(db),
		Blocklist: repository.NewPgBlocklistRepository(db),
		Metrics:   metrics,
		logger:    logger,
	}

	a.Tracker = health.NewTracker(
		repository.NewPgHealthEventRepository(db),
		a.Sources,
		health.Config{
			Retention:            cfg.Health.Retention,
			RecentWindow:         cfg.Health.RecentWindow,
			RateWindow:           cfg.Health.RateWindow,
			FailureRateThreshold: cfg.Health.FailureRateThreshold,
		},
		logger,
		metrics,
	)

	gate := ratelimit.NewHostGate()
	fetcher := indexers.NewHTTPFetcher(indexers.FetcherConfig{
		Timeout:     cfg.Search.RequestTimeout,
		UserAgent:   cfg.Search.UserAgent,
		MaxBodySize: cfg.Search.MaxBodySize,
		RateLimit:   cfg.Search.RateLimit,
	}, nil)

	engine := decision.NewEngine(
		decision.NewCatalogResolver(a.Catalog),
		decision.Config{PreferRevisions: cfg.Decision.PreferRevisions},
		logger,
		metrics,
	)

	a.Dispatcher = search.NewDispatcher(search.Deps{
		Sources: a.Sources,
		Factory: builtin.NewFactory(cfg.AdapterDefaults()),
		Fetcher: fetcher,
		Gate:    gate,
		Decider: engine,
		Health:  a.Tracker,
		Books:   a.Catalog,
		Metrics: metrics,
	}, logger)

	deps := download.Deps{
		Clients: download.NewRegistry(download.NewHTTPTransfer(download.TransferConfig{
			ID:                   1,
			Dir:                  cfg.Download.Dir,
			Timeout:              cfg.Download.Timeout,
			MaxSize:              cfg.Download.MaxSize,
			AllowPrivateNetworks: cfg.Download.AllowPrivateNetworks,
		})),
		Gate:      gate,
		Health:    a.Tracker,
		Blocklist: a.Blocklist,
		Metrics:   metrics,
	}
	if cfg.Kafka.Enabled {
		a.publisher = download.NewKafkaPublisher(download.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		deps.Publisher = a.publisher
	}
	a.Submitter = download.NewSubmitter(deps, download.Config{HostInterval: cfg.Download.HostInterval}, logger)

	priorityCfg := priority.Config{AutoAdjust: cfg.Priority.AutoAdjust, MaxPriority: cfg.Priority.MaxPriority}
	a.Maintenance = maintenance.NewService(db, a.Tracker, func(tx database.DBTX) *priority.Adjuster {
		return priority.NewAdjuster(repository.NewPgSourceRepository(tx), a.Tracker, priorityCfg, logger, metrics)
	}, logger)

	return a, nil
}

// HTTPDeps returns the collaborators of the REST surface.
func (a *App) HTTPDeps() httpserver.Deps {
	return httpserver.Deps{
		Catalog:     a.Catalog,
		Searcher:    a.Dispatcher,
		Submitter:   a.Submitter,
		Health:      a.Tracker,
		Maintenance: a.Maintenance,
		Blocklist:   a.Blocklist,
		DB:          a.DB,
	}
}

// Close releases the publisher and the database pool.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close grabbed event publisher")
		}
	}
	a.DB.Close()
}
