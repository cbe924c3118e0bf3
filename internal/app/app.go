// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/legislature-crawler/internal/archive"
	gcsarchive "github.com/JakeFAU/legislature-crawler/internal/archive/gcs"
	localarchive "github.com/JakeFAU/legislature-crawler/internal/archive/local"
	memoryarchive "github.com/JakeFAU/legislature-crawler/internal/archive/memory"
	pgarchive "github.com/JakeFAU/legislature-crawler/internal/archive/postgres"
	"github.com/JakeFAU/legislature-crawler/internal/clock/system"
	"github.com/JakeFAU/legislature-crawler/internal/config"
	"github.com/JakeFAU/legislature-crawler/internal/crawler"
	"github.com/JakeFAU/legislature-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/legislature-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/legislature-crawler/internal/id/uuid"
	"github.com/JakeFAU/legislature-crawler/internal/identity"
	"github.com/JakeFAU/legislature-crawler/internal/logging"
	"github.com/JakeFAU/legislature-crawler/internal/lookup"
	"github.com/JakeFAU/legislature-crawler/internal/metrics"
	"github.com/JakeFAU/legislature-crawler/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/legislature-crawler/internal/publisher/pubsub"
)

// Closer releases a long-lived resource on shutdown.
type Closer interface {
	Close() error
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// App holds all the shared, long-lived services for one crawl invocation.
// It is initialized once at startup and closed by the CLI after the crawl.
type App struct {
	Logger       *zap.Logger
	Tables       lookup.Tables
	Cache        archive.Cache
	Publisher    crawler.Publisher
	Orchestrator *crawler.Orchestrator
	// Closers run in reverse order on Close.
	Closers []Closer
}

// NewApp builds every service the crawl needs from cfg. It fails fast when
// the lookup tables or the configured archive backend cannot be opened.
// clientOpts are passed to the Google Cloud clients.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, clientOpts ...option.ClientOption) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Logger: logger}
	logger.Info("initializing application services", zap.String("archive_backend", cfg.Archive.Backend))

	tables, err := lookup.Load(cfg.Inputs.CrosswalkCSV, cfg.Inputs.SessionDatesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load lookup tables: %w", err)
	}
	a.Tables = tables
	logger.Info("lookup tables loaded",
		zap.Int("crosswalk_rows", len(tables.Crosswalk)),
		zap.Int("session_dates", len(tables.SessionDates)),
	)

	cache, err := a.newCache(ctx, cfg.Archive, clientOpts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}
	a.Cache = cache

	if cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, clientOpts...)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize pubsub: %w", err)
		}
		pub := gcppublisher.New(client.Topic(cfg.PubSub.TopicName))
		a.Closers = append(a.Closers, client, closerFunc(func() error {
			pub.Stop()
			return nil
		}))
		a.Publisher = pub
		logger.Info("publishing archived events", zap.String("topic", cfg.PubSub.TopicName))
	}

	if cfg.Metrics.ListenAddr != "" {
		srv := metrics.NewServer(cfg.Metrics.ListenAddr, logging.Component(logger, "metrics"))
		srv.Start()
		a.Closers = append(a.Closers, closerFunc(func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}))
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.Crawler.UserAgent,
		Timeout:        cfg.HTTP.Timeout,
		Delay:          delayOrDisabled(cfg.Crawler.Delay),
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: cfg.HTTP.BackoffInitial,
		BackoffMax:     cfg.HTTP.BackoffMax,
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.Crawler.MaxRequestsPerSecond,
			Burst:             cfg.Crawler.Burst,
		}),
	}, logger)

	deps := crawler.Deps{
		Fetcher:   fetcher,
		Endpoints: crawler.NewEndpoints(cfg.API.BaseURL, cfg.API.DocumentBaseURL),
		Extractor: extract.New(logging.Component(logger, "extract")),
		Resolver:  identity.New(tables.Crosswalk, logger),
		Logger:    logging.Component(logger, "crawler"),
	}
	a.Orchestrator = crawler.NewOrchestrator(
		deps,
		archive.New(cache),
		tables,
		a.Publisher,
		uuid.New(),
		system.New(),
		crawler.OrchestratorConfig{Topic: cfg.PubSub.TopicName},
		logging.Component(logger, "orchestrator"),
	)

	logger.Info("application services initialized")
	return a, nil
}

// delayOrDisabled maps a configured zero delay onto the fetcher's
// "no delay" sentinel, since the fetcher treats zero as "use the default".
func delayOrDisabled(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

func (a *App) newCache(ctx context.Context, cfg config.ArchiveConfig, clientOpts []option.ClientOption) (archive.Cache, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		a.Logger.Info("using local archive", zap.String("base_dir", cfg.BaseDir))
		return localarchive.New(localarchive.Config{BaseDir: cfg.BaseDir})
	case config.BackendMemory:
		a.Logger.Warn("using in-memory archive; records are discarded on exit")
		return memoryarchive.New(), nil
	case config.BackendGCS:
		client, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.Closers = append(a.Closers, client)
		a.Logger.Info("using gcs archive", zap.String("bucket", cfg.GCSBucket), zap.String("prefix", cfg.GCSPrefix))
		return gcsarchive.New(client, gcsarchive.Config{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix})
	case config.BackendPostgres:
		store, err := pgarchive.New(ctx, pgarchive.Config{DSN: cfg.PostgresDSN, Table: cfg.PostgresTable})
		if err != nil {
			return nil, err
		}
		a.Closers = append(a.Closers, closerFunc(func() error {
			store.Close()
			return nil
		}))
		a.Logger.Info("using postgres archive", zap.String("table", cfg.PostgresTable))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive backend: %s", cfg.Backend)
	}
}

// Run performs one crawl pass.
func (a *App) Run(ctx context.Context) (crawler.Summary, error) {
	if a.Orchestrator == nil {
		return crawler.Summary{}, errors.New("application services not initialized")
	}
	return a.Orchestrator.Run(ctx)
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	for i := len(a.Closers) - 1; i >= 0; i-- {
		if err := a.Closers[i].Close(); err != nil {
			a.Logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.Closers = nil
}
