// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
	"github.com/JakeFAU/catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-crawler/internal/sink"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
	"github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/catalog-crawler/internal/storage/postgres"
	"github.com/JakeFAU/catalog-crawler/internal/strategy"
)

// App holds the shared services for one crawler run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    string
	clock    sink.Clock
	limiter  *ratelimit.Limiter
	registry *crawler.Registry
	sink     *sink.CSVSink
	records  *postgres.RecordStore
	notifier *pubsub.Publisher

	metricsServer *http.Server
	closers       []func() error
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	logger *zap.Logger
	store  storage.BlobStore
	clock  sink.Clock
}

// WithLogger replaces the logger built from the logger section.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBlobStore replaces the blob store selected by storage.provider.
func WithBlobStore(store storage.BlobStore) Option {
	return func(o *options) { o.store = store }
}

// WithClock replaces the wall clock used to timestamp exports.
func WithClock(clock sink.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// New builds every service the configuration asks for. It fails fast when
// an optional backend is configured but cannot be reached.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, clock: o.clock}
	if a.clock == nil {
		a.clock = system.New()
	}

	a.logger = o.logger
	if a.logger == nil {
		logger, err := logging.New(logging.Config{
			Dir:         cfg.Logger.Path,
			Level:       cfg.Logger.Level,
			Development: cfg.Logger.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.logger = logger
	}

	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}
	a.runID = runID
	a.logger = a.logger.With(zap.String("run_id", runID))

	if err := a.init(ctx, o.store); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("Application services initialized",
		zap.String("root", cfg.Parser.Root),
		zap.Float64("rps_limit", cfg.Parser.RPSLimit),
	)
	return a, nil
}

func (a *App) init(ctx context.Context, store storage.BlobStore) error {
	a.limiter = ratelimit.New(ratelimit.Config{RPS: a.cfg.Parser.RPSLimit})
	if a.cfg.Parser.RPSLimit <= 0 {
		a.logger.Warn("Request rate limiting disabled; set parser.rps_limit to throttle the crawl",
			zap.Float64("rps_limit", a.cfg.Parser.RPSLimit))
	}

	registry, err := strategy.NewRegistry()
	if err != nil {
		return fmt.Errorf("build strategy registry: %w", err)
	}
	a.registry = registry

	if store == nil {
		store, err = a.openBlobStore(ctx)
		if err != nil {
			return err
		}
	}
	a.sink, err = sink.NewCSVSink(store, a.clock, sha256.New(), a.logger)
	if err != nil {
		return fmt.Errorf("init sink: %w", err)
	}

	if a.cfg.DB.DSN != "" {
		records, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:   a.cfg.DB.DSN,
			Table: a.cfg.DB.Table,
		})
		if err != nil {
			return fmt.Errorf("init record store: %w", err)
		}
		a.records = records
		a.closers = append(a.closers, func() error { records.Close(); return nil })
		a.logger.Info("Exporting records to Postgres", zap.String("table", a.cfg.DB.Table))
	}

	if a.cfg.PubSub.ProjectID != "" {
		client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		a.notifier = pubsub.New(client.Topic(a.cfg.PubSub.TopicName))
		notifier := a.notifier
		a.closers = append(a.closers, func() error {
			notifier.Stop()
			return client.Close()
		})
		a.logger.Info("Publishing completion notices", zap.String("topic", a.cfg.PubSub.TopicName))
	}

	if a.cfg.Metrics.Addr != "" {
		a.startMetricsServer()
	}
	return nil
}

func (a *App) openBlobStore(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Storage.Provider {
	case config.ProviderGCS:
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		a.logger.Info("Using GCS storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	default:
		store, err := local.New(local.Config{BaseDir: a.cfg.Parser.ResultsPath})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		return store, nil
	}
}

func (a *App) startMetricsServer() {
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           metrics.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.metricsServer = srv
	go func() {
		a.logger.Info("Starting metrics server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// RunID returns the UUIDv7 identifying this run.
func (a *App) RunID() string { return a.runID }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Registry returns the compiled-in strategy registry.
func (a *App) Registry() *crawler.Registry { return a.registry }

// OpenSession builds a fresh fetch client and wraps it in a crawl session.
// Callers must defer Close on the result.
func (a *App) OpenSession() (*crawler.Session, error) {
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		BaseURL:   a.cfg.Parser.Root,
		UserAgent: a.cfg.Parser.UserAgent,
		Timeout:   a.cfg.RequestTimeout(),
		Headers:   a.cfg.Parser.Headers,
	}, a.limiter, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	session, err := crawler.NewSession(fetcher, a.registry, strategy.ExtractCategories, a.logger)
	if err != nil {
		_ = fetcher.Close()
		return nil, err
	}
	return session, nil
}

// Export writes the CSV, then the optional Postgres rows and completion
// notice. It returns the CSV location.
func (a *App) Export(ctx context.Context, category crawler.Category, products []crawler.Product) (string, error) {
	result, err := a.sink.Export(ctx, products, category)
	if err != nil {
		return "", fmt.Errorf("save results: %w", err)
	}
	location := result.Location
	finishedAt := a.clock.Now()

	if a.records != nil {
		err := a.records.StoreProducts(ctx, postgres.Export{
			RunID:     a.runID,
			Category:  category,
			CrawledAt: finishedAt,
			Products:  products,
		})
		if err != nil {
			return location, fmt.Errorf("export records: %w", err)
		}
	}

	if a.notifier != nil {
		id, err := a.notifier.Publish(ctx, pubsub.Notice{
			RunID:         a.runID,
			CategoryTitle: category.Title,
			CategoryPath:  category.Path,
			Products:      len(products),
			Location:      location,
			Checksum:      result.Checksum,
			FinishedAt:    finishedAt,
		})
		if err != nil {
			return location, fmt.Errorf("publish notice: %w", err)
		}
		a.logger.Debug("Published completion notice", zap.String("message_id", id))
	}
	return location, nil
}

// Close shuts down every service in reverse order of creation.
func (a *App) Close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Error stopping metrics server", zap.Error(err))
		}
		cancel()
		a.metricsServer = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
	}
}
