// -----------------------------------------------------------------------
// App - Component wiring and pipeline lifecycle
// -----------------------------------------------------------------------

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/catalog"
	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/handlers"
	"github.com/ternarybob/refnet/internal/ingress"
	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/pdf"
	"github.com/ternarybob/refnet/internal/queue"
	"github.com/ternarybob/refnet/internal/services/llm"
	"github.com/ternarybob/refnet/internal/storage/badger"
	"github.com/ternarybob/refnet/internal/storage/sqlite"
	"github.com/ternarybob/refnet/internal/vault"
	"github.com/ternarybob/refnet/internal/workers"
)

// ErrStorage marks initialization failures caused by the backing stores
// (graph store, pdf cache, broker) as opposed to bad configuration. The
// entrypoint maps it to its own exit code.
var ErrStorage = errors.New("storage unavailable")

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	StorageManager *sqlite.Manager
	PDFCache       interfaces.PDFCache
	brokerDB       *sql.DB

	// Pipeline services
	CatalogClient  interfaces.CatalogClient
	Summarizer     interfaces.Summarizer
	Notifier       interfaces.QueueNotifier
	Enqueuer       *queue.Enqueuer
	Dispatcher     *queue.Dispatcher
	IngressService *ingress.Service
	VaultWriter    *vault.Writer

	// Worker pools, one per stage
	pools []*workers.Pool

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	CrawlHandler  *handlers.CrawlHandler
	SearchHandler *handlers.SearchHandler
	StatsHandler  *handlers.StatsHandler

	cancel context.CancelFunc
}

// New wires up all components from the configuration. Nothing is running
// yet; call Start to launch the pipeline.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	storageManager, err := sqlite.NewManager(logger, &cfg.Storage.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph store: %w", errors.Join(ErrStorage, err))
	}
	a.StorageManager = storageManager

	a.PDFCache = interfaces.PDFCache(badger.NopPDFCache{})
	if cfg.Storage.Badger.Enabled {
		badgerDB, err := badger.NewBadgerDB(logger, &cfg.Storage.Badger)
		if err != nil {
			storageManager.Close()
			return nil, fmt.Errorf("failed to open pdf cache: %w", errors.Join(ErrStorage, err))
		}
		a.PDFCache = badger.NewPDFCache(badgerDB, logger)
	}

	a.Notifier = queue.NopNotifier{}
	if cfg.Queue.BrokerEnabled {
		// QUEUE_URL / queue.path puts the broker tables in their own file;
		// empty (or the graph store's own path) shares the graph store.
		brokerConn := storageManager.DB().DB()
		if cfg.Queue.Path != "" && cfg.Queue.Path != cfg.Storage.SQLite.Path {
			brokerDB, err := sqlite.OpenBrokerDB(logger, cfg.Queue.Path)
			if err != nil {
				a.closeStorage()
				return nil, fmt.Errorf("failed to open broker store: %w", errors.Join(ErrStorage, err))
			}
			a.brokerDB = brokerDB
			brokerConn = brokerDB
		}
		notifier, err := queue.NewNotifier(brokerConn,
			common.Duration(cfg.Queue.VisibilityTimeout), logger)
		if err != nil {
			a.closeStorage()
			return nil, fmt.Errorf("failed to set up queue broker: %w", errors.Join(ErrStorage, err))
		}
		a.Notifier = notifier
	}
	a.Enqueuer = queue.NewEnqueuer(storageManager.Queue(), a.Notifier, logger)

	retryPolicy := common.NewRetryPolicy(cfg.Retry)
	a.CatalogClient = catalog.NewClient(&cfg.Catalog, retryPolicy, logger)

	summarizer, err := llm.NewSummarizer(&cfg.LLM, retryPolicy, logger)
	if err != nil {
		a.closeStorage()
		return nil, fmt.Errorf("failed to set up summarizer: %w", err)
	}
	a.Summarizer = summarizer

	vaultWriter, err := vault.NewWriter(&cfg.Vault, logger)
	if err != nil {
		a.closeStorage()
		return nil, fmt.Errorf("failed to set up vault: %w", err)
	}
	a.VaultWriter = vaultWriter

	fetcher := pdf.NewFetcher(&cfg.PDF, a.PDFCache, logger)
	extractor := pdf.NewExtractor(cfg.PDF.MinTextChars, logger)

	papers := storageManager.Papers()
	queueStore := storageManager.Queue()

	a.IngressService = ingress.NewService(papers, queueStore, a.CatalogClient, a.Enqueuer, cfg, logger)
	a.Dispatcher = queue.NewDispatcher(papers, queueStore, a.Enqueuer, cfg, logger)

	pollInterval := common.Duration(cfg.Queue.PollInterval)
	crawlWorker := workers.NewCrawlWorker(papers, a.CatalogClient, a.Enqueuer, cfg, logger)
	summarizeWorker := workers.NewSummarizeWorker(papers, fetcher, extractor, a.PDFCache,
		a.Summarizer, a.Enqueuer, cfg, logger)
	generateWorker := workers.NewGenerateWorker(papers, vaultWriter, a.Enqueuer, cfg, logger)

	a.pools = []*workers.Pool{
		workers.NewPool(crawlWorker, queueStore, a.Notifier, a.Enqueuer,
			cfg.Workers.CrawlConcurrency, pollInterval,
			common.Duration(cfg.Workers.CrawlTimeout), logger),
		workers.NewPool(summarizeWorker, queueStore, a.Notifier, a.Enqueuer,
			cfg.Workers.SummarizeConcurrency, pollInterval,
			common.Duration(cfg.Workers.SummarizeTimeout), logger),
		workers.NewPool(generateWorker, queueStore, a.Notifier, a.Enqueuer,
			cfg.Workers.GenerateConcurrency, pollInterval,
			common.Duration(cfg.Workers.GenerateTimeout), logger),
	}

	a.APIHandler = handlers.NewAPIHandler()
	a.CrawlHandler = handlers.NewCrawlHandler(a.IngressService, papers, logger)
	a.SearchHandler = handlers.NewSearchHandler(a.IngressService, logger)
	a.StatsHandler = handlers.NewStatsHandler(papers, queueStore, logger)

	return a, nil
}

// Start launches the worker pools and the dispatcher.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	for _, pool := range a.pools {
		pool.Start(ctx)
	}

	if a.Config.Dispatcher.Enabled {
		if err := a.Dispatcher.Start(); err != nil {
			return fmt.Errorf("failed to start dispatcher: %w", err)
		}
	}

	a.Logger.Info().
		Str("vault", a.Config.Vault.Path).
		Msg("Pipeline started")
	return nil
}

// Stop winds the pipeline down: dispatcher first, then the pools, then
// the stores.
func (a *App) Stop() {
	if a.Config.Dispatcher.Enabled {
		a.Dispatcher.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	for _, pool := range a.pools {
		pool.Wait()
	}

	if err := a.Summarizer.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close summarizer")
	}
	a.Notifier.Close()
	a.closeStorage()

	a.Logger.Info().Msg("Pipeline stopped")
}

func (a *App) closeStorage() {
	if err := a.PDFCache.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close pdf cache")
	}
	if a.brokerDB != nil {
		if err := a.brokerDB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close broker store")
		}
	}
	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close graph store")
	}
}
