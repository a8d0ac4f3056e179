package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/loadoutsync/internal/aggregate"
	"github.com/mwantia/loadoutsync/internal/api"
	config "github.com/mwantia/loadoutsync/internal/config/server"
	"github.com/mwantia/loadoutsync/internal/itemnames"
	"github.com/mwantia/loadoutsync/internal/kvcache"
	"github.com/mwantia/loadoutsync/internal/localstore"
	"github.com/mwantia/loadoutsync/internal/pagination"
	"github.com/mwantia/loadoutsync/internal/session"
	"github.com/mwantia/loadoutsync/internal/stats"
	"github.com/mwantia/loadoutsync/internal/syncengine"
	"github.com/mwantia/loadoutsync/pkg/db/store"
	"github.com/mwantia/loadoutsync/pkg/log"
	"gorm.io/gorm/logger"
)

type LoadoutSyncAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg     *config.BaseServerConfig
	sc      *container.ServiceContainer
	log     log.LoggerService
	loggers componentLoggers

	backend   store.Backend
	session   *session.Session
	engine    *syncengine.Engine
	refresher *stats.Refresher
	catalog   *itemnames.Catalog
	server    *api.Server
}

// componentLoggers is filled from the container by the logger tag processor.
type componentLoggers struct {
	Store     log.LoggerService `fabric:"logger:store"`
	Aggregate log.LoggerService `fabric:"logger:aggregate"`
	Sync      log.LoggerService `fabric:"logger:sync"`
	Stats     log.LoggerService `fabric:"logger:stats"`
	Cache     log.LoggerService `fabric:"logger:cache"`
	Items     log.LoggerService `fabric:"logger:items"`
	HTTP      log.LoggerService `fabric:"logger:http"`
}

func NewAgent(cfg *config.BaseServerConfig) *LoadoutSyncAgent {
	return &LoadoutSyncAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("loadoutsync", cfg.Log),
	}
}

func (lsa *LoadoutSyncAgent) setupServices(ctx context.Context) error {
	errs := container.Errors{}

	lsa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](lsa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(lsa.log)))

	if err := errs.Errors(); err != nil {
		return err
	}

	if err := log.NewLoggerTagProcessor().InjectLoggers(ctx, lsa.sc, &lsa.loggers); err != nil {
		return fmt.Errorf("failed to inject component loggers: %w", err)
	}

	backend, err := OpenBackend(ctx, lsa.cfg.Storage)
	if err != nil {
		return err
	}
	lsa.backend = backend
	lsa.loggers.Store.Info("Using '%s' storage", lsa.cfg.Storage.Type)

	lsa.setupComponents()
	return nil
}

// OpenBackend connects and migrates the configured store.
func OpenBackend(ctx context.Context, cfg config.StorageServerConfig) (store.Backend, error) {
	var backend store.Backend

	switch cfg.Type {
	case "memory":
		backend = store.NewMemoryStore()
	case "sqlite", "":
		level := logger.Silent
		if cfg.SQLite.Debug {
			level = logger.Info
		}
		sqlite, err := store.NewSQLiteStore(store.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			LogLevel:     level,
		})
		if err != nil {
			return nil, err
		}
		backend = sqlite
	default:
		return nil, fmt.Errorf("unknown storage type '%s'", cfg.Type)
	}

	if err := backend.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := backend.Migrate(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to migrate storage: %w", err)
	}
	return backend, nil
}

func (lsa *LoadoutSyncAgent) setupComponents() {
	cfg := lsa.cfg
	backoff := syncengine.DefaultBackoff()

	lsa.session = session.New(cfg.Session.UserID)

	agg := aggregate.NewEngine(lsa.backend, lsa.loggers.Aggregate, aggregate.Options{
		BatchLimit: cfg.Sync.BatchLimit,
	})

	lsa.engine = syncengine.NewEngine(lsa.backend, agg, localstore.New(),
		pagination.NewManager(cfg.Sync.PageSize), lsa.session, lsa.loggers.Sync,
		syncengine.Options{
			Propagation: syncengine.Backoff{
				InitialDelay: config.Duration(cfg.Sync.Propagate.InitialDelay, backoff.InitialDelay),
				MaxDelay:     config.Duration(cfg.Sync.Propagate.MaxDelay, backoff.MaxDelay),
				MaxAttempts:  cfg.Sync.Propagate.MaxAttempts,
			},
		})

	cache := kvcache.New(lsa.backend, lsa.loggers.Cache, kvcache.Options{
		ItemsTTL: config.Duration(cfg.Cache.ItemsTTL, kvcache.DefaultItemsTTL),
		StatsTTL: config.Duration(cfg.Cache.StatsTTL, kvcache.DefaultStatsTTL),
		Size:     cfg.Cache.LRUSize,
	})

	lsa.refresher = stats.NewRefresher(agg, cache, lsa.session, lsa.loggers.Stats, stats.Options{
		Interval: config.Duration(cfg.Stats.RefreshInterval, stats.DefaultInterval),
	})

	lsa.catalog = itemnames.New(cfg.Items.NamesURL, cache, lsa.loggers.Items, itemnames.Options{
		Timeout: config.Duration(cfg.Items.Timeout, 0),
	})

	if cfg.HTTP.Enabled {
		lsa.server = api.NewServer(lsa.engine, lsa.refresher, lsa.catalog, lsa.session, lsa.loggers.HTTP, api.Options{
			Listen:      cfg.HTTP.Listen,
			CORSOrigins: cfg.HTTP.CORSOrigins,
		})
	}
}

func (lsa *LoadoutSyncAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lsa.mutex.Lock()

	if err := lsa.setupServices(ctx); err != nil {
		lsa.mutex.Unlock()
		return err
	}

	lsa.engine.Start(ctx)
	lsa.refresher.Start(ctx)

	lsa.wait.Add(1)
	go func() {
		defer lsa.wait.Done()
		if err := lsa.catalog.Load(ctx); err != nil {
			lsa.loggers.Items.Warn("Item names unavailable, using placeholders: %v", err)
		}
	}()

	timeout := config.Duration(lsa.cfg.ShutdownTimeout, defaultShutdownTimeout)

	serveErr := make(chan error, 1)
	if lsa.server != nil {
		lsa.wait.Add(1)
		go func() {
			defer lsa.wait.Done()
			if err := lsa.server.Serve(ctx, timeout); err != nil {
				serveErr <- err
				cancel()
			}
		}()
	}

	lsa.mutex.Unlock()
	<-ctx.Done()

	lsa.log.Info("Shutting down...")
	return lsa.shutdown(timeout, serveErr)
}
