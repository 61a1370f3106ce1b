package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trailpoints/internal/app"
	"trailpoints/internal/config"
	"trailpoints/internal/infra/memory"
	"trailpoints/internal/infra/postgres"
	infraredis "trailpoints/internal/infra/redis"
	"trailpoints/internal/logger"
	"trailpoints/internal/metrics"
	"trailpoints/internal/storage"
	transport "trailpoints/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backend groups the store roles; both implementations fill every role.
// shared is set when other processes (seed) may rewrite the catalog.
type backend struct {
	store   app.Store
	catalog app.Catalog
	rewards app.RewardStore
	places  app.PlaceStore
	shared  bool
	close   func()
}

// cacheCatalog fronts a shared catalog with Redis, or with a process-local
// cache when Redis is absent. The local cache is not evicted by seed, so a
// reseed shows up after ttl; a zero ttl disables caching.
func cacheCatalog(be backend, client *redis.Client, ttl time.Duration) app.Catalog {
	switch {
	case !be.shared || ttl <= 0:
		return be.catalog
	case client != nil:
		return infraredis.NewCatalogCache(client, be.catalog, ttl)
	default:
		return memory.NewCatalogCache(be.catalog, ttl)
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	progressTTL := config.TTLDuration(cfg.Progress.TTL, 5*time.Minute)

	var (
		progressCache app.ProgressCache
		client        *redis.Client
	)
	if cfg.Redis.Addr != "" {
		client = newRedisClient(cfg)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		progressCache = infraredis.NewProgressCache(client, progressTTL)
		log.Info("redis caches enabled", zap.String("addr", cfg.Redis.Addr))
	}
	catalog := cacheCatalog(be, client, catalogTTL)

	assets, err := newAssets(ctx, cfg, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	hub := app.NewHub()
	opts := []app.Option{app.WithHub(hub), app.WithObserver(m), app.WithLogger(log)}
	if assets != nil {
		opts = append(opts, app.WithAssets(assets))
	}
	ledgerOpts := append([]app.Option{}, opts...)
	if progressCache != nil {
		ledgerOpts = append(ledgerOpts, app.WithProgressCache(progressCache))
	}

	router := transport.NewRouter(transport.RouterConfig{
		Ledger:    app.NewLedgerService(catalog, be.store, ledgerOpts...),
		Progress:  app.NewProgressService(catalog, be.store, progressCache, opts...),
		Rewards:   app.NewRewardService(be.store, be.rewards, opts...),
		Recommend: app.NewRecommendationService(be.places),
		Hub:       hub,
		Assets:    assets,
		Metrics:   m,
		Logger:    log,
	})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting trailpoints", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openBackend uses Postgres when configured, otherwise an in-memory store
// seeded from server.fixture or the built-in demo data.
func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (backend, error) {
	if cfg.Postgres.URL == "" {
		store := memory.NewStore()
		ds, err := loadDataset(cfg.Server.Fixture)
		if err != nil {
			return backend{}, err
		}
		if err := store.Import(ctx, ds); err != nil {
			return backend{}, err
		}
		log.Warn("postgres not configured, using in-memory store",
			zap.String("fixture", cfg.Server.Fixture),
			zap.Int("users", len(ds.Users)))
		return backend{store: store, catalog: store, rewards: store, places: store, close: func() {}}, nil
	}

	if err := runMigrations(ctx, cfg, log); err != nil {
		return backend{}, err
	}
	db := postgres.Open(cfg.Postgres.URL)
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		_ = db.Close()
		return backend{}, err
	}
	store := postgres.NewStore(db)
	return backend{
		store:   store,
		catalog: postgres.NewCatalogLoader(pool),
		rewards: store,
		places:  store,
		shared:  true,
		close: func() {
			pool.Close()
			_ = db.Close()
		},
	}, nil
}

// newAssets returns nil when no object storage is configured.
func newAssets(ctx context.Context, cfg config.Config, log *zap.Logger) (storage.Provider, error) {
	sc := cfg.Storage
	switch {
	case sc.Endpoint != "":
		provider, err := storage.NewMinioProvider(storage.MinioOptions{
			Endpoint:  sc.Endpoint,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
			Bucket:    sc.Bucket,
			UseSSL:    sc.UseSSL,
			PublicURL: sc.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		// Images are optional; a missing bucket only breaks picture links.
		if err := provider.EnsureBucket(bucketCtx); err != nil {
			log.Warn("object storage unavailable", zap.String("endpoint", sc.Endpoint), zap.Error(err))
		}
		return provider, nil
	case sc.PublicURL != "":
		return storage.LocalProvider{BaseURL: sc.PublicURL}, nil
	default:
		return nil, nil
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}
