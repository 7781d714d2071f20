package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sundayezeilo/linkkeeper/internal/auth"
	"github.com/sundayezeilo/linkkeeper/internal/cache"
	"github.com/sundayezeilo/linkkeeper/internal/config"
	"github.com/sundayezeilo/linkkeeper/internal/database"
	"github.com/sundayezeilo/linkkeeper/internal/server"
	"github.com/sundayezeilo/linkkeeper/internal/shortener"
)

// App holds the application dependencies and configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DBPool   *pgxpool.Pool
	Cache    *cache.Redis // nil when running without Redis
	Server   *server.Server
	Sweepers []*shortener.Sweeper

	stopSweepers context.CancelFunc
	sweepWG      sync.WaitGroup
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel).With("service", cfg.Observability.ServiceName)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	dbPool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(ctx, dbPool, logger); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	redisCache := connectCache(ctx, cfg, logger)

	var linkCache cache.Cache = cache.Nop{}
	checks := map[string]server.HealthCheck{"postgres": dbPool.Ping}
	if redisCache != nil {
		linkCache = redisCache
		checks["redis"] = redisCache.Ping
	}

	store := shortener.NewPostgresStore(dbPool, nil)
	repo := shortener.NewRepository(store, &shortener.RepositoryConfig{
		Cache:           linkCache,
		Logger:          logger,
		CacheTTL:        cfg.Links.CacheTTL,
		UnusedThreshold: cfg.Links.UnusedThreshold,
	})
	svc := shortener.NewService(repo, &shortener.ServiceConfig{
		CodeLength:      cfg.Links.CodeLength,
		GenerateRetries: cfg.Links.GenerateRetries,
		Logger:          logger,
	})
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	srv := server.New(cfg, logger, server.Deps{
		Links:    handler,
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		Checks:   checks,
	})

	sweepers := []*shortener.Sweeper{
		shortener.NewSweeper(repo, shortener.ExpiredRule(), cfg.Links.SweepInterval, logger),
		shortener.NewSweeper(repo, shortener.UnusedRule(cfg.Links.UnusedThreshold), cfg.Links.SweepInterval, logger),
	}

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"cache", redisCache != nil,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		DBPool:   dbPool,
		Cache:    redisCache,
		Server:   srv,
		Sweepers: sweepers,
	}, nil
}

// Start launches the sweepers and runs the server until shutdown.
func (a *App) Start(ctx context.Context) error {
	sweepCtx, cancel := context.WithCancel(ctx)
	a.stopSweepers = cancel
	for _, s := range a.Sweepers {
		a.sweepWG.Add(1)
		go func() {
			defer a.sweepWG.Done()
			s.Run(sweepCtx)
		}()
	}

	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops the sweepers and releases connections.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.stopSweepers != nil {
		a.stopSweepers()
		a.sweepWG.Wait()
		a.Logger.Info("sweepers stopped")
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("failed to close redis client", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, database.PoolConfig{
		DSN:      cfg.Database.ConnectionString(),
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("database connection established")
	return pool, nil
}

// connectCache dials Redis. The service still works against Postgres alone,
// so an unreachable Redis is logged and nil is returned.
func connectCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) *cache.Redis {
	rc, err := cache.NewRedis(ctx, cache.Options{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		logger.Warn("redis unavailable, serving without cache", "addr", cfg.Redis.Addr, "error", err)
		return nil
	}

	logger.Info("redis connection established", "addr", cfg.Redis.Addr)
	return rc
}
