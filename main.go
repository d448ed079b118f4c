package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jonesrussell/link-router/internal/analytics"
	"github.com/jonesrussell/link-router/internal/api"
	"github.com/jonesrussell/link-router/internal/cache"
	"github.com/jonesrussell/link-router/internal/clicks"
	"github.com/jonesrussell/link-router/internal/config"
	"github.com/jonesrussell/link-router/internal/handler"
	platformconfig "github.com/jonesrussell/link-router/internal/platform/config"
	"github.com/jonesrussell/link-router/internal/platform/logger"
	platformredis "github.com/jonesrussell/link-router/internal/platform/redis"
	"github.com/jonesrussell/link-router/internal/ratelimit"
	"github.com/jonesrussell/link-router/internal/resolver"
	"github.com/jonesrussell/link-router/internal/routing"
	"github.com/jonesrussell/link-router/internal/storage"

	goredis "github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
	_ "net/http/pprof"
)

// Database connection timeout.
const dbPingTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	startPprofServer()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	db, err := connectDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	redisClient, err := platformredis.NewClient(cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to redis", logger.Error(err))
		return 1
	}
	defer func() { _ = redisClient.Close() }()

	return runServer(cfg, log, db, redisClient)
}

// startPprofServer exposes the pprof handlers when PPROF_ADDR is set.
func startPprofServer() {
	addr := os.Getenv("PPROF_ADDR")
	if addr == "" {
		return
	}
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := platformconfig.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// connectDatabase opens and verifies a database connection.
func connectDatabase(cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	return db, nil
}

// runServer creates all dependencies and starts the HTTP server.
func runServer(cfg *config.Config, log logger.Logger, db *sql.DB, redisClient *goredis.Client) int {
	store := storage.NewLinkStore(db, log)
	linkCache := cache.New(redisClient)
	res := resolver.New(linkCache, store, log)

	// One emission per visitor per window; the guard only covers configured
	// high-value keys.
	dedup := ratelimit.NewFixedWindow(redisClient, "click_dedup", 1, cfg.RateLimit.DedupWindow)
	guard := ratelimit.NewFixedWindow(
		redisClient, "abuse_guard",
		int64(cfg.RateLimit.GuardMaxPerWindow), cfg.RateLimit.GuardWindow,
	)

	sink := analytics.NewClient(cfg.Analytics.SinkURL, cfg.Analytics.SinkToken)

	recorder := clicks.NewRecorder(dedup, sink, store, res, log, cfg.Service.BufferSize)
	recorder.Start()
	defer recorder.Stop()

	engine := routing.NewEngine(cfg.Service.BannedProjectID, cfg.Service.FallbackURL)

	deps := api.Deps{
		Redirect: handler.NewRedirectHandler(
			res, engine, recorder, guard, cfg.RateLimit.HighValueKeys, log,
		),
		Health: handler.NewHealthHandler(cfg.Service.Version,
			handler.Check{Name: "postgres", Probe: store.Ping},
			handler.Check{Name: "redis", Probe: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		),
		CacheAdmin: handler.NewCacheAdminHandler(linkCache, log),
	}

	server := api.NewServer(cfg, log, deps)

	log.Info("Link-router starting",
		logger.Int("port", cfg.Service.Port),
		logger.Bool("analytics_enabled", sink.IsEnabled()),
	)

	if err := server.Run(); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Link-router exited cleanly")
	return 0
}
