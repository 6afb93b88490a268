/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fleet pricing server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), then the config file and FLEETPRICING_* env
  2. Build the zap logger
  3. Open the SQLite store
  4. Connect the Redis distance cache when redis.addr is set
  5. Create the API handler and router
  6. Seed the demo fleet when server.demo is true
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML/JSON/TOML config file (optional)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (server.shutdown_timeout)
  3. Close Redis and the database
  4. Exit

EXAMPLES:
  # In-memory database with demo data
  FLEETPRICING_DATABASE_PATH=":memory:" FLEETPRICING_SERVER_DEMO=true ./server

  # Shared distance cache
  FLEETPRICING_REDIS_ADDR=localhost:6379 ./server -config=./config.yaml

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/fleet-pricing/api"
	"github.com/warp/fleet-pricing/config"
	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/distance/rediscache"
	"github.com/warp/fleet-pricing/logging"
	"github.com/warp/fleet-pricing/metrics"
	"github.com/warp/fleet-pricing/quote"
	"github.com/warp/fleet-pricing/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rec := metrics.New()
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithMetrics(rec),
		api.WithQuoteOptions(quote.Options{
			DepositMultiplier: decimal.NewFromFloat(cfg.Pricing.DepositMultiplier),
			InsuranceRate:     decimal.NewFromFloat(cfg.Pricing.InsuranceRate),
		}),
		api.WithCalendarOptions(cfg.Calendar.ResolverOptions()...),
	}

	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		cache, err := rediscache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, rediscache.Options{
			TTL:     cfg.Redis.TTL,
			Timeout: cfg.Redis.Timeout,
			Logger:  logger,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		defer cache.Close()
		opts = append(opts, api.WithDistanceService(distance.NewService(cache, distance.WithObserver(rec))))
		logger.Info("distance cache backed by redis", zap.String("addr", cfg.Redis.Addr))
	}

	handler := api.NewHandler(db, opts...)

	if cfg.Server.Demo {
		if err := handler.LoadScenarioByID(context.Background(), api.ScenarioDemoFleet); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.CORS.AllowedOrigins})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("database", cfg.Database.Path),
			zap.Bool("demo", cfg.Server.Demo))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
