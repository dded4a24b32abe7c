package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/efreitasn/bidengine/internal/config"
	"github.com/efreitasn/bidengine/internal/engine"
	"github.com/efreitasn/bidengine/internal/handler"
	"github.com/efreitasn/bidengine/internal/service"
	"github.com/efreitasn/bidengine/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		if !checkHealth(fmt.Sprintf("http://localhost:%s/healthz", port)) {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// checkHealth reports whether url answers 200.
func checkHealth(url string) bool {
	resp, err := http.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Storage.
	var repo store.Repository
	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := store.Connect(ctx, store.PoolConfig{
			URL:      cfg.DatabaseURL,
			MinConns: cfg.DBMinConns,
			MaxConns: cfg.DBMaxConns,
		})
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		repo = pg
	default:
		repo = store.NewMemoryStore()
	}
	logger.Info("storage ready", slog.String("backend", cfg.Storage))

	// Events go to the log and to webhook subscribers.
	webhookSvc := service.NewWebhookService(store.NewWebhookStore(), cfg.WebhookTimeout, cfg.EventEncoding, logger)
	emitter := engine.Emitters{engine.NewLogEmitter(logger), webhookSvc}

	// Engine.
	eng := engine.New(repo, emitter, engine.Config{
		MaxRetries:  cfg.BidMaxRetries,
		SlotTimeout: cfg.BidSlotTimeout,
		AntiSniping: engine.AntiSniping{
			Window:        cfg.AntiSnipingWindow,
			MaxExtensions: cfg.AntiSnipingMaxExtensions,
		},
	}, logger)
	closer := engine.NewCloser(cfg.CloseInterval, eng, logger)

	auctionSvc := service.NewAuctionService(repo, eng, cfg.AntiSnipingEnabled)

	// Router.
	router := handler.NewRouter(auctionSvc, webhookSvc, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return closer.Run(gctx)
	})

	// Graceful shutdown: stop HTTP server once a signal arrives or a
	// member of the group fails.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	// Handlers and the closer have returned, so nothing emits any more.
	webhookSvc.Wait()
	return err
}
