package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"dinamifin/internal/backend"
	"dinamifin/internal/cache"
	"dinamifin/internal/cli"
	"dinamifin/internal/history"
	apphttp "dinamifin/internal/http"
	"dinamifin/internal/log"
	"dinamifin/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.Open(context.Background(), bcfg, logger)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	hist := history.NewService(res.Store, res.Store,
		history.WithCache(cfg.HistoryCacheSize, cfg.HistoryCacheTTL),
		history.WithLogger(logger))

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(hist.Cache())
	cacheManager.StartCleanup(cfg.HistoryCacheTTL)

	pub := res.Publisher()
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:             services.NewLedgerService(res.Store, pub, hist, logger),
		Goals:              services.NewGoalService(res.Store, pub, hist, logger),
		Imports:            services.NewImportService(res.Store, pub, hist, logger),
		History:            hist,
		Store:              res.Store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting dinamifin server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
