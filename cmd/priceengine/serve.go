package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/PriceEngine/internal/api"
	"github.com/MikeSquared-Agency/PriceEngine/internal/cache"
	"github.com/MikeSquared-Agency/PriceEngine/internal/config"
	"github.com/MikeSquared-Agency/PriceEngine/internal/hermes"
	"github.com/MikeSquared-Agency/PriceEngine/internal/metrics"
	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
	"github.com/MikeSquared-Agency/PriceEngine/internal/reload"
	"github.com/MikeSquared-Agency/PriceEngine/internal/store"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve price recommendations over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()
			return serve(cfg, logger)
		},
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Weights: a missing file serves the defaults, a malformed one is fatal.
	weights, err := pricing.LoadWeights(cfg.Weights.Path)
	if err != nil {
		return err
	}
	holder := pricing.NewHolder(weights, cfg.Weights.Path)
	snap := holder.Load()
	logger.Info("weights loaded", "path", cfg.Weights.Path, "model_version", snap.Weights.ModelVersion, "fingerprint", snap.Fingerprint)

	rec := metrics.New(nil)
	rec.SetActiveWeights(snap.Weights.ModelVersion, snap.Fingerprint)

	// Database (optional)
	var db store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		db = pg
		logger.Info("connected to database")
	}

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Cache (optional)
	var recCache cache.Cache
	if cfg.Cache.Enabled {
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.CacheTTL(),
		})
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, running without cache", "addr", cfg.Cache.Addr, "error", err)
			_ = rc.Close()
		} else {
			recCache = rc
			defer rc.Close()
			logger.Info("connected to redis", "addr", cfg.Cache.Addr)
		}
	}

	// Weights reloader
	reloader := reload.New(holder, cfg.Weights.Path, cfg.ReloadInterval(), hermesClient, rec, logger)
	reloader.Start(ctx)
	defer reloader.Stop()

	router := api.NewRouter(api.Deps{
		Holder:     holder,
		Store:      db,
		Hermes:     hermesClient,
		Cache:      recCache,
		Metrics:    rec,
		Reloader:   reloader,
		AdminToken: cfg.Server.AdminToken,
		RateLimit:  cfg.Server.RateLimit,
		Logger:     logger,
	})
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsPort > 0 {
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler: api.NewMetricsRouter(nil),
		}
		go func() {
			logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		logger.Error("API server error", "error", err)
		return err
	}

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info("shutdown complete")
	return nil
}
