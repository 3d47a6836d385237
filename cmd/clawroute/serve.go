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

	"github.com/clawinfra/clawroute/internal/config"
	"github.com/clawinfra/clawroute/internal/executor"
	"github.com/clawinfra/clawroute/internal/gateway"
	"github.com/clawinfra/clawroute/internal/router"
	"github.com/clawinfra/clawroute/internal/store"
	"github.com/clawinfra/clawroute/internal/telemetry"
)

const (
	healthFailureThreshold = 5
	healthProbeInterval    = 15 * time.Second
	gracefulShutdown       = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the routing proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to optional config file")
	return cmd
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.clawroute/config.yaml"
}

func serve(configPath string) error {
	loader := config.NewLoader(configPath, slog.Default())
	if err := loader.Load(); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := loader.Config()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}
	loader.OnReload(func() {
		logger.Info("configuration reloaded")
	})

	rt := config.NewRuntime(cfg)
	health := router.NewProviderHealth(healthFailureThreshold, healthProbeInterval, logger)
	rtr := router.New(loader.Config, rt, health)

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
	dispatcher := executor.NewDispatcher(client, loader.Config, logger)
	exec := executor.New(dispatcher, rtr, health, loader.Config, logger)

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open routing log: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retention := store.NewRetentionScheduler(st, cfg.RetentionDays, cfg.PruneSchedule, logger)
	if err := retention.Start(ctx); err != nil {
		logger.Warn("retention scheduler not started", "error", err)
	}
	defer retention.Stop()

	metrics := telemetry.NewMetrics()
	handler := gateway.NewHandler(loader.Config, rt, rtr, exec, health, st, metrics, logger, version)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     gateway.Routes(handler, func() string { return loader.Config().AuthToken }),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("clawroute starting", "addr", addr, "version", version, "enabled", rt.Enabled(), "dry_run", rt.DryRun())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("clawroute stopped")
	return nil
}
