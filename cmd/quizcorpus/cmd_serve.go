package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quizcorpus/internal/adapters/driving/http"
	"github.com/custodia-labs/quizcorpus/internal/config"
	"github.com/custodia-labs/quizcorpus/internal/worker"
)

const (
	modeAPI    = "api"
	modeWorker = "worker"
	modeAll    = "all"
)

func newModeCmd(mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, mode)
		},
	}
}

// loadConfig reads configuration and builds the process logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, version)
	if err != nil {
		return nil, nil, err
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.LogFormat = format
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runMode(cmd *cobra.Command, mode string) error {
	switch mode {
	case modeAPI, modeWorker, modeAll:
	default:
		return fmt.Errorf("unknown mode: %s (use: api, worker, or all)", mode)
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Info("quizcorpus starting", "mode", mode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Corpus.SeedOnStart {
		if _, err := a.seedCorpus(ctx); err != nil {
			return err
		}
	}

	if mode == modeAPI && cfg.Queue.Backend == config.BackendMemory {
		logger.Warn("memory task queue has no consumer in api mode; sibling corrections will not run")
	}

	var w *worker.Worker
	if mode != modeAPI {
		w = worker.NewWorker(worker.WorkerConfig{
			TaskQueue:       a.taskQueue,
			Regenerator:     a.regenerator,
			Refresher:       a.corpus,
			RefreshInterval: cfg.Corpus.RefreshInterval,
			Logger:          logger,
			Concurrency:     cfg.Worker.Concurrency,
			DequeueTimeout:  cfg.Worker.DequeueTimeout,
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		defer w.Stop()
	} else {
		go a.corpus.RunRefresher(ctx, cfg.Corpus.RefreshInterval)
	}

	if mode == modeWorker {
		<-ctx.Done()
		logger.Info("shutdown signal received, stopping")
		return nil
	}

	server := http.NewServer(http.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}, a.httpServices(), a.corpus, a.taskQueue, a.readiness)

	logger.Info("API server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("API server stopped")
	return nil
}
