package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/adapter/datamart"
	httpadapter "github.com/couchcryptid/wfwx-datamart-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wfwx-datamart-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/adapter/store"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/config"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/observability"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/pipeline"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// Real environment variables win over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load env file", "file", envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.DBDriver, "error", err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()
	if cfg.RunMigrations {
		if err := st.Migrate(cfg); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			return 1
		}
	}

	fetcher := datamart.NewClient(cfg.DatamartBaseURL, cfg.FetchTimeout, logger)

	var publisher pipeline.Publisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	walker := pipeline.NewWalker(fetcher, st, publisher, pipeline.WalkerConfig{
		BackfillEnabled: cfg.BackfillEnabled,
		StartYear:       cfg.BackfillStartYear,
		MissThreshold:   cfg.MissThreshold,
		DailyFloor:      cfg.DailyFloor,
		Location:        cfg.FeedLocation,
		MaxRetries:      cfg.FetchMaxRetries,
	}, logger, metrics)

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, st, st, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	code := 0
	if err := walker.Run(ctx); err != nil {
		logger.Error("ingestion aborted", "error", err)
		code = 1
	}

	var scheduler *pipeline.Scheduler
	if code == 0 && cfg.RefreshCron != "" && ctx.Err() == nil {
		scheduler, err = pipeline.NewScheduler(ctx, cfg.RefreshCron, walker, cfg.RefreshDays, logger)
		if err != nil {
			logger.Error("failed to schedule refresh", "error", err)
			code = 1
		} else {
			scheduler.Start()
			select {
			case <-ctx.Done():
			case err := <-scheduler.Err():
				logger.Error("refresh aborted", "error", err)
				code = 1
			}
		}
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete", "exit_code", code)
	return code
}
