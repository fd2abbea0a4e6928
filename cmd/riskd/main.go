package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/disaster-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/disaster-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-risk-service/internal/adapter/predictor"
	"github.com/couchcryptid/disaster-risk-service/internal/assess"
	"github.com/couchcryptid/disaster-risk-service/internal/config"
	"github.com/couchcryptid/disaster-risk-service/internal/domain"
	"github.com/couchcryptid/disaster-risk-service/internal/observability"
	"github.com/couchcryptid/disaster-risk-service/internal/pipeline"
	"github.com/couchcryptid/disaster-risk-service/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var fallback []domain.ModelDescriptor
	if cfg.CatalogFile != "" {
		fallback, err = config.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			logger.Error("failed to load catalog file", "path", cfg.CatalogFile, "error", err)
			os.Exit(1)
		}
		logger.Info("fallback catalog loaded", "path", cfg.CatalogFile, "models", len(fallback))
	}

	catalog := predictor.NewCatalog(cfg.PredictorBaseURL, cfg.CatalogTimeout, fallback, metrics, logger)
	client := predictor.NewClient(cfg.PredictorBaseURL, cfg.PredictorLegacyURL, cfg.PredictorTimeout, metrics, logger)
	assessor := assess.New(catalog, client, domain.NewSynthesizer(nil), metrics, logger)
	sessions := session.NewStore(cfg.SessionCacheSize, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Batch mode is feature-flagged via KAFKA_ENABLED. Without it the service
	// is ready as soon as it listens.
	var (
		ready  sharedobs.ReadinessChecker = httpadapter.ReadinessFunc(func(context.Context) error { return nil })
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		p := pipeline.New(reader, pipeline.NewTransformer(assessor, logger), writer, logger, metrics, cfg.BatchSize)
		ready = p

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
		logger.Info("kafka batch mode enabled",
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
			"batch_size", cfg.BatchSize,
		)
	} else {
		logger.Info("kafka batch mode disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, assessor, catalog, sessions, ready, cfg.CORSAllowedOrigins, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
