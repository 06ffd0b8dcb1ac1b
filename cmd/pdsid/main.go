// Command pdsid serves drought index computations over HTTP and, when
// KAFKA_ENABLED, as a Kafka request/response worker.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/palmer-drought-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/palmer-drought-service/internal/adapter/kafka"
	"github.com/couchcryptid/palmer-drought-service/internal/config"
	"github.com/couchcryptid/palmer-drought-service/internal/drought"
	"github.com/couchcryptid/palmer-drought-service/internal/observability"
	"github.com/couchcryptid/palmer-drought-service/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	stack := drought.NewStack(cfg, logger, metrics)
	if path, err := stack.Invoker.Resolve(); err != nil {
		// Keep serving: /readyz reports the problem until the engine is installed.
		logger.Warn("engine not available", "error", err)
	} else {
		logger.Info("engine resolved", "path", path, "timeout", cfg.EngineTimeout)
	}

	ready := []httpadapter.ReadinessChecker{stack.Calculator}

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		processor := pipeline.NewProcessor(stack.Computer, logger)
		p = pipeline.New(reader, processor, writer, logger, metrics, cfg.BatchSize, cfg.WorkerConcurrency)
		ready = append(ready, p)
		logger.Info("kafka worker enabled",
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
			"concurrency", cfg.WorkerConcurrency,
		)
	} else {
		logger.Info("kafka worker disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(ready...), stack.Computer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if p != nil {
		g.Go(func() error {
			return p.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
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
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
