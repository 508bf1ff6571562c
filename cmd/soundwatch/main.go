package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/soundwatch/noise-monitor-service/internal/adapter/http"
	kafkaadapter "github.com/soundwatch/noise-monitor-service/internal/adapter/kafka"
	"github.com/soundwatch/noise-monitor-service/internal/adapter/mongo"
	mqttadapter "github.com/soundwatch/noise-monitor-service/internal/adapter/mqtt"
	"github.com/soundwatch/noise-monitor-service/internal/adapter/synthetic"
	"github.com/soundwatch/noise-monitor-service/internal/config"
	"github.com/soundwatch/noise-monitor-service/internal/observability"
	"github.com/soundwatch/noise-monitor-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	store, err := mongo.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase, cfg.MongoCollection, logger)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("mongodb close error", "error", err)
		}
	})
	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}

	var history pipeline.HistoryStore = store
	if cfg.HistoryCacheTTL > 0 {
		history = mongo.NewCachedHistory(store, cfg.HistoryCacheTTL, nil, metrics)
		logger.Info("history cache enabled", "ttl", cfg.HistoryCacheTTL)
	}
	classifier := pipeline.NewClassifier(cfg.ClassifierMode, history, logger, metrics)
	logger.Info("classifier configured", "mode", cfg.ClassifierMode)

	extractor, closeExtractor, err := newExtractor(cfg, logger)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, closeExtractor)

	loader := pipeline.MultiLoader{store}
	if cfg.KafkaSinkTopic != "" {
		writer := kafkaadapter.NewWriter(cfg, logger)
		cleanups = append(cleanups, func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		})
		loader = append(loader, writer)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic)
	}

	p := pipeline.New(extractor, pipeline.NewTransformer(classifier, logger), loader, logger, metrics, cfg.BatchSize)
	relabeler := pipeline.NewRelabeler(store, classifier, nil, cfg.RelabelInterval, cfg.RelabelBatchSize, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.ReadinessChecks{store, p}, store, classifier, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error { return relabeler.Run(gctx) })
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// newExtractor builds the ingestion source named by INGEST_SOURCE and a func
// that releases it.
func newExtractor(cfg *config.Config, logger *slog.Logger) (pipeline.BatchExtractor, func(), error) {
	switch cfg.IngestSource {
	case config.SourceKafka:
		reader := kafkaadapter.NewReader(cfg, logger)
		logger.Info("ingesting from kafka", "topic", cfg.KafkaSourceTopic, "group", cfg.KafkaGroupID)
		return reader, func() {
			if err := reader.Close(); err != nil {
				logger.Error("kafka reader close error", "error", err)
			}
		}, nil

	case config.SourceMQTT:
		client, err := mqttadapter.NewClient(mqttadapter.ClientConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		sub := mqttadapter.NewSubscriber(client, cfg.MQTTTopic, cfg.BatchSize*4, cfg.BatchFlushInterval, nil, logger)
		if err := sub.Subscribe(); err != nil {
			mqttadapter.Disconnect(client)
			return nil, nil, err
		}
		return sub, func() {
			if err := sub.Close(); err != nil {
				logger.Error("mqtt unsubscribe error", "error", err)
			}
			mqttadapter.Disconnect(client)
		}, nil

	default:
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		gen := synthetic.NewGenerator(rng, nil, cfg.IngestInterval, cfg.DeviceLocation, logger)
		logger.Info("generating synthetic readings", "interval", cfg.IngestInterval, "location", cfg.DeviceLocation)
		return gen, gen.Close, nil
	}
}
