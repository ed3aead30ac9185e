package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"document_store", cfg.Indexer.DocumentStore,
		"incremental", cfg.Indexer.Incremental,
	)
	if cfg.Indexer.DocumentStore == config.StoreNone || !cfg.Indexer.AutoSave {
		slog.Warn("documents are not persisted after each batch, searchers will not see them on reload")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open document store", "backend", cfg.Indexer.DocumentStore, "error", err)
		os.Exit(1)
	}
	if backend.Close != nil {
		defer backend.Close()
	}

	tok, err := tokenizer.FromName(cfg.Indexer.Tokenizer, cfg.Indexer.Language, cfg.Indexer.StopWords)
	if err != nil {
		slog.Error("failed to create tokenizer", "error", err)
		os.Exit(1)
	}
	engine, err := indexer.NewEngine(cfg.Indexer, tok, backend.Store)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	engine.SetMetrics(m)
	if err := indexer.Warm(ctx, engine, resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}); err != nil {
		slog.Error("failed to load documents", "error", err)
		os.Exit(1)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	onIndexed := func(ctx context.Context, batchID string, snap *indexer.Snapshot) error {
		path := engine.SnapshotPath()
		if _, err := engine.WriteSnapshot(path); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		return producer.Publish(ctx, consumer.CompletionEvent(batchID, snap, path))
	}
	ingestConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		kafka.ConsumerOptions{},
		consumer.HandleIngest(engine, onIndexed),
	)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
		"documents", engine.Stats().Documents,
	)

	if err := ingestConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	if cfg.Indexer.DocumentStore != config.StoreNone && engine.Stats().Documents > 0 {
		slog.Info("saving documents before shutdown")
		saveCtx, cancel := context.WithTimeout(context.Background(), cfg.Indexer.PersistTimeout)
		if err := engine.Save(saveCtx); err != nil {
			slog.Error("final save failed", "error", err)
		}
		cancel()
	}

	slog.Info("indexer service stopped")
}
