package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/tokenizer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/bm25-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/storage/file"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/redis"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"document_store", cfg.Indexer.DocumentStore,
		"write_policy", cfg.Indexer.WritePolicy,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
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
	slog.Info("engine ready", "documents", engine.Stats().Documents)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	var sink ingesthandler.Sink = publisher.NewDirect(engine)
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
		defer producer.Close()
		sink = publisher.New(producer)

		// Every replica reloads on completion, so each needs its own group.
		reload := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, kafka.ConsumerOptions{
			GroupID:     cfg.Kafka.ConsumerGroup + "-searcher-" + uuid.NewString(),
			StartOffset: kafka.LastOffset,
		}, consumer.HandleIndexComplete(engine))
		go func() {
			if err := reload.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
		slog.Info("kafka ingestion enabled",
			"ingest_topic", cfg.Kafka.Topics.DocumentIngest,
			"complete_topic", cfg.Kafka.Topics.IndexComplete,
		)
	}

	if cfg.Indexer.WatchDocuments && backend.FilePath != "" {
		// Saves made by this process land here too; Reload ignores them.
		watcher := file.NewWatcher(backend.FilePath, 250*time.Millisecond, func(ctx context.Context) error {
			_, _, err := engine.Reload(ctx)
			return err
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("document watcher error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		stats := engine.Stats()
		if !stats.Initialized {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "no documents loaded"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents, seq %d", stats.Documents, stats.Seq)}
	})
	if backend.Ping != nil {
		checker.Register(backend.Name, health.Ping(backend.Ping))
	}
	if redisClient != nil {
		checker.Register("redis", health.Optional(redisClient.Ping))
	}

	exec := executor.New(engine, ranker.Params{K1: cfg.Search.K1, B: cfg.Search.B})
	h := handler.New(engine, exec, queryCache, m, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})
	ingestH := ingesthandler.New(sink)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("POST /api/v1/documents", ingestH.Ingest)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
