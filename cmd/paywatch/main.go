package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/config"
	"github.com/akashkatte-1/rag-paywatch/internal/db"
	dbRedis "github.com/akashkatte-1/rag-paywatch/internal/db/redis"
	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/eventlog"
	logpkg "github.com/akashkatte-1/rag-paywatch/internal/logger"
	"github.com/akashkatte-1/rag-paywatch/internal/metrics"
	chunkrepo "github.com/akashkatte-1/rag-paywatch/internal/repository/chunk"
	"github.com/akashkatte-1/rag-paywatch/internal/repository/embcache"
	"github.com/akashkatte-1/rag-paywatch/internal/repository/memindex"
	"github.com/akashkatte-1/rag-paywatch/internal/repository/snapshot"
	"github.com/akashkatte-1/rag-paywatch/internal/textsplit"
	chiTransport "github.com/akashkatte-1/rag-paywatch/internal/transport/chi"
	"github.com/akashkatte-1/rag-paywatch/internal/transport/currency"
	geminiChat "github.com/akashkatte-1/rag-paywatch/internal/transport/gemini"
	openaiTransport "github.com/akashkatte-1/rag-paywatch/internal/transport/openai"
	"github.com/akashkatte-1/rag-paywatch/internal/usecase/agent"
	embeddinguc "github.com/akashkatte-1/rag-paywatch/internal/usecase/embedding"
	healthuc "github.com/akashkatte-1/rag-paywatch/internal/usecase/health"
	"github.com/akashkatte-1/rag-paywatch/internal/usecase/ingest"
	"github.com/akashkatte-1/rag-paywatch/internal/usecase/tools"
	"github.com/akashkatte-1/rag-paywatch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting paywatch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterAgentMetrics()

	ctx := context.Background()

	// Database is only needed for the redis index driver or the embedding cache.
	var store db.Store
	if cfg.NeedsDatabase() {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database", zap.Strings("db_addrs", cfg.Database.Addrs))
	}

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Bool("cache", cfg.Cache.Enabled),
	)

	chat, err := buildChat(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create chat model", zap.Error(err))
	}

	rates := currency.New(currency.Config{
		BaseURL: cfg.Currency.BaseURL,
		Timeout: config.Seconds(cfg.Currency.TimeoutSec),
		Logger:  logger,
	})
	if cfg.Currency.BaseURL == "" {
		logger.Warn("Currency API not configured; conversions will fall back to INR")
	}

	snapshots := snapshot.New(logger)
	defer snapshots.Close(context.Background())

	var builder ingest.IndexBuilder = memindex.Builder{}
	if cfg.Index.Driver == config.DriverRedis {
		builder = chunkrepo.NewBuilder(store, cfg.Storage.KeyPrefix, chunkrepo.HNSWConfig{
			M:              cfg.Index.HNSWM,
			EFConstruction: cfg.Index.HNSWEFConstruct,
		}, logger)
	}

	splitter, err := textsplit.New(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		logger.Fatal("Invalid chunking settings", zap.Error(err))
	}
	ingestSvc := ingest.New(splitter, embedder, builder, snapshots)
	agentSvc := agent.New(chat, snapshots, tools.Deps{Rates: rates, Embedder: embedder}, cfg.LLM.MaxSteps).
		WithCallTimeout(config.Seconds(cfg.LLM.TimeoutSec))

	events, err := eventlog.NewWriter(cfg.Logging.EventsDir, logger)
	if err != nil {
		logger.Fatal("Failed to open event log directory", zap.Error(err))
	}
	logs := eventlog.NewReader(cfg.Logging.EventsDir, logger)

	// Pass nil interface (not typed nil pointer!) when no database is configured.
	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(pinger, embedder, snapshots)

	server := chiTransport.NewServer(ingestSvc, agentSvc, events, logs, healthSvc, logger).
		WithMaxUploadBytes(cfg.HTTP.MaxUploadBytes)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout: config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) *embeddinguc.InstrumentedEmbedder {
	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.Cache.Enabled && store != nil {
		embedder = embcache.New(base, store, embcache.Options{
			KeyPrefix: cfg.Storage.KeyPrefix + "emb_cache:" + cfg.Embedding.Model + ":",
			TTL:       config.Seconds(cfg.Cache.TTLSec),
		}, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Provider, cfg.Embedding.Model, logger)
}

// buildChat selects the tool-calling chat model.
func buildChat(ctx context.Context, cfg config.Config, logger *zap.Logger) (agent.ChatModel, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		chat, err := geminiChat.NewChat(ctx, &geminiChat.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini chat: %w", err)
		}
		return chat, nil
	default:
		return openaiTransport.NewChat(&openaiTransport.ChatConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Provider:    cfg.LLM.Provider,
			Logger:      logger,
		}), nil
	}
}
