package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/assembler"
	"github.com/campuskb/assist/internal/cache"
	"github.com/campuskb/assist/internal/config"
	"github.com/campuskb/assist/internal/confidence"
	"github.com/campuskb/assist/internal/embedder"
	"github.com/campuskb/assist/internal/expander"
	"github.com/campuskb/assist/internal/history"
	"github.com/campuskb/assist/internal/llm"
	"github.com/campuskb/assist/internal/logger"
	"github.com/campuskb/assist/internal/pipeline"
	"github.com/campuskb/assist/internal/reranker"
	"github.com/campuskb/assist/internal/retriever"
	"github.com/campuskb/assist/internal/server"
	"github.com/campuskb/assist/internal/synthesizer"
	"github.com/campuskb/assist/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting assist service",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("environment", cfg.Environment),
	)

	cacheStore, closeCache, err := buildCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	histStore, closeHistory, err := buildHistory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeHistory()

	vecStore, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("connect to qdrant: %w", err)
	}
	defer vecStore.Close()
	log.Info("connected to Qdrant",
		zap.String("url", cfg.QdrantGRPCURL),
		zap.String("collection", cfg.QdrantCollection),
	)

	emb := embedder.NewCached(buildEmbedder(cfg), cacheStore, log)
	llmClient := buildLLM(cfg)

	retry := llm.RetryPolicy{
		Timeout: cfg.GenerateTimeout,
		Retries: cfg.MaxRetries,
		Backoff: cfg.RetryBackoff,
	}

	exp := expander.New(llmClient, expander.Config{
		MaxVariants: cfg.MaxVariants,
		Model:       llmModel(cfg),
		Retry: llm.RetryPolicy{
			Timeout: cfg.ExpandTimeout,
			Retries: cfg.MaxRetries,
			Backoff: cfg.RetryBackoff,
		},
	}, log)

	ret := retriever.New(emb, vecStore, log)
	rr := buildReranker(cfg, llmClient, log)
	asm := assembler.New(assembler.Config{
		PerDocCap:  cfg.PerDocCap,
		CharBudget: cfg.CharBudget,
	}, log)
	syn := synthesizer.New(llmClient, histStore, synthesizer.Config{
		Model:       llmModel(cfg),
		Temperature: 0.2,
		MaxTokens:   1024,
		Retry:       retry,
	}, log)
	scorer := confidence.New(confidence.Config{
		Weights: confidence.Weights{
			Similarity: cfg.ConfSimilarityWeight,
			Coverage:   cfg.ConfCoverageWeight,
			Quality:    cfg.ConfQualityWeight,
			Diversity:  cfg.ConfDiversityWeight,
		},
		Top1Weight:           cfg.ConfTop1Weight,
		TopMeanWeight:        cfg.ConfTopMeanWeight,
		CoverageSimThreshold: cfg.CoverageSimThreshold,
		HedgingPenaltyFactor: cfg.HedgingPenaltyFactor,
	})

	p := pipeline.New(exp, ret, rr, asm, syn, scorer, histStore, pipeline.Config{
		TopK:          cfg.TopK,
		HistoryWindow: cfg.HistoryWindow,
	}, log)

	srv := server.New(p, vecStore, server.Config{
		Port:           cfg.HTTPPort,
		APIKeys:        cfg.APIKeys,
		AllowedOrigins: cfg.AllowedOrigins,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

func buildCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case "redis":
		store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
		return store, func() { _ = store.Close() }, nil
	default:
		return cache.NewMemoryStore(), func() {}, nil
	}
}

func buildHistory(ctx context.Context, cfg *config.Config, log *zap.Logger) (history.Store, func(), error) {
	switch cfg.HistoryBackend {
	case "postgres":
		store, err := history.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("ensure history schema: %w", err)
		}
		log.Info("connected to PostgreSQL")
		return store, store.Close, nil
	default:
		store := history.NewDefaultMemoryStore()
		return store, store.Close, nil
	}
}

func buildEmbedder(cfg *config.Config) embedder.Embedder {
	if cfg.EmbeddingProvider == "openai" {
		return embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.OpenAIEmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
		})
	}
	return embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:   cfg.OllamaURL,
		Model:     cfg.OllamaEmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
	})
}

func buildLLM(cfg *config.Config) llm.Client {
	if cfg.LLMProvider == "openai" {
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAILLMModel,
		})
	}
	return llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
	)
}

func llmModel(cfg *config.Config) string {
	if cfg.LLMProvider == "openai" {
		return cfg.OpenAILLMModel
	}
	return cfg.OllamaLLMModel
}

func buildReranker(cfg *config.Config, client llm.Client, log *zap.Logger) reranker.Reranker {
	overlap := reranker.NewOverlapReranker(reranker.OverlapConfig{
		SimilarityWeight: cfg.RerankSimilarityWeight,
		OverlapWeight:    cfg.RerankOverlapWeight,
	})
	if cfg.RerankerMode == "llm" {
		return reranker.NewLLMReranker(client, overlap, log, reranker.WithModel(llmModel(cfg)))
	}
	return overlap
}

var (
	_ vectorstore.VectorStore = (*vectorstore.QdrantStore)(nil)
	_ embedder.Embedder       = (*embedder.CachedEmbedder)(nil)
	_ llm.Client              = (*llm.OllamaClient)(nil)
	_ llm.Client              = (*llm.OpenAIClient)(nil)
	_ history.Store           = (*history.PostgresStore)(nil)
	_ cache.Store             = (*cache.RedisStore)(nil)
)
