package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/ToJen/crypto-news-agent/internal/adapter/gemini"
	"github.com/ToJen/crypto-news-agent/internal/adapter/openai"
	wstore "github.com/ToJen/crypto-news-agent/internal/adapter/weaviate"
	"github.com/ToJen/crypto-news-agent/internal/config"
	"github.com/ToJen/crypto-news-agent/internal/embedding"
)

type Dependencies struct {
	Store    *wstore.Store
	Embedder *embedding.Failover
	Chat     *openai.Client
}

// Bootstrap builds the external clients: OpenAI, the optional Gemini
// fallback, and the Weaviate store with its schema ensured. Weaviate tends to
// come up after the app in compose setups, so the schema check retries.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	oaClient := openai.NewClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.LLMModel)

	var fallback embedding.Embedder
	if cfg.GeminiAPIKey != "" {
		gEmbedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
		if err != nil {
			slog.Warn("gemini fallback unavailable, running without failover", "error", err)
		} else {
			fallback = gEmbedder
		}
	} else {
		slog.Info("no gemini api key configured, running without embedding failover")
	}
	embedder := embedding.NewFailover(oaClient, fallback)

	wCfg := weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme}
	wClient, err := weaviate.NewClient(wCfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}
	store := wstore.NewStore(wClient, embedder)

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	if err := EnsureReadyWithRetry(ctx, store, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		return nil, fmt.Errorf("weaviate schema error: %w", err)
	}

	return &Dependencies{
		Store:    store,
		Embedder: embedder,
		Chat:     oaClient,
	}, nil
}

// SchemaEnsurer prepares the article collection.
type SchemaEnsurer interface {
	EnsureReady(ctx context.Context) error
}

// EnsureReadyWithRetry retries the schema check until it succeeds or the
// attempts run out.
func EnsureReadyWithRetry(ctx context.Context, store SchemaEnsurer, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.EnsureReady(ctx); err == nil {
			return nil
		}
		slog.Warn("vector store not ready, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
