package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ToJen/crypto-news-agent/features/articles"
	"github.com/ToJen/crypto-news-agent/features/ask"
	"github.com/ToJen/crypto-news-agent/features/health"
	"github.com/ToJen/crypto-news-agent/internal/config"
	"github.com/ToJen/crypto-news-agent/internal/ingest"
	"github.com/ToJen/crypto-news-agent/internal/middleware"
	"github.com/ToJen/crypto-news-agent/internal/news"
)

// VectorStore is the article index surface the application consumes.
type VectorStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	Upsert(ctx context.Context, article news.Article, embedding []float32) error
	Search(ctx context.Context, embedding []float32, limit int) ([]news.Article, error)
	RecentArticles(ctx context.Context, window time.Duration) ([]news.Article, error)
	Count(ctx context.Context) (int, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type App struct {
	Handler   http.Handler
	Scheduler *ingest.Scheduler

	port int
}

// New wires the features together: the ask pipeline, health and article
// listing on the HTTP side, the ingestion scheduler on the background side.
func New(cfg *config.Config, store VectorStore, embedder Embedder, chat ask.ChatModel) (*App, error) {
	// Feature: Ask
	askService := ask.NewService(embedder, store, chat, cfg.MaxRetrievalResults)
	streamer := ask.NewStreamer(cfg.StreamChunkSize)
	askHandler := ask.NewHandler(askService, streamer, time.Duration(cfg.StreamDelayMs)*time.Millisecond)

	// Feature: Health
	stats := &ingest.Stats{}
	healthHandler := health.NewHandler(store, stats, cfg.FetchIntervalSeconds, cfg.NewsKeywords, cfg.RSSFeeds)

	// Feature: Articles
	articlesHandler := articles.NewHandler(store)

	// Ingestion
	sources := []ingest.Source{
		ingest.NewNewsAPISource(cfg.NewsAPIEndpoint, cfg.NewsAPIKey, cfg.NewsKeywords,
			time.Duration(cfg.InitialFetchHours)*time.Hour),
		ingest.NewRSSSource(cfg.RSSFeeds),
	}
	scheduler := ingest.NewScheduler(sources, store, embedder, stats, ingest.RealClock(), ingest.SchedulerConfig{
		Interval:      time.Duration(cfg.FetchIntervalSeconds) * time.Second,
		ErrorBackoff:  time.Duration(cfg.ErrorBackoffSeconds) * time.Second,
		InitialWindow: time.Duration(cfg.InitialFetchHours) * time.Hour,
		OngoingWindow: time.Duration(cfg.OngoingFetchHours) * time.Hour,
		CallTimeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})

	// Middleware: per-request deadline. http.TimeoutHandler buffers the body
	// which breaks SSE, so the deadline rides on the context instead.
	withTimeout := func(d time.Duration, next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next(w, r.WithContext(ctx))
		}
	}
	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /ask", middleware.CorrelationID(withTimeout(requestTimeout, askHandler.Ask)))
	mux.Handle("GET /articles", middleware.CorrelationID(http.HandlerFunc(articlesHandler.List)))
	mux.Handle("GET /health", middleware.CorrelationID(http.HandlerFunc(healthHandler.Check)))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": "Crypto News Agent API",
			"version": "1.0.0",
		})
	})

	// CORS wraps the whole mux so preflight OPTIONS requests succeed on
	// method-scoped routes.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		mux.ServeHTTP(w, r)
	})

	return &App{
		Handler:   handler,
		Scheduler: scheduler,
		port:      cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
