package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ToJen/crypto-news-agent/internal/ingest"
)

// ArticleCounter reports the number of indexed articles.
type ArticleCounter interface {
	Count(ctx context.Context) (int, error)
}

// StatsSource exposes the ingestion counters.
type StatsSource interface {
	Snapshot() ingest.Snapshot
}

type Handler struct {
	counter              ArticleCounter
	stats                StatsSource
	fetchIntervalSeconds int
	keywords             []string
	rssFeeds             []string
}

func NewHandler(counter ArticleCounter, stats StatsSource, fetchIntervalSeconds int, keywords, rssFeeds []string) *Handler {
	return &Handler{
		counter:              counter,
		stats:                stats,
		fetchIntervalSeconds: fetchIntervalSeconds,
		keywords:             keywords,
		rssFeeds:             rssFeeds,
	}
}

type databaseStatus struct {
	Articles int    `json:"articles"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type ingestionStatus struct {
	TotalArticles        int      `json:"total_articles"`
	TotalProcessed       int64    `json:"total_processed"`
	FetchCycles          int64    `json:"fetch_cycles"`
	FetchIntervalSeconds int      `json:"fetch_interval_seconds"`
	LastFetchTime        *string  `json:"last_fetch_time"`
	KeywordsCount        int      `json:"keywords_count"`
	Keywords             []string `json:"keywords"`
	RSSFeeds             []string `json:"rss_feeds"`
}

type response struct {
	Status    string          `json:"status"`
	Service   string          `json:"service"`
	Database  databaseStatus  `json:"database"`
	Ingestion ingestionStatus `json:"ingestion"`
}

// Check always answers 200. A broken index downgrades the body to "degraded"
// instead of failing the request, so probes can tell "down" from "unhealthy".
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := h.stats.Snapshot()

	resp := response{
		Status:  "healthy",
		Service: "crypto-news-agent",
		Database: databaseStatus{
			Status: "connected",
		},
		Ingestion: ingestionStatus{
			TotalProcessed:       snap.TotalProcessed,
			FetchCycles:          snap.FetchCycles,
			FetchIntervalSeconds: h.fetchIntervalSeconds,
			KeywordsCount:        len(h.keywords),
			Keywords:             h.keywords,
			RSSFeeds:             h.rssFeeds,
		},
	}

	if snap.LastFetchTime != nil {
		ts := snap.LastFetchTime.Format(time.RFC3339)
		resp.Ingestion.LastFetchTime = &ts
	}

	count, err := h.counter.Count(ctx)
	if err != nil {
		slog.WarnContext(ctx, "article count failed", "error", err)
		resp.Status = "degraded"
		resp.Database.Status = "error"
		resp.Database.Error = err.Error()
	} else {
		resp.Database.Articles = count
		resp.Ingestion.TotalArticles = count
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
