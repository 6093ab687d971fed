package ingest

import (
	"context"
	"time"

	"github.com/ToJen/crypto-news-agent/internal/news"
)

// Source fetches article candidates published inside the lookback window.
// Fetch returns candidates in source order; the scheduler merges sources in
// the order they were registered.
type Source interface {
	Name() string
	Fetch(ctx context.Context, window time.Duration) ([]news.Article, error)
}
