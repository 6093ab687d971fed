package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ToJen/crypto-news-agent/internal/news"
)

// RSSSource pulls articles from a fixed list of RSS feeds. A feed that fails
// to fetch or parse is skipped with a warning; the remaining feeds still
// contribute. RSS items carry no reliable body, so the item description serves
// as both content and summary, matching what NewsAPI returns for most
// paywalled sources.
type RSSSource struct {
	feeds  []string
	parser *gofeed.Parser
}

func NewRSSSource(feeds []string) *RSSSource {
	return &RSSSource{feeds: feeds, parser: gofeed.NewParser()}
}

func (s *RSSSource) Name() string { return "rss" }

// Fetch ignores the window: feeds only ever carry their most recent items and
// the index rejects anything already seen.
func (s *RSSSource) Fetch(ctx context.Context, window time.Duration) ([]news.Article, error) {
	var articles []news.Article

	for _, feedURL := range s.feeds {
		feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			slog.WarnContext(ctx, "rss feed failed, skipping", "feed", feedURL, "error", err)
			continue
		}

		feedTitle := feed.Title
		if feedTitle == "" {
			feedTitle = "RSS Feed"
		}

		for _, item := range feed.Items {
			publishedAt := time.Now().UTC()
			if item.PublishedParsed != nil {
				publishedAt = item.PublishedParsed.UTC()
			}
			articles = append(articles, news.Article{
				Title:       item.Title,
				URL:         item.Link,
				Source:      feedTitle,
				PublishedAt: publishedAt,
				Content:     item.Description,
				Summary:     item.Description,
			})
		}
	}

	return articles, nil
}
