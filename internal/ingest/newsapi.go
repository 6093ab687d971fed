package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ToJen/crypto-news-agent/internal/news"
)

// NewsAPISource pulls articles from the NewsAPI "everything" endpoint with a
// single OR-joined keyword query. Page size is larger for the initial backfill
// window than for the steady-state window.
type NewsAPISource struct {
	endpoint      string
	apiKey        string
	keywords      []string
	initialWindow time.Duration
	httpClient    *http.Client
}

func NewNewsAPISource(endpoint, apiKey string, keywords []string, initialWindow time.Duration) *NewsAPISource {
	return &NewsAPISource{
		endpoint:      endpoint,
		apiKey:        apiKey,
		keywords:      keywords,
		initialWindow: initialWindow,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *NewsAPISource) Name() string { return "newsapi" }

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"publishedAt"`
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
	Message      string           `json:"message"`
}

func (s *NewsAPISource) Fetch(ctx context.Context, window time.Duration) ([]news.Article, error) {
	now := time.Now().UTC()
	since := now.Add(-window)

	pageSize := 50
	if window >= s.initialWindow {
		pageSize = 100
	}

	params := url.Values{}
	params.Add("q", strings.Join(s.keywords, " OR "))
	params.Add("language", "en")
	params.Add("sortBy", "publishedAt")
	params.Add("from", since.Format("2006-01-02"))
	params.Add("to", now.Format("2006-01-02"))
	params.Add("pageSize", strconv.Itoa(pageSize))
	params.Add("apiKey", s.apiKey)

	reqURL := fmt.Sprintf("%s?%s", s.endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build newsapi request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch newsapi: %w", err)
	}
	defer resp.Body.Close()

	var result newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode newsapi response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi error: %s: %s", resp.Status, result.Message)
	}

	articles := make([]news.Article, 0, len(result.Articles))
	for _, a := range result.Articles {
		source := a.Source.Name
		if source == "" {
			source = "Unknown"
		}
		publishedAt := a.PublishedAt
		if publishedAt.IsZero() {
			publishedAt = now
		}
		articles = append(articles, news.Article{
			Title:       a.Title,
			URL:         a.URL,
			Source:      source,
			PublishedAt: publishedAt,
			Content:     a.Content,
			Summary:     a.Description,
		})
	}
	return articles, nil
}
