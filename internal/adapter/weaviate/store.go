package weaviate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/ToJen/crypto-news-agent/internal/news"
	"github.com/ToJen/crypto-news-agent/internal/vector"
)

// recentLimit caps window queries regardless of how many articles qualify.
const recentLimit = 100

// defaultDimension is assumed when the embedder cannot be probed at startup.
const defaultDimension = 1536

// Embedder is the probe used to discover the vector width at schema creation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store persists articles and their embeddings in Weaviate. Writes for the
// same URL always land on the same object id, so repeated ingestion of a URL
// overwrites rather than duplicates.
type Store struct {
	client   *weaviate.Client
	embedder Embedder

	mu    sync.Mutex
	ready bool
}

func NewStore(client *weaviate.Client, embedder Embedder) *Store {
	return &Store{client: client, embedder: embedder}
}

// EnsureReady creates the article class if it does not exist yet. Safe to call
// from multiple goroutines; the schema check runs once and is cached after the
// first success.
func (s *Store) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	dimension := defaultDimension
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, "dimension probe")
		if err != nil {
			slog.WarnContext(ctx, "dimension probe failed, using default", "error", err, "dimension", dimension)
		} else {
			dimension = len(vec)
		}
	}

	adapter := vector.NewWeaviateClientAdapter(s.client)
	if err := vector.EnsureSchema(ctx, adapter, dimension); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	s.ready = true
	return nil
}

// Upsert writes the article and its embedding as a single object, replacing
// any existing object with the same URL identity.
func (s *Store) Upsert(ctx context.Context, article news.Article, embedding []float32) error {
	if err := s.EnsureReady(ctx); err != nil {
		return err
	}

	identity := news.Identity(article.URL)
	obj := &models.Object{
		Class: vector.ClassName,
		ID:    strfmt.UUID(news.ObjectID(identity)),
		Properties: map[string]interface{}{
			"title":       article.Title,
			"url":         article.URL,
			"source":      article.Source,
			"publishedAt": article.PublishedAt.UTC().Format(time.RFC3339),
			"content":     article.Content,
			"summary":     article.Summary,
			"identity":    identity,
		},
		Vector: embedding,
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(obj).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch write: %w", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch write rejected: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Exists reports whether an article with the given URL is already indexed.
// Lookup failures degrade to (false, err); callers treat an error as "assume
// new" so a flaky read never blocks ingestion.
func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return false, err
	}

	id := news.ObjectID(news.Identity(url))
	exists, err := s.client.Data().Checker().
		WithClassName(vector.ClassName).
		WithID(id).
		Do(ctx)
	if err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return exists, nil
}

// Search returns up to limit articles ordered by decreasing cosine similarity
// to the query embedding. An empty result is not an error.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]news.Article, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryEmbedding)

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(articleFields()...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	return articlesFromResponse(res.Data), nil
}

// RecentArticles returns articles published inside the window, newest window
// first capped at 100. This is a filter-only read, similarity plays no part.
func (s *Store) RecentArticles(ctx context.Context, window time.Duration) ([]news.Article, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-window)
	where := filters.Where().
		WithPath([]string{"publishedAt"}).
		WithOperator(filters.GreaterThanEqual).
		WithValueDate(cutoff)

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithWhere(where).
		WithLimit(recentLimit).
		WithFields(articleFields()...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("recent articles: %w", err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	return articlesFromResponse(res.Data), nil
}

// Count returns the total number of indexed articles. Callers that only need
// the number for reporting substitute 0 on error.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return 0, err
	}

	meta := graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(meta).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("aggregate count: %w", err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("aggregate count: unexpected response shape")
	}
	rows, ok := agg[vector.ClassName].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	metaVal, ok := row["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := metaVal["count"].(float64)
	return int(count), nil
}

func articleFields() []graphql.Field {
	return []graphql.Field{
		{Name: "title"},
		{Name: "url"},
		{Name: "source"},
		{Name: "publishedAt"},
		{Name: "content"},
		{Name: "summary"},
	}
}

func articlesFromResponse(data map[string]models.JSONObject) []news.Article {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := get[vector.ClassName].([]interface{})
	if !ok {
		return nil
	}

	articles := make([]news.Article, 0, len(raw))
	for _, r := range raw {
		props, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		var a news.Article
		if title, ok := props["title"].(string); ok {
			a.Title = title
		}
		if url, ok := props["url"].(string); ok {
			a.URL = url
		}
		if source, ok := props["source"].(string); ok {
			a.Source = source
		}
		if published, ok := props["publishedAt"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, published); err == nil {
				a.PublishedAt = ts
			}
		}
		if content, ok := props["content"].(string); ok {
			a.Content = content
		}
		if summary, ok := props["summary"].(string); ok {
			a.Summary = summary
		}
		articles = append(articles, a)
	}
	return articles
}
