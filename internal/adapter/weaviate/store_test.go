package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "github.com/ToJen/crypto-news-agent/internal/adapter/weaviate"
	"github.com/ToJen/crypto-news-agent/internal/news"
)

// mockStore stands up a stub Weaviate answering the meta and schema probes,
// delegating everything else to handler.
func mockStore(t *testing.T, handler http.HandlerFunc) (*adapter.Store, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/meta":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.27.0"}`))
		case r.URL.Path == "/v1/schema/NewsArticle":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"class": "NewsArticle", "properties": [
				{"name": "title", "dataType": ["text"]},
				{"name": "url", "dataType": ["string"]},
				{"name": "source", "dataType": ["string"]},
				{"name": "publishedAt", "dataType": ["date"]},
				{"name": "content", "dataType": ["text"]},
				{"name": "summary", "dataType": ["text"]},
				{"name": "identity", "dataType": ["int"]}
			]}`))
		default:
			handler(w, r)
		}
	}))

	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return adapter.NewStore(client, nil), ts
}

func TestStore_Upsert(t *testing.T) {
	article := news.Article{
		Title:       "BTC hits new high",
		URL:         "https://example.com/btc-high",
		Source:      "Example News",
		PublishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Content:     "Bitcoin traded above its previous record.",
	}
	wantID := news.ObjectID(news.Identity(article.URL))

	store, ts := mockStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		objects := body["objects"].([]interface{})
		assert.Len(t, objects, 1)
		obj := objects[0].(map[string]interface{})
		assert.Equal(t, wantID, obj["id"])
		props := obj["properties"].(map[string]interface{})
		assert.Equal(t, article.URL, props["url"])
		assert.Equal(t, "2025-06-01T12:00:00Z", props["publishedAt"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": wantID, "result": map[string]interface{}{}},
		})
	})
	defer ts.Close()

	err := store.Upsert(context.Background(), article, []float32{0.1, 0.2})
	assert.NoError(t, err)
}

func TestStore_UpsertRejected(t *testing.T) {
	store, ts := mockStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"result": map[string]interface{}{
				"errors": map[string]interface{}{
					"error": []map[string]interface{}{{"message": "invalid vector length"}},
				},
			}},
		})
	})
	defer ts.Close()

	err := store.Upsert(context.Background(), news.Article{URL: "https://example.com/a"}, []float32{0.1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid vector length")
}

func TestStore_Exists(t *testing.T) {
	url := "https://example.com/btc-high"
	id := news.ObjectID(news.Identity(url))

	t.Run("Indexed", func(t *testing.T) {
		store, ts := mockStore(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/objects/NewsArticle/"+id, r.URL.Path)
			assert.Equal(t, http.MethodHead, r.Method)
			w.WriteHeader(http.StatusNoContent)
		})
		defer ts.Close()

		exists, err := store.Exists(context.Background(), url)
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("NotIndexed", func(t *testing.T) {
		store, ts := mockStore(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		defer ts.Close()

		exists, err := store.Exists(context.Background(), url)
		assert.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestStore_Search(t *testing.T) {
	store, ts := mockStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"NewsArticle": []interface{}{
						map[string]interface{}{
							"title":       "ETH upgrade ships",
							"url":         "https://example.com/eth",
							"source":      "Example News",
							"publishedAt": "2025-06-01T09:30:00Z",
							"summary":     "The upgrade activated without incident.",
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	articles, err := store.Search(context.Background(), []float32{0.1, 0.2}, 10)
	assert.NoError(t, err)
	assert.Len(t, articles, 1)
	assert.Equal(t, "ETH upgrade ships", articles[0].Title)
	assert.Equal(t, "https://example.com/eth", articles[0].URL)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), articles[0].PublishedAt)
}

func TestStore_SearchGraphQLError(t *testing.T) {
	store, ts := mockStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"errors": [{"message": "vector length mismatch"}]}`))
	})
	defer ts.Close()

	_, err := store.Search(context.Background(), []float32{0.1}, 10)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "vector length mismatch")
}

func TestStore_RecentArticles(t *testing.T) {
	store, ts := mockStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		query := body["query"].(string)
		assert.True(t, strings.Contains(query, "publishedAt"))
		assert.True(t, strings.Contains(query, "GreaterThanEqual"))
		assert.True(t, strings.Contains(query, "limit: 100"))

		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"NewsArticle": []interface{}{
						map[string]interface{}{
							"title":       "Fresh article",
							"url":         "https://example.com/fresh",
							"publishedAt": "2025-06-01T09:30:00Z",
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	articles, err := store.RecentArticles(context.Background(), 24*time.Hour)
	assert.NoError(t, err)
	assert.Len(t, articles, 1)
	assert.Equal(t, "Fresh article", articles[0].Title)
}

func TestStore_Count(t *testing.T) {
	store, ts := mockStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"NewsArticle": []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{"count": 42.0},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	count, err := store.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 42, count)
}
