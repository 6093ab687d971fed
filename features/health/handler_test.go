package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ToJen/crypto-news-agent/features/health"
	"github.com/ToJen/crypto-news-agent/internal/ingest"
)

type MockCounter struct{ mock.Mock }

func (m *MockCounter) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newHandler(counter *MockCounter, stats *ingest.Stats) *health.Handler {
	return health.NewHandler(counter, stats, 120,
		[]string{"crypto", "bitcoin"},
		[]string{"https://example.com/rss"})
}

func doCheck(t *testing.T, h *health.Handler) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Check(rec, req)

	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth_Healthy(t *testing.T) {
	counter := new(MockCounter)
	counter.On("Count", mock.Anything).Return(42, nil)

	stats := &ingest.Stats{}
	stats.AddProcessed(7)
	stats.IncrementCycles()
	stats.MarkFetched(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	code, body := doCheck(t, newHandler(counter, stats))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "crypto-news-agent", body["service"])

	db := body["database"].(map[string]interface{})
	assert.Equal(t, float64(42), db["articles"])
	assert.Equal(t, "connected", db["status"])

	ing := body["ingestion"].(map[string]interface{})
	assert.Equal(t, float64(42), ing["total_articles"])
	assert.Equal(t, float64(7), ing["total_processed"])
	assert.Equal(t, float64(1), ing["fetch_cycles"])
	assert.Equal(t, float64(120), ing["fetch_interval_seconds"])
	assert.Equal(t, float64(2), ing["keywords_count"])
	assert.Equal(t, "2025-06-01T12:00:00Z", ing["last_fetch_time"])
}

func TestHealth_DegradedOnCountError(t *testing.T) {
	counter := new(MockCounter)
	counter.On("Count", mock.Anything).Return(0, errors.New("connection refused"))

	code, body := doCheck(t, newHandler(counter, &ingest.Stats{}))

	// Still a 200: the probe call itself never fails.
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])

	db := body["database"].(map[string]interface{})
	assert.Equal(t, "error", db["status"])
	assert.Equal(t, float64(0), db["articles"])
}

func TestHealth_NoFetchYet(t *testing.T) {
	counter := new(MockCounter)
	counter.On("Count", mock.Anything).Return(0, nil)

	_, body := doCheck(t, newHandler(counter, &ingest.Stats{}))

	ing := body["ingestion"].(map[string]interface{})
	assert.Nil(t, ing["last_fetch_time"])
	assert.Equal(t, float64(0), ing["fetch_cycles"])
}
