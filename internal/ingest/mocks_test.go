package ingest_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ToJen/crypto-news-agent/internal/news"
)

// Mocks

type MockSource struct {
	mock.Mock
	name string
}

func (m *MockSource) Name() string { return m.name }

func (m *MockSource) Fetch(ctx context.Context, window time.Duration) ([]news.Article, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]news.Article), args.Error(1)
}

type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) Exists(ctx context.Context, url string) (bool, error) {
	args := m.Called(ctx, url)
	return args.Bool(0), args.Error(1)
}

func (m *MockVectorStore) Upsert(ctx context.Context, article news.Article, embedding []float32) error {
	args := m.Called(ctx, article, embedding)
	return args.Error(0)
}

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// fakeClock drives the scheduler loop from tests. After always hands back the
// same channel; send on it to release the next cycle.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	ch    chan time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), ch: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	return c.ch
}

func (c *fakeClock) waited() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}
