package embedding_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ToJen/crypto-news-agent/internal/embedding"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func TestFailover_PrimaryHealthy(t *testing.T) {
	primary := new(MockEmbedder)
	fallback := new(MockEmbedder)
	primary.On("Embed", mock.Anything, "hello").Return([]float32{0.1, 0.2}, nil)

	f := embedding.NewFailover(primary, fallback)
	vec, err := f.Embed(context.Background(), "hello")

	assert.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.False(t, f.Demoted())
	fallback.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestFailover_StickySwitch(t *testing.T) {
	primary := new(MockEmbedder)
	fallback := new(MockEmbedder)
	primary.On("Embed", mock.Anything, "first").Return(nil, errors.New("quota exceeded")).Once()
	fallback.On("Embed", mock.Anything, "first").Return([]float32{1}, nil)
	fallback.On("Embed", mock.Anything, "second").Return([]float32{2}, nil)

	f := embedding.NewFailover(primary, fallback)

	// First call fails over and retries the same request on the fallback.
	vec, err := f.Embed(context.Background(), "first")
	assert.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.True(t, f.Demoted())

	// Subsequent calls never touch the primary again.
	vec, err = f.Embed(context.Background(), "second")
	assert.NoError(t, err)
	assert.Equal(t, []float32{2}, vec)
	primary.AssertNumberOfCalls(t, "Embed", 1)
}

func TestFailover_BothFail(t *testing.T) {
	primary := new(MockEmbedder)
	fallback := new(MockEmbedder)
	primary.On("Embed", mock.Anything, "x").Return(nil, errors.New("primary down"))
	fallback.On("Embed", mock.Anything, "x").Return(nil, errors.New("fallback down"))

	f := embedding.NewFailover(primary, fallback)
	_, err := f.Embed(context.Background(), "x")

	assert.EqualError(t, err, "fallback down")
	assert.True(t, f.Demoted())
}

func TestFailover_NoFallback(t *testing.T) {
	primary := new(MockEmbedder)
	primary.On("Embed", mock.Anything, "x").Return(nil, errors.New("primary down"))

	f := embedding.NewFailover(primary, nil)
	_, err := f.Embed(context.Background(), "x")

	assert.EqualError(t, err, "primary down")
	assert.False(t, f.Demoted())
}

func TestFailover_BatchStickySwitch(t *testing.T) {
	primary := new(MockEmbedder)
	fallback := new(MockEmbedder)
	texts := []string{"a", "b"}
	primary.On("EmbedBatch", mock.Anything, texts).Return(nil, errors.New("boom")).Once()
	fallback.On("EmbedBatch", mock.Anything, texts).Return([][]float32{{1}, {2}}, nil)
	fallback.On("Embed", mock.Anything, "later").Return([]float32{3}, nil)

	f := embedding.NewFailover(primary, fallback)
	vecs, err := f.EmbedBatch(context.Background(), texts)
	assert.NoError(t, err)
	assert.Len(t, vecs, 2)

	// The switch is shared across Embed and EmbedBatch.
	vec, err := f.Embed(context.Background(), "later")
	assert.NoError(t, err)
	assert.Equal(t, []float32{3}, vec)
	primary.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}
