package embedding

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Failover prefers a primary embedder and permanently switches to a fallback
// after the first primary failure. The switch covers all subsequent calls,
// from the ingestion loop and request handlers alike, and is cleared only by a
// process restart. The failing request is retried once on the fallback before
// an error surfaces.
type Failover struct {
	primary  Embedder
	fallback Embedder
	demoted  atomic.Bool
}

// NewFailover wraps primary with fallback. A nil fallback disables failover
// and primary errors surface directly.
func NewFailover(primary, fallback Embedder) *Failover {
	return &Failover{primary: primary, fallback: fallback}
}

func (f *Failover) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.fallback == nil || !f.demoted.Load() {
		vec, err := f.primary.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if f.fallback == nil {
			return nil, err
		}
		f.demote(ctx, err)
	}
	return f.fallback.Embed(ctx, text)
}

func (f *Failover) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fallback == nil || !f.demoted.Load() {
		vecs, err := f.primary.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		if f.fallback == nil {
			return nil, err
		}
		f.demote(ctx, err)
	}
	return f.fallback.EmbedBatch(ctx, texts)
}

// Demoted reports whether the provider has switched to the fallback.
func (f *Failover) Demoted() bool {
	return f.demoted.Load()
}

func (f *Failover) demote(ctx context.Context, cause error) {
	// Log the transition exactly once even under concurrent failures.
	if f.demoted.CompareAndSwap(false, true) {
		slog.WarnContext(ctx, "primary embedding provider failed, switching to fallback for the rest of the process lifetime", "error", cause)
	}
}
