package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ToJen/crypto-news-agent/internal/middleware"
	"github.com/ToJen/crypto-news-agent/internal/news"
)

// Clock abstracts time for the scheduler loop so tests can drive cycles
// without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// VectorStore is the slice of the article index the scheduler writes to.
type VectorStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	Upsert(ctx context.Context, article news.Article, embedding []float32) error
}

// Embedder converts candidate text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SchedulerConfig carries the tunables for the ingestion loop.
type SchedulerConfig struct {
	Interval      time.Duration
	ErrorBackoff  time.Duration
	InitialWindow time.Duration
	OngoingWindow time.Duration
	CallTimeout   time.Duration
}

// Scheduler drives the ingestion loop: fetch candidates from every source,
// drop the ones already indexed, embed and store the rest. It owns no HTTP
// surface and is started once at process start.
type Scheduler struct {
	sources  []Source
	store    VectorStore
	embedder Embedder
	stats    *Stats
	clock    Clock
	cfg      SchedulerConfig
}

func NewScheduler(sources []Source, store VectorStore, embedder Embedder, stats *Stats, clock Clock, cfg SchedulerConfig) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		sources:  sources,
		store:    store,
		embedder: embedder,
		stats:    stats,
		clock:    clock,
		cfg:      cfg,
	}
}

// Run blocks until ctx is cancelled. The first cycle uses the wide initial
// window to backfill, every later cycle uses the short ongoing window. A
// failed cycle delays the next one by the error backoff on top of the regular
// interval.
func (s *Scheduler) Run(ctx context.Context) {
	slog.InfoContext(ctx, "starting news ingestion",
		"interval", s.cfg.Interval,
		"sources", len(s.sources),
	)

	if err := s.runCycle(s.cycleContext(ctx), s.cfg.InitialWindow); err != nil {
		slog.ErrorContext(ctx, "initial fetch failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "stopping news ingestion")
			return
		case <-s.clock.After(s.cfg.Interval):
		}

		s.stats.IncrementCycles()
		cctx := s.cycleContext(ctx)
		if err := s.runCycle(cctx, s.cfg.OngoingWindow); err != nil {
			slog.ErrorContext(cctx, "ingestion cycle failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-s.clock.After(s.cfg.ErrorBackoff):
			}
		}
	}
}

// cycleContext tags every log line of a cycle with one correlation id.
func (s *Scheduler) cycleContext(ctx context.Context) context.Context {
	return middleware.WithCorrelationID(ctx, uuid.NewString())
}

func (s *Scheduler) runCycle(ctx context.Context, window time.Duration) error {
	var candidates []news.Article
	for _, src := range s.sources {
		items, err := src.Fetch(ctx, window)
		if err != nil {
			slog.WarnContext(ctx, "source fetch failed", "source", src.Name(), "error", err)
			continue
		}
		slog.DebugContext(ctx, "source fetched", "source", src.Name(), "articles", len(items))
		candidates = append(candidates, items...)
	}

	processed := 0
	for _, candidate := range candidates {
		ok, err := s.processCandidate(ctx, candidate)
		if err != nil {
			return err
		}
		if ok {
			processed++
		}
	}

	s.stats.AddProcessed(processed)
	s.stats.MarkFetched(s.clock.Now())

	if processed > 0 {
		slog.InfoContext(ctx, "ingestion cycle complete", "fetched", len(candidates), "stored", processed)
	} else {
		slog.DebugContext(ctx, "ingestion cycle complete, nothing new", "fetched", len(candidates))
	}
	return nil
}

// processCandidate stores one candidate. Malformed, duplicate and
// unembeddable candidates are dropped without failing the cycle; only an
// index write failure propagates, because continuing past it would silently
// lose articles.
func (s *Scheduler) processCandidate(ctx context.Context, candidate news.Article) (bool, error) {
	candidate.Title = strings.TrimSpace(candidate.Title)
	candidate.URL = strings.TrimSpace(candidate.URL)
	if candidate.Title == "" || candidate.URL == "" {
		return false, nil
	}
	if candidate.Source == "" {
		candidate.Source = "Unknown"
	}
	if candidate.PublishedAt.IsZero() {
		candidate.PublishedAt = s.clock.Now().UTC()
	}

	cctx := ctx
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}

	exists, err := s.store.Exists(cctx, candidate.URL)
	if err != nil {
		slog.WarnContext(ctx, "existence check failed, assuming new", "url", candidate.URL, "error", err)
	} else if exists {
		return false, nil
	}

	embedding, err := s.embedder.Embed(cctx, candidate.EmbeddingText())
	if err != nil {
		slog.WarnContext(ctx, "embedding failed, dropping candidate", "url", candidate.URL, "error", err)
		return false, nil
	}

	if err := s.store.Upsert(cctx, candidate, embedding); err != nil {
		return false, fmt.Errorf("store article %q: %w", candidate.URL, err)
	}
	return true, nil
}
