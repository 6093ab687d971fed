package ingest

import (
	"sync/atomic"
	"time"
)

// Stats tracks ingestion counters shared between the scheduler goroutine and
// the health endpoint.
type Stats struct {
	totalProcessed atomic.Int64
	fetchCycles    atomic.Int64
	lastFetchUnix  atomic.Int64
}

// Snapshot is a point-in-time copy of the counters. LastFetchTime is nil
// until the first fetch completes.
type Snapshot struct {
	TotalProcessed int64
	FetchCycles    int64
	LastFetchTime  *time.Time
}

func (s *Stats) AddProcessed(n int) {
	s.totalProcessed.Add(int64(n))
}

func (s *Stats) IncrementCycles() {
	s.fetchCycles.Add(1)
}

func (s *Stats) MarkFetched(at time.Time) {
	s.lastFetchUnix.Store(at.Unix())
}

func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		TotalProcessed: s.totalProcessed.Load(),
		FetchCycles:    s.fetchCycles.Load(),
	}
	if unix := s.lastFetchUnix.Load(); unix != 0 {
		at := time.Unix(unix, 0).UTC()
		snap.LastFetchTime = &at
	}
	return snap
}
