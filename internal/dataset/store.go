package dataset

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/collision-dashboard/internal/observability"
)

// ErrNotLoaded is returned by Snapshot before the first successful load.
var ErrNotLoaded = errors.New("dataset not loaded")

// Store memoizes one successful load for the lifetime of the process.
type Store struct {
	loader  *Loader
	src     Opener
	metrics *observability.Metrics
	logger  *slog.Logger

	mu   sync.Mutex // serializes loads
	snap atomic.Pointer[Snapshot]
}

// NewStore creates a store that loads src with loader on first use.
func NewStore(loader *Loader, src Opener, metrics *observability.Metrics, logger *slog.Logger) *Store {
	return &Store{loader: loader, src: src, metrics: metrics, logger: logger}
}

// Load returns the cached snapshot, loading it first if needed. Concurrent
// callers wait for the in-flight load; a failed load is retried by the next call.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}

	snap, err := s.loader.Load(ctx, s.src)
	if err != nil {
		s.logger.Error("dataset load failed", "source", s.src.String(), "error", err)
		return nil, err
	}
	s.snap.Store(snap)
	s.metrics.DatasetLoaded.Set(1)
	return snap, nil
}

// Snapshot returns the loaded snapshot without triggering a load.
func (s *Store) Snapshot() (*Snapshot, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// CheckReadiness reports ready once a snapshot is available.
func (s *Store) CheckReadiness(_ context.Context) error {
	_, err := s.Snapshot()
	return err
}
