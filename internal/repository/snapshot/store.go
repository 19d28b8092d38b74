// Package snapshot publishes candidate table and index generations atomically.
package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
)

// Store holds the live snapshot. Publish is serialized.
//
// Requests that must see one generation for their whole lifetime lease it with
// Acquire. A generation replaced by Publish keeps its index open until the
// last lease on it is released.
type Store struct {
	current atomic.Pointer[domain.Snapshot]

	mu      sync.Mutex
	leases  map[*domain.Snapshot]int
	retired map[*domain.Snapshot]struct{} // replaced, still leased
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	return &Store{
		leases:  make(map[*domain.Snapshot]int),
		retired: make(map[*domain.Snapshot]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// Current returns the live snapshot, or domain.ErrDataNotReady before the
// first publish. The result is not leased; its index may be closed by a later
// Publish.
func (s *Store) Current() (*domain.Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, domain.ErrDataNotReady
	}
	return snap, nil
}

// Loaded reports whether any snapshot has been published.
func (s *Store) Loaded() bool { return s.current.Load() != nil }

// Acquire leases the live snapshot. Its index stays open until release is
// called. release may be called more than once.
func (s *Store) Acquire() (*domain.Snapshot, func(), error) {
	s.mu.Lock()
	snap := s.current.Load()
	if snap == nil {
		s.mu.Unlock()
		return nil, func() {}, domain.ErrDataNotReady
	}
	s.leases[snap]++
	s.mu.Unlock()

	var once sync.Once
	return snap, func() { once.Do(func() { s.release(snap) }) }, nil
}

func (s *Store) release(snap *domain.Snapshot) {
	s.mu.Lock()
	s.leases[snap]--
	n := s.leases[snap]
	if n <= 0 {
		delete(s.leases, snap)
	}
	_, retired := s.retired[snap]
	drop := retired && n <= 0
	if drop {
		delete(s.retired, snap)
	}
	s.mu.Unlock()

	if drop {
		s.closeIndex(context.Background(), snap)
	}
}

// Publish makes snap live, assigning the next generation number and IngestedAt.
// The caller must not modify snap afterwards. The replaced generation is
// closed now if nothing leases it, otherwise on its last release.
func (s *Store) Publish(ctx context.Context, snap *domain.Snapshot) *domain.Snapshot {
	s.mu.Lock()
	prev := s.current.Load()
	if prev != nil {
		snap.Generation = prev.Generation + 1
	} else {
		snap.Generation = 1
	}
	if snap.IngestedAt.IsZero() {
		snap.IngestedAt = s.now().UTC()
	}
	s.current.Store(snap)

	var drop *domain.Snapshot
	if prev != nil {
		if s.leases[prev] > 0 {
			s.retired[prev] = struct{}{}
		} else {
			drop = prev
		}
	}
	s.mu.Unlock()

	if drop != nil {
		s.closeIndex(ctx, drop)
	}
	return snap
}

// Close releases the live generation and every retired one regardless of
// outstanding leases. Used at shutdown.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	open := make([]*domain.Snapshot, 0, len(s.retired)+1)
	for snap := range s.retired {
		open = append(open, snap)
	}
	if cur := s.current.Load(); cur != nil {
		open = append(open, cur)
	}
	clear(s.retired)
	clear(s.leases)
	s.mu.Unlock()

	for _, snap := range open {
		s.closeIndex(ctx, snap)
	}
}

func (s *Store) closeIndex(ctx context.Context, snap *domain.Snapshot) {
	if snap.Index == nil {
		return
	}
	if err := snap.Index.Close(ctx); err != nil {
		s.logger.Warn("Failed to close retired index",
			zap.Uint64("generation", snap.Generation),
			zap.String("index", snap.Index.Name()),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Closed retired index",
		zap.Uint64("generation", snap.Generation),
		zap.String("index", snap.Index.Name()),
	)
}
