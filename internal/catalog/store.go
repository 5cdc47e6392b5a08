package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Store publishes the current catalog snapshot.
// Readers never block; a reload builds a new snapshot and swaps the pointer.
type Store struct {
	source  Source
	logger  *zap.Logger
	current atomic.Pointer[Catalog]

	reloadMu sync.Mutex
	onSwap   []func(*Catalog)
}

// NewStore creates a store backed by source, holding an empty catalog until loaded
func NewStore(source Source, logger *zap.Logger) *Store {
	s := &Store{
		source: source,
		logger: logger.Named("catalog"),
	}
	s.current.Store(Empty())
	return s
}

// OnSwap registers a callback run after every successful swap
func (s *Store) OnSwap(fn func(*Catalog)) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.onSwap = append(s.onSwap, fn)
}

// Current returns the latest snapshot; it is never nil
func (s *Store) Current() *Catalog {
	return s.current.Load()
}

// Reload reads the source and swaps in the new snapshot.
// On failure the previous snapshot stays in place.
func (s *Store) Reload(ctx context.Context) (*Catalog, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	entries, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog from %s: %w", s.source.Name(), err)
	}
	next, err := New(entries)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog from %s: %w", s.source.Name(), err)
	}

	s.current.Store(next)
	for _, fn := range s.onSwap {
		fn(next)
	}

	s.logger.Info("catalog loaded",
		zap.String("source", s.source.Name()),
		zap.Int("listings", next.Len()),
		zap.Int("dimension", next.Dimension()),
	)
	if next.Len() == 0 {
		s.logger.Warn("catalog is empty, retrieval will return no listings")
	}
	return next, nil
}
