package ledgerstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory, thread-safe Store implementation.
// It is primarily useful for testing and for runs that do not need the
// ledger to survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks map[uint64][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blocks: make(map[uint64][]byte)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, height uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blocks[height] = cp
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, height uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blocks[height]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Iterate implements Store. It iterates over a snapshot of the heights
// present when the call started.
func (s *MemoryStore) Iterate(ctx context.Context, fn func(height uint64, data []byte) error) error {
	s.mu.RLock()
	heights := make([]uint64, 0, len(s.blocks))
	for h := range s.blocks {
		heights = append(heights, h)
	}
	s.mu.RUnlock()
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	for _, h := range heights {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := s.Get(ctx, h)
		if err != nil {
			return err
		}
		if err := fn(h, data); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
