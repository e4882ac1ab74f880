package registry

import (
	"context"
	"sync"
	"time"
)

// SnapshotStore persists snapshots by cache key. Implementations need not
// enforce the TTL on Get; the Registry checks BuiltAt itself.
type SnapshotStore interface {
	Get(ctx context.Context, key string) (*Snapshot, bool, error)
	Put(ctx context.Context, key string, snapshot *Snapshot, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process SnapshotStore.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]*Snapshot)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[key]
	return snap, ok, nil
}

// Put stores snapshot and evicts entries older than ttl relative to it.
func (s *MemoryStore) Put(_ context.Context, key string, snapshot *Snapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, snap := range s.snapshots {
		if snapshot.BuiltAt.Sub(snap.BuiltAt) >= ttl {
			delete(s.snapshots, k)
		}
	}
	s.snapshots[key] = snapshot
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[string]*Snapshot)
	return nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
