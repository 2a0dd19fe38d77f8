package memory

import (
	"context"
	"sync"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[snapshotKey]*domain.RankSnapshot
}

type snapshotKey struct {
	userAddress string
	date        string // YYYY-MM-DD
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[snapshotKey]*domain.RankSnapshot),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertSnapshots records snapshots, replacing same-day duplicates.
func (s *SnapshotStore) InsertSnapshots(_ context.Context, snaps []*domain.RankSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snaps {
		if snap == nil || snap.UserAddress == "" {
			return storage.ErrInvalidInput
		}
		copied := *snap
		s.data[keyFor(snap.UserAddress, snap.SnapshotDate)] = &copied
	}
	return nil
}

// RankOn retrieves a user's snapshot for a date.
func (s *SnapshotStore) RankOn(_ context.Context, address string, date time.Time) (*domain.RankSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.data[keyFor(address, date)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copied := *snap
	return &copied, nil
}

// PurgeBefore deletes snapshots older than the date.
func (s *SnapshotStore) PurgeBefore(_ context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := date.UTC().Format("2006-01-02")
	for key := range s.data {
		if key.date < cutoff {
			delete(s.data, key)
		}
	}
	return nil
}

// Len reports the number of stored snapshots (test helper).
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func keyFor(address string, date time.Time) snapshotKey {
	return snapshotKey{userAddress: address, date: date.UTC().Format("2006-01-02")}
}
