package memory

import (
	"context"
	"sync"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// StatusStore is an in-memory implementation of storage.StatusStore.
type StatusStore struct {
	mu                 sync.RWMutex
	lastGlobalUpdateAt *time.Time
}

// NewStatusStore creates a new in-memory status store.
func NewStatusStore() *StatusStore {
	return &StatusStore{}
}

// Compile-time interface check.
var _ storage.StatusStore = (*StatusStore)(nil)

// Get retrieves the system status.
func (s *StatusStore) Get(_ context.Context) (*domain.SystemStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &domain.SystemStatus{}
	if s.lastGlobalUpdateAt != nil {
		t := *s.lastGlobalUpdateAt
		status.LastGlobalUpdateAt = &t
	}
	return status, nil
}

// AdvanceLastGlobalUpdate moves the global watermark forward, ignoring
// older values.
func (s *StatusStore) AdvanceLastGlobalUpdate(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastGlobalUpdateAt == nil || s.lastGlobalUpdateAt.Before(t) {
		stamped := t
		s.lastGlobalUpdateAt = &stamped
	}
	return nil
}
