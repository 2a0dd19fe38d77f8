package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu   sync.RWMutex
	data map[string]*domain.User
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		data: make(map[string]*domain.User),
	}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// Insert adds a new user. Returns ErrDuplicateKey if address exists.
func (s *UserStore) Insert(_ context.Context, u *domain.User) error {
	if u == nil || u.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[u.Address]; exists {
		return storage.ErrDuplicateKey
	}

	copied := cloneUser(u)
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.data[u.Address] = copied
	return nil
}

// Get retrieves a user by address. Returns ErrNotFound if not exists.
func (s *UserStore) Get(_ context.Context, address string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

// List retrieves all tracked users ordered by address.
func (s *UserStore) List(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []*domain.User
	for _, u := range s.data {
		users = append(users, cloneUser(u))
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Address < users[j].Address
	})

	return users, nil
}

// AdvanceLastScannedAt moves the watermark forward, ignoring older values.
func (s *UserStore) AdvanceLastScannedAt(_ context.Context, address string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.data[address]
	if !exists {
		return nil
	}
	if u.LastScannedAt == nil || u.LastScannedAt.Before(t) {
		stamped := t
		u.LastScannedAt = &stamped
	}
	return nil
}

// SetLastManualRefreshAt records a user-triggered rescan.
func (s *UserStore) SetLastManualRefreshAt(_ context.Context, address string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.data[address]
	if !exists {
		return nil
	}
	stamped := t
	u.LastManualRefreshAt = &stamped
	return nil
}

// Delete removes a user. Returns ErrNotFound if not exists.
func (s *UserStore) Delete(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[address]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, address)
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	copied := *u
	if u.LastScannedAt != nil {
		t := *u.LastScannedAt
		copied.LastScannedAt = &t
	}
	if u.LastManualRefreshAt != nil {
		t := *u.LastManualRefreshAt
		copied.LastManualRefreshAt = &t
	}
	return &copied
}
