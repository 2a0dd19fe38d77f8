// Package memory provides in-memory storage implementations for tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[domain.Platform]map[tradeKey]*domain.Trade
}

type tradeKey struct {
	userAddress string
	tokenMint   string
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[domain.Platform]map[tradeKey]*domain.Trade),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Upsert writes trades keyed by (user, mint), overwriting on conflict.
func (s *TradeStore) Upsert(_ context.Context, platform domain.Platform, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	if !platform.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.data[platform]
	if !ok {
		table = make(map[tradeKey]*domain.Trade)
		s.data[platform] = table
	}

	for _, t := range trades {
		if t == nil || t.UserAddress == "" || t.TokenMint == "" {
			return storage.ErrInvalidInput
		}
		copied := *t
		table[tradeKey{t.UserAddress, t.TokenMint}] = &copied
	}

	return nil
}

// GetByUser retrieves a user's trades on one platform.
func (s *TradeStore) GetByUser(_ context.Context, platform domain.Platform, address string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for key, t := range s.data[platform] {
		if key.userAddress == address {
			copied := *t
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastSellAt.Equal(result[j].LastSellAt) {
			return result[i].LastSellAt.After(result[j].LastSellAt)
		}
		return result[i].TokenMint < result[j].TokenMint
	})

	return result, nil
}

// GetLeaderboard retrieves all trades on one platform by degen score descending.
func (s *TradeStore) GetLeaderboard(_ context.Context, platform domain.Platform) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data[platform] {
		copied := *t
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DegenScore != result[j].DegenScore {
			return result[i].DegenScore > result[j].DegenScore
		}
		if result[i].UserAddress != result[j].UserAddress {
			return result[i].UserAddress < result[j].UserAddress
		}
		return result[i].TokenMint < result[j].TokenMint
	})

	return result, nil
}

// DeleteByUser removes all of a user's trades on one platform.
func (s *TradeStore) DeleteByUser(_ context.Context, platform domain.Platform, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.data[platform] {
		if key.userAddress == address {
			delete(s.data[platform], key)
		}
	}
	return nil
}

// All returns every trade across both platforms (test helper).
func (s *TradeStore) All() map[domain.Platform][]*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.Platform][]*domain.Trade)
	for platform, table := range s.data {
		for _, t := range table {
			copied := *t
			out[platform] = append(out[platform], &copied)
		}
	}
	return out
}
