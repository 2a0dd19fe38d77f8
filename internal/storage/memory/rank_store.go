package memory

import (
	"context"
	"sort"
	"sync"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// RankStore is an in-memory implementation of storage.RankStore. Like the
// Postgres materialized view it ranks a cached computation: callers see
// the totals as of the last Refresh, not the live trade tables.
type RankStore struct {
	trades *TradeStore

	mu      sync.RWMutex
	entries []*domain.RankEntry
}

// NewRankStore creates a rank store computing over the given trade store.
func NewRankStore(trades *TradeStore) *RankStore {
	return &RankStore{trades: trades}
}

// Compile-time interface check.
var _ storage.RankStore = (*RankStore)(nil)

// Refresh recomputes per-user totals across both platforms.
func (s *RankStore) Refresh(_ context.Context) error {
	totals := make(map[string]*domain.RankEntry)

	for _, trades := range s.trades.All() {
		for _, t := range trades {
			e, ok := totals[t.UserAddress]
			if !ok {
				e = &domain.RankEntry{UserAddress: t.UserAddress}
				totals[t.UserAddress] = e
			}
			e.TotalDegenScore += int64(t.DegenScore)
			e.TotalPnlSOL += t.PnlSOL
			if t.Status == domain.StatusWin {
				e.TotalWins++
			} else {
				e.TotalLosses++
			}
		}
	}

	entries := make([]*domain.RankEntry, 0, len(totals))
	for _, e := range totals {
		if n := e.TotalWins + e.TotalLosses; n > 0 {
			e.WinRate = float64(e.TotalWins) / float64(n)
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalDegenScore != entries[j].TotalDegenScore {
			return entries[i].TotalDegenScore > entries[j].TotalDegenScore
		}
		return entries[i].UserAddress < entries[j].UserAddress
	})
	for i, e := range entries {
		e.Rank = i + 1
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	return nil
}

// GlobalRanks retrieves the cached ranking ordered by the given column.
func (s *RankStore) GlobalRanks(_ context.Context, sortBy string) ([]*domain.RankEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RankEntry, 0, len(s.entries))
	for _, e := range s.entries {
		copied := *e
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		var less bool
		switch sortBy {
		case "pnl":
			less = result[i].TotalPnlSOL > result[j].TotalPnlSOL
		case "win_rate":
			less = result[i].WinRate > result[j].WinRate
		default:
			less = result[i].TotalDegenScore > result[j].TotalDegenScore
		}
		return less
	})

	return result, nil
}

// UserRank retrieves one user's cached entry.
func (s *RankStore) UserRank(_ context.Context, address string) (*domain.RankEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.UserAddress == address {
			copied := *e
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}
