package memory

import (
	"context"
	"testing"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

func trade(address, mint string, score int, pnl float64, status string) *domain.Trade {
	return &domain.Trade{
		UserAddress: address,
		TokenMint:   mint,
		Status:      status,
		PnlSOL:      pnl,
		DegenScore:  score,
	}
}

func TestTradeStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewTradeStore()

	if err := store.Upsert(ctx, domain.PlatformPump, []*domain.Trade{
		trade("walletA", "mint1", 45, 1.0, domain.StatusWin),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, domain.PlatformPump, []*domain.Trade{
		trade("walletA", "mint1", 130, 10.0, domain.StatusWin),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	trades, err := store.GetByUser(ctx, domain.PlatformPump, "walletA")
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade after overwrite, got %d", len(trades))
	}
	if trades[0].DegenScore != 130 {
		t.Errorf("expected score 130, got %d", trades[0].DegenScore)
	}
}

func TestTradeStore_RejectsUnknownPlatform(t *testing.T) {
	store := NewTradeStore()

	err := store.Upsert(context.Background(), domain.Platform("raydium"), []*domain.Trade{
		trade("walletA", "mint1", 45, 1.0, domain.StatusWin),
	})
	if err != storage.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRankStore_RefreshComputesTotalsAcrossPlatforms(t *testing.T) {
	ctx := context.Background()
	trades := NewTradeStore()
	ranks := NewRankStore(trades)

	trades.Upsert(ctx, domain.PlatformPump, []*domain.Trade{
		trade("walletA", "mint1", 45, 1.0, domain.StatusWin),
		trade("walletB", "mint2", 130, 10.0, domain.StatusWin),
	})
	trades.Upsert(ctx, domain.PlatformBonk, []*domain.Trade{
		trade("walletA", "mint3", -10, -0.5, domain.StatusLoss),
	})

	if err := ranks.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	entry, err := ranks.UserRank(ctx, "walletA")
	if err != nil {
		t.Fatalf("UserRank: %v", err)
	}
	if entry.TotalDegenScore != 35 {
		t.Errorf("expected total score 35 across platforms, got %d", entry.TotalDegenScore)
	}
	if entry.TotalWins != 1 || entry.TotalLosses != 1 {
		t.Errorf("expected 1 win / 1 loss, got %d / %d", entry.TotalWins, entry.TotalLosses)
	}
	if entry.WinRate != 0.5 {
		t.Errorf("expected win rate 0.5, got %v", entry.WinRate)
	}
	if entry.Rank != 2 {
		t.Errorf("expected rank 2 behind walletB, got %d", entry.Rank)
	}
}

func TestRankStore_RanksAreStaleUntilRefresh(t *testing.T) {
	ctx := context.Background()
	trades := NewTradeStore()
	ranks := NewRankStore(trades)

	trades.Upsert(ctx, domain.PlatformPump, []*domain.Trade{
		trade("walletA", "mint1", 45, 1.0, domain.StatusWin),
	})

	if _, err := ranks.UserRank(ctx, "walletA"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound before refresh, got %v", err)
	}

	ranks.Refresh(ctx)

	if _, err := ranks.UserRank(ctx, "walletA"); err != nil {
		t.Errorf("expected entry after refresh, got %v", err)
	}
}

func TestUserStore_AdvanceLastScannedAtIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore()

	store.Insert(ctx, &domain.User{Address: "walletA"})

	newer := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store.AdvanceLastScannedAt(ctx, "walletA", newer)
	store.AdvanceLastScannedAt(ctx, "walletA", newer.Add(-time.Hour))

	user, _ := store.Get(ctx, "walletA")
	if user.LastScannedAt == nil || !user.LastScannedAt.Equal(newer) {
		t.Errorf("watermark regressed: %v", user.LastScannedAt)
	}
}

func TestSnapshotStore_PurgeBefore(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore()

	old := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	store.InsertSnapshots(ctx, []*domain.RankSnapshot{
		{UserAddress: "walletA", SnapshotDate: old, Rank: 1},
		{UserAddress: "walletA", SnapshotDate: recent, Rank: 2},
	})

	if err := store.PurgeBefore(ctx, recent.AddDate(0, 0, -30)); err != nil {
		t.Fatalf("PurgeBefore: %v", err)
	}

	if _, err := store.RankOn(ctx, "walletA", old); err != storage.ErrNotFound {
		t.Errorf("expected old snapshot purged, got %v", err)
	}
	if _, err := store.RankOn(ctx, "walletA", recent); err != nil {
		t.Errorf("expected recent snapshot kept, got %v", err)
	}
}
