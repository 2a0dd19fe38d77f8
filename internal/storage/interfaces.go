package storage

import (
	"context"
	"time"

	"degen-rank/internal/domain"
)

// TradeStore provides access to the per-platform trade tables.
type TradeStore interface {
	// Upsert writes trades keyed by (user_address, token_mint) within the
	// platform's table, overwriting all fields on conflict. An empty list
	// is a no-op.
	Upsert(ctx context.Context, platform domain.Platform, trades []*domain.Trade) error

	// GetByUser retrieves a user's trades on one platform.
	GetByUser(ctx context.Context, platform domain.Platform, address string) ([]*domain.Trade, error)

	// GetLeaderboard retrieves all trades on one platform ordered by
	// degen score descending.
	GetLeaderboard(ctx context.Context, platform domain.Platform) ([]*domain.Trade, error)

	// DeleteByUser removes all of a user's trades on one platform.
	DeleteByUser(ctx context.Context, platform domain.Platform, address string) error
}

// UserStore provides access to tracked users and their scan watermarks.
type UserStore interface {
	// Insert adds a new user. Returns ErrDuplicateKey if address exists.
	Insert(ctx context.Context, u *domain.User) error

	// Get retrieves a user by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, address string) (*domain.User, error)

	// List retrieves all tracked users ordered by address.
	List(ctx context.Context) ([]*domain.User, error)

	// AdvanceLastScannedAt moves the user's watermark forward. Older
	// timestamps are ignored so concurrent writers cannot regress it.
	AdvanceLastScannedAt(ctx context.Context, address string, t time.Time) error

	// SetLastManualRefreshAt records a user-triggered rescan.
	SetLastManualRefreshAt(ctx context.Context, address string, t time.Time) error

	// Delete removes a user. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, address string) error
}

// StatusStore provides access to the singleton system status record.
type StatusStore interface {
	// Get retrieves the system status.
	Get(ctx context.Context) (*domain.SystemStatus, error)

	// AdvanceLastGlobalUpdate moves the global watermark forward. Older
	// timestamps are ignored so concurrent writers cannot regress it.
	AdvanceLastGlobalUpdate(ctx context.Context, t time.Time) error
}

// RankStore provides access to the aggregate degen ranking.
type RankStore interface {
	// Refresh recomputes the ranking from the trade tables.
	Refresh(ctx context.Context) error

	// GlobalRanks retrieves the ranking ordered by the given column.
	// Allowed columns: "degen_score", "pnl", "win_rate"; anything else
	// falls back to "degen_score".
	GlobalRanks(ctx context.Context, sortBy string) ([]*domain.RankEntry, error)

	// UserRank retrieves one user's entry. Returns ErrNotFound if the
	// user has no completed trades.
	UserRank(ctx context.Context, address string) (*domain.RankEntry, error)
}

// SnapshotStore provides access to daily rank snapshots.
type SnapshotStore interface {
	// InsertSnapshots records snapshots, replacing same-day duplicates.
	InsertSnapshots(ctx context.Context, snaps []*domain.RankSnapshot) error

	// RankOn retrieves a user's snapshot for a date. Returns ErrNotFound
	// if no snapshot exists.
	RankOn(ctx context.Context, address string, date time.Time) (*domain.RankSnapshot, error)

	// PurgeBefore deletes snapshots older than the date.
	PurgeBefore(ctx context.Context, date time.Time) error
}
