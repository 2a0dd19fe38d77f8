package clickhouse

import (
	"context"
	"fmt"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// RankHistoryStore implements storage.SnapshotStore using ClickHouse.
// The rank_history table is a ReplacingMergeTree keyed on
// (user_address, snapshot_date): re-snapshotting the same day replaces
// the earlier rows at merge time.
type RankHistoryStore struct {
	conn *Conn
}

// NewRankHistoryStore creates a new RankHistoryStore.
func NewRankHistoryStore(conn *Conn) *RankHistoryStore {
	return &RankHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*RankHistoryStore)(nil)

// InsertSnapshots records snapshots, replacing same-day duplicates.
func (s *RankHistoryStore) InsertSnapshots(ctx context.Context, snaps []*domain.RankSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO rank_history (user_address, snapshot_date, rank, total_degen_score)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snaps {
		err := batch.Append(
			snap.UserAddress,
			snap.SnapshotDate,
			uint32(snap.Rank),
			snap.TotalDegenScore,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert rank snapshots: %w", err)
	}
	return nil
}

// RankOn retrieves a user's snapshot for a date. FINAL collapses
// not-yet-merged replacements.
func (s *RankHistoryStore) RankOn(ctx context.Context, address string, date time.Time) (*domain.RankSnapshot, error) {
	query := `
		SELECT user_address, snapshot_date, rank, total_degen_score
		FROM rank_history FINAL
		WHERE user_address = ? AND snapshot_date = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, address, date)
	if err != nil {
		return nil, fmt.Errorf("query rank snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate rank snapshot rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var snap domain.RankSnapshot
	var rank uint32
	if err := rows.Scan(&snap.UserAddress, &snap.SnapshotDate, &rank, &snap.TotalDegenScore); err != nil {
		return nil, fmt.Errorf("scan rank snapshot: %w", err)
	}
	snap.Rank = int(rank)

	return &snap, nil
}

// PurgeBefore deletes snapshots older than the date.
func (s *RankHistoryStore) PurgeBefore(ctx context.Context, date time.Time) error {
	query := `ALTER TABLE rank_history DELETE WHERE snapshot_date < ?`

	if err := s.conn.Exec(ctx, query, date); err != nil {
		return fmt.Errorf("purge rank snapshots: %w", err)
	}
	return nil
}
