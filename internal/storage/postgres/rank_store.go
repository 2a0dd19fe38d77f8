package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// RankStore implements storage.RankStore on the degen_rank materialized
// view, which unions both platform trade tables into per-user totals.
type RankStore struct {
	pool *Pool
}

// NewRankStore creates a new RankStore.
func NewRankStore(pool *Pool) *RankStore {
	return &RankStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RankStore = (*RankStore)(nil)

// sortColumns whitelists user-supplied sort keys.
var sortColumns = map[string]string{
	"degen_score": "total_degen_score",
	"pnl":         "total_pnl_sol",
	"win_rate":    "win_rate",
}

// Refresh recomputes the ranking. CONCURRENTLY keeps the view readable
// during the refresh; the unique index on user_address makes it legal.
func (s *RankStore) Refresh(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY degen_rank`); err != nil {
		return fmt.Errorf("refresh degen_rank: %w", err)
	}
	return nil
}

// GlobalRanks retrieves the ranking ordered by the given column.
func (s *RankStore) GlobalRanks(ctx context.Context, sortBy string) ([]*domain.RankEntry, error) {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = "total_degen_score"
	}

	query := fmt.Sprintf(`
		SELECT user_address, rank, total_degen_score, total_pnl_sol,
		       total_wins, total_losses, win_rate
		FROM degen_rank
		ORDER BY %s DESC, user_address ASC
	`, column)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get global ranks: %w", err)
	}
	defer rows.Close()

	var entries []*domain.RankEntry
	for rows.Next() {
		e, err := scanRankEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rank row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rank rows: %w", err)
	}

	return entries, nil
}

// UserRank retrieves one user's entry. Returns ErrNotFound if the user
// has no completed trades.
func (s *RankStore) UserRank(ctx context.Context, address string) (*domain.RankEntry, error) {
	query := `
		SELECT user_address, rank, total_degen_score, total_pnl_sol,
		       total_wins, total_losses, win_rate
		FROM degen_rank
		WHERE user_address = $1
	`

	e, err := scanRankEntry(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user rank: %w", err)
	}
	return e, nil
}

// scanRankEntry scans a single row into a RankEntry.
func scanRankEntry(row pgx.Row) (*domain.RankEntry, error) {
	var e domain.RankEntry
	err := row.Scan(
		&e.UserAddress, &e.Rank, &e.TotalDegenScore, &e.TotalPnlSOL,
		&e.TotalWins, &e.TotalLosses, &e.WinRate,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
