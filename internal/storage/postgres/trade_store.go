package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL. Each
// platform owns its own table (trades_pump, trades_bonk).
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	user_address, token_mint, status, pnl_sol, degen_score,
	sol_spent_lamports, sol_received_lamports,
	first_buy_at, last_sell_at, first_buy_tx, last_sell_tx,
	buy_transactions, sell_transactions`

// Upsert writes trades keyed by (user_address, token_mint), overwriting
// all fields on conflict. Empty input is a no-op.
func (s *TradeStore) Upsert(ctx context.Context, platform domain.Platform, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	table, err := tableFor(platform)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11,
			$12, $13
		)
		ON CONFLICT (user_address, token_mint) DO UPDATE SET
			status = EXCLUDED.status,
			pnl_sol = EXCLUDED.pnl_sol,
			degen_score = EXCLUDED.degen_score,
			sol_spent_lamports = EXCLUDED.sol_spent_lamports,
			sol_received_lamports = EXCLUDED.sol_received_lamports,
			first_buy_at = EXCLUDED.first_buy_at,
			last_sell_at = EXCLUDED.last_sell_at,
			first_buy_tx = EXCLUDED.first_buy_tx,
			last_sell_tx = EXCLUDED.last_sell_tx,
			buy_transactions = EXCLUDED.buy_transactions,
			sell_transactions = EXCLUDED.sell_transactions,
			updated_at = now()
	`, table, tradeColumns)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		_, err := tx.Exec(ctx, query,
			t.UserAddress, t.TokenMint, t.Status, t.PnlSOL, t.DegenScore,
			t.SolSpentLamports, t.SolReceivedLamports,
			t.FirstBuyAt, t.LastSellAt, t.FirstBuyTx, t.LastSellTx,
			t.BuyTransactions, t.SellTransactions,
		)
		if err != nil {
			return fmt.Errorf("upsert trade %s/%s: %w", t.UserAddress, t.TokenMint, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByUser retrieves a user's trades on one platform, most recent sell first.
func (s *TradeStore) GetByUser(ctx context.Context, platform domain.Platform, address string) ([]*domain.Trade, error) {
	table, err := tableFor(platform)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_address = $1
		ORDER BY last_sell_at DESC, token_mint ASC
	`, tradeColumns, table)

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get trades by user: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetLeaderboard retrieves all trades on one platform ordered by degen
// score descending.
func (s *TradeStore) GetLeaderboard(ctx context.Context, platform domain.Platform) ([]*domain.Trade, error) {
	table, err := tableFor(platform)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		ORDER BY degen_score DESC, user_address ASC, token_mint ASC
	`, tradeColumns, table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// DeleteByUser removes all of a user's trades on one platform.
func (s *TradeStore) DeleteByUser(ctx context.Context, platform domain.Platform, address string) error {
	table, err := tableFor(platform)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_address = $1`, table), address); err != nil {
		return fmt.Errorf("delete trades by user: %w", err)
	}
	return nil
}

// tableFor maps a platform to its trades table, rejecting unknown
// platforms before the name is interpolated into SQL.
func tableFor(platform domain.Platform) (string, error) {
	if !platform.Valid() {
		return "", fmt.Errorf("%w: unknown platform %q", storage.ErrInvalidInput, platform)
	}
	return platform.TableName(), nil
}

// scanTrades scans rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade

		err := rows.Scan(
			&t.UserAddress, &t.TokenMint, &t.Status, &t.PnlSOL, &t.DegenScore,
			&t.SolSpentLamports, &t.SolReceivedLamports,
			&t.FirstBuyAt, &t.LastSellAt, &t.FirstBuyTx, &t.LastSellTx,
			&t.BuyTransactions, &t.SellTransactions,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
