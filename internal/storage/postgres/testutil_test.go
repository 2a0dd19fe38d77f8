package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage/migrations"
	pgstore "degen-rank/internal/storage/postgres"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// embedded migrations. Returns a cleanup function that must be called
// after tests complete.
func setupTestDB(t *testing.T) (*pgstore.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := pgstore.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool), "failed to run migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// createTestTrade builds a winning trade for a user/mint pair.
func createTestTrade(address, mint string, score int, pnlSOL float64) *domain.Trade {
	status := domain.StatusWin
	if pnlSOL <= 0 {
		status = domain.StatusLoss
	}
	return &domain.Trade{
		UserAddress:         address,
		TokenMint:           mint,
		Status:              status,
		PnlSOL:              pnlSOL,
		DegenScore:          score,
		SolSpentLamports:    1_000_000_000,
		SolReceivedLamports: 1_000_000_000 + int64(pnlSOL*1e9),
		FirstBuyAt:          time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		LastSellAt:          time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC),
		FirstBuyTx:          "buy-" + mint,
		LastSellTx:          "sell-" + mint,
		BuyTransactions:     []string{"buy-" + mint},
		SellTransactions:    []string{"sell-" + mint},
	}
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
