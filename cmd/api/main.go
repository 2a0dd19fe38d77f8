// Package main runs the leaderboard HTTP API with an embedded scanner
// for connect/refresh/cron triggered scans.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"degen-rank/internal/apiserver"
	"degen-rank/internal/helius"
	"degen-rank/internal/scan"
	"degen-rank/internal/storage"
	chstore "degen-rank/internal/storage/clickhouse"
	"degen-rank/internal/storage/memory"
	"degen-rank/internal/storage/migrations"
	pgstore "degen-rank/internal/storage/postgres"
)

// apiStores holds the storage implementations the API needs.
type apiStores struct {
	trades    storage.TradeStore
	users     storage.UserStore
	status    storage.StatusStore
	ranks     storage.RankStore
	snapshots storage.SnapshotStore
}

func main() {
	// Load .env file if exists
	godotenv.Load()

	addr := flag.String("addr", ":8080", "HTTP listen address")
	heliusAPIKey := flag.String("helius-api-key", os.Getenv("HELIUS_API_KEY"), "Helius API key")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (empty disables rank history)")
	cronSecret := flag.String("cron-secret", os.Getenv("CRON_SECRET"), "Bearer token for /api/cron/run-worker (empty disables)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	migrate := flag.Bool("migrate", false, "Run migrations on startup")
	refreshCooldown := flag.Duration("refresh-cooldown", apiserver.DefaultRefreshCooldown, "Minimum interval between manual refreshes")

	flag.Parse()

	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile)

	if *heliusAPIKey == "" {
		logger.Fatal("--helius-api-key is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	client := helius.NewClient(*heliusAPIKey,
		helius.WithLogger(log.New(os.Stdout, "[helius] ", log.LstdFlags)),
	)

	fetcher := scan.NewFetcher(scan.FetcherOptions{
		Source: client,
		Logger: log.New(os.Stdout, "[fetcher] ", log.LstdFlags),
	})

	orch := scan.New(scan.Options{
		Fetcher:   fetcher,
		Trades:    stores.trades,
		Users:     stores.users,
		Status:    stores.status,
		Ranks:     stores.ranks,
		Snapshots: stores.snapshots,
		Logger:    log.New(os.Stdout, "[orchestrator] ", log.LstdFlags),
	})

	server := apiserver.New(apiserver.Options{
		Trades:          stores.trades,
		Users:           stores.users,
		Status:          stores.status,
		Ranks:           stores.ranks,
		Snapshots:       stores.snapshots,
		Scanner:         orch,
		CronSecret:      *cronSecret,
		RefreshCooldown: *refreshCooldown,
		Logger:          logger,
	})

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool) (*apiStores, func(), error) {
	if useMemory {
		trades := memory.NewTradeStore()
		stores := &apiStores{
			trades:    trades,
			users:     memory.NewUserStore(),
			status:    memory.NewStatusStore(),
			ranks:     memory.NewRankStore(trades),
			snapshots: memory.NewSnapshotStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
	}

	stores := &apiStores{
		trades: pgstore.NewTradeStore(pool),
		users:  pgstore.NewUserStore(pool),
		status: pgstore.NewStatusStore(pool),
		ranks:  pgstore.NewRankStore(pool),
	}

	cleanup := func() { pool.Close() }

	// ClickHouse is optional: without it rank-evolution has no history.
	if clickhouseDSN != "" {
		chConn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if migrate {
			if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
				chConn.Close()
				pool.Close()
				return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
			}
		}
		stores.snapshots = chstore.NewRankHistoryStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}
