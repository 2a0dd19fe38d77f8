// Package main runs the scan worker: a single-user or all-user scan of
// ledger history into trade records, then exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"degen-rank/internal/helius"
	"degen-rank/internal/scan"
	"degen-rank/internal/solana"
	"degen-rank/internal/storage"
	chstore "degen-rank/internal/storage/clickhouse"
	"degen-rank/internal/storage/memory"
	"degen-rank/internal/storage/migrations"
	pgstore "degen-rank/internal/storage/postgres"
)

// workerStores holds the storage implementations a scan run needs.
type workerStores struct {
	trades    storage.TradeStore
	users     storage.UserStore
	status    storage.StatusStore
	ranks     storage.RankStore
	snapshots storage.SnapshotStore
}

func main() {
	// Load .env file if exists
	godotenv.Load()

	address := flag.String("address", "", "Wallet address to scan (empty scans all tracked users)")
	mode := flag.String("mode", string(scan.ModeIncremental), "Scan mode: full or incremental")
	heliusAPIKey := flag.String("helius-api-key", os.Getenv("HELIUS_API_KEY"), "Helius API key")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (empty disables rank snapshots)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	migrate := flag.Bool("migrate", false, "Run migrations before scanning")
	fullScanCap := flag.Int("full-scan-cap", scan.DefaultFullScanCap, "Max transactions per full scan")
	chunkSize := flag.Int("chunk-size", scan.DefaultChunkSize, "Users per batch chunk")
	chunkPause := flag.Duration("chunk-pause", scan.DefaultChunkPause, "Pause between batch chunks")

	flag.Parse()

	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lshortfile)

	if *heliusAPIKey == "" {
		logger.Fatal("--helius-api-key is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	scanMode := scan.Mode(*mode)
	if scanMode != scan.ModeFull && scanMode != scan.ModeIncremental {
		logger.Fatalf("Unknown mode %q (want full or incremental)", *mode)
	}

	if *address != "" {
		if err := solana.ValidateAddress(*address); err != nil {
			logger.Fatalf("Invalid address %q: %v", *address, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping scan...", sig)
		cancel()
	}()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	client := helius.NewClient(*heliusAPIKey,
		helius.WithLogger(log.New(os.Stdout, "[helius] ", log.LstdFlags)),
	)

	fetcher := scan.NewFetcher(scan.FetcherOptions{
		Source:      client,
		FullScanCap: *fullScanCap,
		Logger:      log.New(os.Stdout, "[fetcher] ", log.LstdFlags),
	})

	orch := scan.New(scan.Options{
		Fetcher:    fetcher,
		Trades:     stores.trades,
		Users:      stores.users,
		Status:     stores.status,
		Ranks:      stores.ranks,
		Snapshots:  stores.snapshots,
		ChunkSize:  *chunkSize,
		ChunkPause: *chunkPause,
		Logger:     log.New(os.Stdout, "[orchestrator] ", log.LstdFlags),
	})

	start := time.Now()
	summary, err := orch.Run(ctx, *address, scanMode)
	if err != nil {
		logger.Fatalf("Scan failed: %v", err)
	}

	logger.Printf("Scan finished in %v: %d succeeded, %d failed, %d total",
		time.Since(start), summary.Succeeded, summary.Failed, summary.Total)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool) (*workerStores, func(), error) {
	if useMemory {
		trades := memory.NewTradeStore()
		stores := &workerStores{
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

	stores := &workerStores{
		trades: pgstore.NewTradeStore(pool),
		users:  pgstore.NewUserStore(pool),
		status: pgstore.NewStatusStore(pool),
		ranks:  pgstore.NewRankStore(pool),
	}

	cleanup := func() { pool.Close() }

	// ClickHouse is optional: without it batch runs skip rank snapshots.
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
