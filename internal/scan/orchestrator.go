package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/helius"
	"degen-rank/internal/storage"
)

// Scan modes.
type Mode string

const (
	// ModeFull rescans the whole history up to the safety cap.
	ModeFull Mode = "full"

	// ModeIncremental stops at the stored watermark.
	ModeIncremental Mode = "incremental"
)

// Default orchestrator tuning.
const (
	DefaultChunkSize         = 5
	DefaultChunkPause        = 2 * time.Second
	DefaultSnapshotRetention = 30 * 24 * time.Hour
)

// HistorySource abstracts the fetcher for tests.
type HistorySource interface {
	FetchFull(ctx context.Context, address string) ([]helius.Transaction, error)
	FetchSince(ctx context.Context, address string, watermark time.Time) ([]helius.Transaction, error)
}

// Orchestrator drives fetch → aggregate → classify → upsert across users.
// All work is strictly sequential: one caller identity against the ledger
// API, no internal parallelism. Chunking bounds batch size and creates
// breathing room between groups of users.
type Orchestrator struct {
	fetcher   HistorySource
	trades    storage.TradeStore
	users     storage.UserStore
	status    storage.StatusStore
	ranks     storage.RankStore
	snapshots storage.SnapshotStore // optional

	chunkSize         int
	chunkPause        time.Duration
	snapshotRetention time.Duration
	now               func() time.Time
	logger            *log.Logger
}

// Options contains configuration for creating an Orchestrator.
type Options struct {
	Fetcher   HistorySource
	Trades    storage.TradeStore
	Users     storage.UserStore
	Status    storage.StatusStore
	Ranks     storage.RankStore
	Snapshots storage.SnapshotStore // optional, skips snapshotting when nil

	ChunkSize         int           // Default: 5 users per chunk
	ChunkPause        time.Duration // Default: 2s between chunks
	SnapshotRetention time.Duration // Default: 30 days
	Now               func() time.Time
	Logger            *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	retention := opts.SnapshotRetention
	if retention == 0 {
		retention = DefaultSnapshotRetention
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Orchestrator{
		fetcher:           opts.Fetcher,
		trades:            opts.Trades,
		users:             opts.Users,
		status:            opts.Status,
		ranks:             opts.Ranks,
		snapshots:         opts.Snapshots,
		chunkSize:         chunkSize,
		chunkPause:        opts.ChunkPause,
		snapshotRetention: retention,
		now:               now,
		logger:            logger,
	}
}

// Summary reports aggregate scan counts. Callers never receive per-user
// error detail, only counts.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Run scans one user (non-empty address) or all tracked users (empty
// address). Global batch runs always force incremental semantics. Failures
// are isolated per user: one user's error is counted and the run continues.
func (o *Orchestrator) Run(ctx context.Context, address string, mode Mode) (*Summary, error) {
	start := o.now()
	batch := address == ""

	var targets []string
	var watermarks map[string]time.Time

	if batch {
		mode = ModeIncremental

		users, err := o.users.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}

		status, err := o.status.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("read global watermark: %w", err)
		}

		var global time.Time
		if status.LastGlobalUpdateAt != nil {
			global = *status.LastGlobalUpdateAt
		}

		watermarks = make(map[string]time.Time, len(users))
		for _, u := range users {
			targets = append(targets, u.Address)
			watermarks[u.Address] = global
		}
	} else {
		user, err := o.resolveUser(ctx, address, start)
		if err != nil {
			return nil, err
		}

		var wm time.Time
		if user.LastScannedAt != nil {
			wm = *user.LastScannedAt
		}

		targets = []string{address}
		watermarks = map[string]time.Time{address: wm}
	}

	o.logger.Printf("starting %s scan: %d user(s)", mode, len(targets))

	summary := &Summary{Total: len(targets)}
	chunks := chunkAddresses(targets, o.chunkSize)

	for ci, chunk := range chunks {
		for _, addr := range chunk {
			if err := o.scanUser(ctx, addr, watermarks[addr], mode); err != nil {
				summary.Failed++
				o.logger.Printf("scan failed for %s: %v", addr, err)
			} else {
				summary.Succeeded++
			}

			// Single-user scans own their watermark and advance it no
			// matter what; batch runs defer to the global watermark.
			if !batch {
				if err := o.users.AdvanceLastScannedAt(ctx, addr, start); err != nil {
					o.logger.Printf("advance watermark for %s: %v", addr, err)
				}
			}
		}

		if ci < len(chunks)-1 {
			if err := o.pause(ctx); err != nil {
				return summary, err
			}
		}
	}

	o.finalize(ctx, batch, start, summary)

	return summary, nil
}

// resolveUser loads the target user, creating it on first contact.
func (o *Orchestrator) resolveUser(ctx context.Context, address string, start time.Time) (*domain.User, error) {
	user, err := o.users.Get(ctx, address)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("resolve user %s: %w", address, err)
	}

	user = &domain.User{Address: address, CreatedAt: start}
	if err := o.users.Insert(ctx, user); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, fmt.Errorf("create user %s: %w", address, err)
	}
	return user, nil
}

// scanUser runs both platforms for one user, sequentially. A platform
// failure fails the whole user; earlier platforms' writes are kept.
func (o *Orchestrator) scanUser(ctx context.Context, address string, watermark time.Time, mode Mode) error {
	for _, platform := range domain.Platforms {
		var txs []helius.Transaction
		var err error

		if mode == ModeIncremental && !watermark.IsZero() {
			txs, err = o.fetcher.FetchSince(ctx, address, watermark)
		} else {
			txs, err = o.fetcher.FetchFull(ctx, address)
		}
		if err != nil {
			return fmt.Errorf("fetch %s history: %w", platform, err)
		}

		trades := Classify(address, Aggregate(address, platform, txs))

		if err := o.trades.Upsert(ctx, platform, trades); err != nil {
			return fmt.Errorf("upsert %s trades: %w", platform, err)
		}

		o.logger.Printf("%s: %d transactions, %d completed %s trades",
			address, len(txs), len(trades), platform)
	}

	return nil
}

// finalize advances watermarks and triggers downstream refreshes. The
// global watermark only moves when every user succeeded, so a failed run
// forces the next batch to rescan from the same boundary.
func (o *Orchestrator) finalize(ctx context.Context, batch bool, start time.Time, summary *Summary) {
	if batch && summary.Failed == 0 {
		if err := o.status.AdvanceLastGlobalUpdate(ctx, start); err != nil {
			o.logger.Printf("advance global watermark: %v", err)
		}
	}

	if err := o.ranks.Refresh(ctx); err != nil {
		o.logger.Printf("refresh ranks: %v", err)
	}

	if batch {
		o.snapshotRanks(ctx, start)
	}

	o.logger.Printf("scan complete: %d succeeded, %d failed, %d total",
		summary.Succeeded, summary.Failed, summary.Total)
}

// snapshotRanks freezes today's ranking and purges expired snapshots.
func (o *Orchestrator) snapshotRanks(ctx context.Context, start time.Time) {
	if o.snapshots == nil {
		return
	}

	entries, err := o.ranks.GlobalRanks(ctx, "degen_score")
	if err != nil {
		o.logger.Printf("load ranks for snapshot: %v", err)
		return
	}

	date := start.UTC().Truncate(24 * time.Hour)
	snaps := make([]*domain.RankSnapshot, 0, len(entries))
	for _, e := range entries {
		snaps = append(snaps, &domain.RankSnapshot{
			UserAddress:     e.UserAddress,
			SnapshotDate:    date,
			Rank:            e.Rank,
			TotalDegenScore: e.TotalDegenScore,
		})
	}

	if err := o.snapshots.InsertSnapshots(ctx, snaps); err != nil {
		o.logger.Printf("insert rank snapshots: %v", err)
		return
	}

	if err := o.snapshots.PurgeBefore(ctx, date.Add(-o.snapshotRetention)); err != nil {
		o.logger.Printf("purge rank snapshots: %v", err)
	}
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.chunkPause <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.chunkPause):
		return nil
	}
}

// chunkAddresses partitions addresses into fixed-size groups.
func chunkAddresses(addresses []string, size int) [][]string {
	var chunks [][]string
	for len(addresses) > size {
		chunks = append(chunks, addresses[:size])
		addresses = addresses[size:]
	}
	if len(addresses) > 0 {
		chunks = append(chunks, addresses)
	}
	return chunks
}
