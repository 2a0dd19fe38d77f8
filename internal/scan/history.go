// Package scan implements the ledger-scanning and trade-reconciliation
// engine: history fetching, per-token aggregation, trade classification
// and the batch orchestrator that drives them across tracked users.
package scan

import (
	"context"
	"fmt"
	"log"
	"time"

	"degen-rank/internal/helius"
)

// TransactionSource is the slice of the ledger API the fetcher needs.
type TransactionSource interface {
	GetTransactions(ctx context.Context, address, before string) ([]helius.Transaction, error)
}

// Default fetcher tuning.
const (
	// DefaultFullScanCap bounds a full-history walk for very active
	// addresses. Known incompleteness, accepted to bound worst-case cost.
	DefaultFullScanCap = 500

	// DefaultPagePause is inserted between page fetches to stay under
	// API quotas proactively, independent of rate-limit recovery.
	DefaultPagePause = 500 * time.Millisecond
)

// Fetcher walks an address's transaction history backward in time using
// the last signature of each page as the next cursor.
type Fetcher struct {
	source      TransactionSource
	fullScanCap int
	pagePause   time.Duration
	logger      *log.Logger
}

// FetcherOptions contains configuration for creating a Fetcher.
type FetcherOptions struct {
	Source      TransactionSource
	FullScanCap int           // Default: 500 transactions
	PagePause   time.Duration // Default: 500ms between pages
	Logger      *log.Logger
}

// NewFetcher creates a new history fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	fullScanCap := opts.FullScanCap
	if fullScanCap == 0 {
		fullScanCap = DefaultFullScanCap
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Fetcher{
		source:      opts.Source,
		fullScanCap: fullScanCap,
		pagePause:   opts.PagePause,
		logger:      logger,
	}
}

// FetchFull walks the address's history until exhausted or until the
// safety cap is reached.
func (f *Fetcher) FetchFull(ctx context.Context, address string) ([]helius.Transaction, error) {
	var all []helius.Transaction
	var before string

	for {
		page, err := f.source.GetTransactions(ctx, address, before)
		if err != nil {
			return nil, fmt.Errorf("fetch history page for %s: %w", address, err)
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		before = page[len(page)-1].Signature

		if len(all) > f.fullScanCap {
			f.logger.Printf("stopping full scan for %s at %d transactions (cap %d)",
				address, len(all), f.fullScanCap)
			break
		}

		if err := f.pause(ctx); err != nil {
			return nil, err
		}
	}

	return all, nil
}

// FetchSince walks the address's history until it crosses the watermark.
// Pages arrive newest-first; the first transaction older than the
// watermark truncates its page and ends the walk, itself excluded.
func (f *Fetcher) FetchSince(ctx context.Context, address string, watermark time.Time) ([]helius.Transaction, error) {
	var all []helius.Transaction
	var before string
	cutoff := watermark.Unix()

	for {
		page, err := f.source.GetTransactions(ctx, address, before)
		if err != nil {
			return nil, fmt.Errorf("fetch history page for %s: %w", address, err)
		}
		if len(page) == 0 {
			break
		}

		for _, tx := range page {
			if tx.Timestamp < cutoff {
				return all, nil
			}
			all = append(all, tx)
		}
		before = page[len(page)-1].Signature

		if err := f.pause(ctx); err != nil {
			return nil, err
		}
	}

	return all, nil
}

func (f *Fetcher) pause(ctx context.Context) error {
	if f.pagePause <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.pagePause):
		return nil
	}
}
