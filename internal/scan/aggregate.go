package scan

import (
	"strings"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/helius"
)

// TokenAggregate accumulates one mint's buy/sell activity for one user
// during a single scan pass. Amounts are lamports.
type TokenAggregate struct {
	SolSpent    int64
	SolReceived int64

	// Signatures in the order received (newest-first fetch order).
	BuyTransactions  []string
	SellTransactions []string

	FirstBuyAt time.Time // set once, on the first buy folded in
	LastSellAt time.Time // overwritten on every sell
}

// Aggregate folds a user's transactions into per-mint aggregates for one
// platform. Errored transactions and transactions without token transfers
// are skipped. A transaction that both buys and sells the same mint is
// discarded for that mint: an ambiguous internal transfer.
func Aggregate(address string, platform domain.Platform, txs []helius.Transaction) map[string]*TokenAggregate {
	aggs := make(map[string]*TokenAggregate)

	for i := range txs {
		tx := &txs[i]
		if tx.Failed() || len(tx.TokenTransfers) == 0 {
			continue
		}

		solIn, solOut := netSolFlow(address, tx)
		if tx.FeePayer == address {
			solOut += tx.Fee
		}

		for _, mint := range platformMints(platform, tx.TokenTransfers) {
			isBuy := transferTouches(tx.TokenTransfers, mint, "", address)
			isSell := transferTouches(tx.TokenTransfers, mint, address, "")
			if isBuy == isSell {
				// Both directions (or neither): skip this mint.
				continue
			}

			agg, ok := aggs[mint]
			if !ok {
				agg = &TokenAggregate{}
				aggs[mint] = agg
			}

			if isBuy {
				agg.SolSpent += solOut - solIn
				agg.BuyTransactions = append(agg.BuyTransactions, tx.Signature)
				if agg.FirstBuyAt.IsZero() {
					agg.FirstBuyAt = time.Unix(tx.Timestamp, 0).UTC()
				}
			} else {
				agg.SolReceived += solIn - solOut
				agg.SellTransactions = append(agg.SellTransactions, tx.Signature)
				agg.LastSellAt = time.Unix(tx.Timestamp, 0).UTC()
			}
		}
	}

	return aggs
}

// netSolFlow computes the address's SOL inflow/outflow for one transaction.
// When any wrapped-SOL transfer touches the address, only wrapped-SOL
// transfers count; otherwise native transfers do. The two settlement
// channels are mutually exclusive signals, never additive.
func netSolFlow(address string, tx *helius.Transaction) (solIn, solOut int64) {
	hasWsol := false
	for _, t := range tx.TokenTransfers {
		if t.Mint == helius.SOLMint && (t.FromUserAccount == address || t.ToUserAccount == address) {
			hasWsol = true
			break
		}
	}

	if hasWsol {
		for _, t := range tx.TokenTransfers {
			if t.Mint != helius.SOLMint {
				continue
			}
			lamports, ok := t.TokenAmount.Lamports()
			if !ok {
				continue
			}
			if t.FromUserAccount == address {
				solOut += lamports
			}
			if t.ToUserAccount == address {
				solIn += lamports
			}
		}
		return solIn, solOut
	}

	for _, t := range tx.NativeTransfers {
		if t.FromUserAccount == address {
			solOut += t.Amount
		}
		if t.ToUserAccount == address {
			solIn += t.Amount
		}
	}
	return solIn, solOut
}

// platformMints returns the unique mints in the transfer list that carry
// the platform's suffix, in first-seen order.
func platformMints(platform domain.Platform, transfers []helius.TokenTransfer) []string {
	suffix := platform.MintSuffix()
	seen := make(map[string]struct{})
	var mints []string
	for _, t := range transfers {
		if t.Mint == "" || !strings.HasSuffix(t.Mint, suffix) {
			continue
		}
		if _, ok := seen[t.Mint]; ok {
			continue
		}
		seen[t.Mint] = struct{}{}
		mints = append(mints, t.Mint)
	}
	return mints
}

// transferTouches reports whether any transfer of mint matches the given
// from/to account; empty strings are wildcards.
func transferTouches(transfers []helius.TokenTransfer, mint, from, to string) bool {
	for _, t := range transfers {
		if t.Mint != mint {
			continue
		}
		if from != "" && t.FromUserAccount != from {
			continue
		}
		if to != "" && t.ToUserAccount != to {
			continue
		}
		return true
	}
	return false
}
