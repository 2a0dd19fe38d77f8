package scan

import (
	"math"
	"sort"

	"degen-rank/internal/domain"
)

// Scoring constants. A win starts from a flat base and earns a
// logarithmic bonus on realized profit; every loss scores the flat
// negative base regardless of magnitude.
const (
	winScoreBase   = 10
	lossScoreBase  = -10
	scoreLogFactor = 50

	lamportsPerSOL = 1_000_000_000
)

// DegenScore computes the score for a realized PnL in SOL.
func DegenScore(pnlSOL float64) int {
	if pnlSOL > 0 {
		return int(math.Round(winScoreBase + scoreLogFactor*math.Log(1+pnlSOL)))
	}
	return lossScoreBase
}

// Classify filters aggregates down to completed trades (at least one buy
// and one sell) and derives PnL, status and degen score for each.
// Results are ordered by mint for determinism.
func Classify(address string, aggs map[string]*TokenAggregate) []*domain.Trade {
	mints := make([]string, 0, len(aggs))
	for mint := range aggs {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	var trades []*domain.Trade
	for _, mint := range mints {
		agg := aggs[mint]
		if len(agg.BuyTransactions) == 0 || len(agg.SellTransactions) == 0 {
			// Open position, not reconciled.
			continue
		}

		pnl := agg.SolReceived - agg.SolSpent
		pnlSOL := float64(pnl) / lamportsPerSOL

		status := domain.StatusLoss
		if pnl > 0 {
			status = domain.StatusWin
		}

		trades = append(trades, &domain.Trade{
			UserAddress:         address,
			TokenMint:           mint,
			Status:              status,
			PnlSOL:              pnlSOL,
			DegenScore:          DegenScore(pnlSOL),
			SolSpentLamports:    agg.SolSpent,
			SolReceivedLamports: agg.SolReceived,
			FirstBuyAt:          agg.FirstBuyAt,
			LastSellAt:          agg.LastSellAt,
			FirstBuyTx:          agg.BuyTransactions[0],
			LastSellTx:          agg.SellTransactions[len(agg.SellTransactions)-1],
			BuyTransactions:     agg.BuyTransactions,
			SellTransactions:    agg.SellTransactions,
		})
	}

	return trades
}
