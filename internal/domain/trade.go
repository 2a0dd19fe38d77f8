package domain

import "time"

// Trade statuses.
const (
	StatusWin  = "WIN"
	StatusLoss = "LOSS"
)

// Trade is a reconciled buy/sell round trip for one (user, mint) pair on
// one platform. Rows are keyed by (user_address, token_mint) per platform
// table; a rescan overwrites the previous computation.
type Trade struct {
	UserAddress string  `json:"user_address"`
	TokenMint   string  `json:"token_mint"`
	Status      string  `json:"status"` // "WIN" | "LOSS"
	PnlSOL      float64 `json:"pnl_sol"`
	DegenScore  int     `json:"degen_score"`

	SolSpentLamports    int64 `json:"sol_spent_lamports"`
	SolReceivedLamports int64 `json:"sol_received_lamports"`

	FirstBuyAt time.Time `json:"first_buy_at"`
	LastSellAt time.Time `json:"last_sell_at"`
	FirstBuyTx string    `json:"first_buy_tx"`
	LastSellTx string    `json:"last_sell_tx"`

	// Full signature lists, kept for auditability.
	BuyTransactions  []string `json:"buy_transactions"`
	SellTransactions []string `json:"sell_transactions"`
}
