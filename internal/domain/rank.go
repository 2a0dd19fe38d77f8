package domain

import "time"

// RankEntry is one row of the global degen ranking.
type RankEntry struct {
	UserAddress     string  `json:"user_address"`
	Rank            int     `json:"rank"`
	TotalDegenScore int64   `json:"total_degen_score"`
	TotalPnlSOL     float64 `json:"total_pnl_sol"`
	TotalWins       int     `json:"total_wins"`
	TotalLosses     int     `json:"total_losses"`
	WinRate         float64 `json:"win_rate"`
}

// RankSnapshot is a user's rank frozen on a given day, used to show
// rank evolution between batch runs.
type RankSnapshot struct {
	UserAddress     string
	SnapshotDate    time.Time
	Rank            int
	TotalDegenScore int64
}
