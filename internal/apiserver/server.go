// Package apiserver exposes the leaderboard and scan-control HTTP API.
package apiserver

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"degen-rank/internal/scan"
	"degen-rank/internal/storage"
)

// DefaultRefreshCooldown is the minimum interval between manual rescans
// of the same wallet.
const DefaultRefreshCooldown = 1 * time.Hour

// Scanner runs wallet scans. Implemented by scan.Orchestrator.
type Scanner interface {
	Run(ctx context.Context, address string, mode scan.Mode) (*scan.Summary, error)
}

// Options configures the API server.
type Options struct {
	Trades    storage.TradeStore
	Users     storage.UserStore
	Status    storage.StatusStore
	Ranks     storage.RankStore
	Snapshots storage.SnapshotStore // optional, rank-evolution returns no history without it
	Scanner   Scanner

	// CronSecret guards /api/cron/run-worker. Empty disables the endpoint.
	CronSecret string

	// RefreshCooldown overrides DefaultRefreshCooldown.
	RefreshCooldown time.Duration

	Logger *log.Logger
}

// Server handles the HTTP API.
type Server struct {
	trades    storage.TradeStore
	users     storage.UserStore
	status    storage.StatusStore
	ranks     storage.RankStore
	snapshots storage.SnapshotStore
	scanner   Scanner

	cronSecret      string
	refreshCooldown time.Duration

	hub    *updateHub
	logger *log.Logger

	// now is stubbed in tests
	now func() time.Time
}

// New creates an API server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile)
	}

	cooldown := opts.RefreshCooldown
	if cooldown <= 0 {
		cooldown = DefaultRefreshCooldown
	}

	return &Server{
		trades:          opts.Trades,
		users:           opts.Users,
		status:          opts.Status,
		ranks:           opts.Ranks,
		snapshots:       opts.Snapshots,
		scanner:         opts.Scanner,
		cronSecret:      opts.CronSecret,
		refreshCooldown: cooldown,
		hub:             newUpdateHub(logger),
		logger:          logger,
		now:             time.Now,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /leaderboard/global", s.handleGlobalLeaderboard)
	mux.HandleFunc("GET /leaderboard/{platform}", s.handlePlatformLeaderboard)

	mux.HandleFunc("GET /user/{address}/stats", s.handleUserStats)
	mux.HandleFunc("GET /user/{address}/history", s.handleUserHistory)
	mux.HandleFunc("GET /user/{address}/exists", s.handleUserExists)
	mux.HandleFunc("GET /user/{address}/rank-evolution", s.handleRankEvolution)

	mux.HandleFunc("POST /user/connect", s.handleConnect)
	mux.HandleFunc("POST /user/{address}/refresh", s.handleRefresh)
	mux.HandleFunc("DELETE /user/{address}", s.handleDeleteUser)

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/cron/run-worker", s.handleCronRun)

	mux.HandleFunc("GET /ws/updates", s.hub.handleWS)

	return mux
}

// backgroundScan runs a scan detached from the request and pushes the
// outcome to websocket subscribers.
func (s *Server) backgroundScan(address string, mode scan.Mode) {
	ctx := context.Background()

	summary, err := s.scanner.Run(ctx, address, mode)
	if err != nil {
		s.logger.Printf("Background scan failed for %s: %v", address, err)
		s.hub.broadcast(scanUpdate{
			Type:    "scan_failed",
			Address: address,
			Mode:    string(mode),
			At:      s.now().UTC(),
		})
		return
	}

	s.hub.broadcast(scanUpdate{
		Type:      "scan_completed",
		Address:   address,
		Mode:      string(mode),
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		At:        s.now().UTC(),
	})
}

// scanUpdate is the websocket broadcast payload.
type scanUpdate struct {
	Type      string    `json:"type"`
	Address   string    `json:"address,omitempty"`
	Mode      string    `json:"mode"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	At        time.Time `json:"at"`
}
