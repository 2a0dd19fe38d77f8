package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/scan"
	"degen-rank/internal/solana"
	"degen-rank/internal/storage"
)

// historyLimit caps the merged trade history response.
const historyLimit = 20

var validSortBy = map[string]bool{
	"degen_score": true,
	"pnl":         true,
	"win_rate":    true,
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// rankResponse wraps a rank entry with its position under the requested
// sort order. The rank field always reflects the degen-score ranking.
type rankResponse struct {
	Position int               `json:"position"`
	Entry    *domain.RankEntry `json:"entry"`
}

func (s *Server) handleGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sortBy")
	if sortBy == "" {
		sortBy = "degen_score"
	}
	if !validSortBy[sortBy] {
		writeError(w, http.StatusBadRequest, "invalid sortBy")
		return
	}

	entries, err := s.ranks.GlobalRanks(r.Context(), sortBy)
	if err != nil {
		s.logger.Printf("Global leaderboard query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}

	out := make([]rankResponse, len(entries))
	for i, e := range entries {
		out[i] = rankResponse{Position: i + 1, Entry: e}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlatformLeaderboard(w http.ResponseWriter, r *http.Request) {
	platform := domain.Platform(r.PathValue("platform"))
	if !platform.Valid() {
		writeError(w, http.StatusBadRequest, "unknown platform")
		return
	}

	trades, err := s.trades.GetLeaderboard(r.Context(), platform)
	if err != nil {
		s.logger.Printf("Platform leaderboard query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	if trades == nil {
		trades = []*domain.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	entry, err := s.ranks.UserRank(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user has no ranked trades")
		return
	}
	if err != nil {
		s.logger.Printf("User stats query failed for %s: %v", address, err)
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// historyEntry is a trade tagged with the platform it was made on.
type historyEntry struct {
	Platform domain.Platform `json:"platform"`
	*domain.Trade
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	var merged []historyEntry
	for _, platform := range domain.Platforms {
		trades, err := s.trades.GetByUser(r.Context(), platform, address)
		if err != nil {
			s.logger.Printf("History query failed for %s on %s: %v", address, platform, err)
			writeError(w, http.StatusInternalServerError, "history unavailable")
			return
		}
		for _, t := range trades {
			merged = append(merged, historyEntry{Platform: platform, Trade: t})
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].LastSellAt.After(merged[j].LastSellAt)
	})
	if len(merged) > historyLimit {
		merged = merged[:historyLimit]
	}
	if merged == nil {
		merged = []historyEntry{}
	}
	writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleUserExists(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	_, err := s.users.Get(r.Context(), address)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Printf("User lookup failed for %s: %v", address, err)
		writeError(w, http.StatusInternalServerError, "lookup unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": err == nil})
}

// rankEvolutionResponse compares the current rank against yesterday's
// snapshot.
type rankEvolutionResponse struct {
	CurrentRank  int    `json:"current_rank"`
	PreviousRank *int   `json:"previous_rank"`
	Change       int    `json:"change"`
	Direction    string `json:"direction"`
}

func (s *Server) handleRankEvolution(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	entry, err := s.ranks.UserRank(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user has no ranked trades")
		return
	}
	if err != nil {
		s.logger.Printf("Rank query failed for %s: %v", address, err)
		writeError(w, http.StatusInternalServerError, "rank unavailable")
		return
	}

	resp := rankEvolutionResponse{CurrentRank: entry.Rank, Direction: "same"}

	if s.snapshots != nil {
		yesterday := s.now().UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)
		snap, err := s.snapshots.RankOn(r.Context(), address, yesterday)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Printf("Snapshot query failed for %s: %v", address, err)
			writeError(w, http.StatusInternalServerError, "rank history unavailable")
			return
		}
		if err == nil {
			prev := snap.Rank
			resp.PreviousRank = &prev
			// Lower rank number means climbing the board.
			resp.Change = prev - entry.Rank
			switch {
			case resp.Change > 0:
				resp.Direction = "up"
			case resp.Change < 0:
				resp.Direction = "down"
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type connectRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := solana.ValidateAddress(req.Address); err != nil {
		writeError(w, http.StatusBadRequest, "invalid solana address")
		return
	}

	err := s.users.Insert(r.Context(), &domain.User{Address: req.Address})
	if errors.Is(err, storage.ErrDuplicateKey) {
		writeJSON(w, http.StatusOK, map[string]bool{"created": false})
		return
	}
	if err != nil {
		s.logger.Printf("User insert failed for %s: %v", req.Address, err)
		writeError(w, http.StatusInternalServerError, "connect failed")
		return
	}

	// First contact gets a full history walk in the background.
	go s.backgroundScan(req.Address, scan.ModeFull)

	writeJSON(w, http.StatusCreated, map[string]bool{"created": true})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	user, err := s.users.Get(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}
	if err != nil {
		s.logger.Printf("User lookup failed for %s: %v", address, err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	now := s.now()
	if user.LastManualRefreshAt != nil {
		if wait := s.refreshCooldown - now.Sub(*user.LastManualRefreshAt); wait > 0 {
			w.Header().Set("Retry-After", wait.Round(time.Second).String())
			writeError(w, http.StatusTooManyRequests, "refresh cooldown active")
			return
		}
	}

	if err := s.users.SetLastManualRefreshAt(r.Context(), address, now); err != nil {
		s.logger.Printf("Cooldown stamp failed for %s: %v", address, err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	go s.backgroundScan(address, scan.ModeIncremental)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh started"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	for _, platform := range domain.Platforms {
		if err := s.trades.DeleteByUser(r.Context(), platform, address); err != nil {
			s.logger.Printf("Trade erasure failed for %s on %s: %v", address, platform, err)
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}
	}

	err := s.users.Delete(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}
	if err != nil {
		s.logger.Printf("User delete failed for %s: %v", address, err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	// Drop the user from the cached ranking right away.
	if err := s.ranks.Refresh(r.Context()); err != nil {
		s.logger.Printf("Rank refresh after delete failed: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type statusResponse struct {
	Status             string     `json:"status"`
	LastGlobalUpdateAt *time.Time `json:"last_global_update_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.status.Get(r.Context())
	if err != nil {
		s.logger.Printf("Status query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:             "running",
		LastGlobalUpdateAt: status.LastGlobalUpdateAt,
	})
}

func (s *Server) handleCronRun(w http.ResponseWriter, r *http.Request) {
	if s.cronSecret == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+s.cronSecret {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Cron runs synchronously so the caller observes success or failure.
	summary, err := s.scanner.Run(r.Context(), "", scan.ModeIncremental)
	if err != nil {
		s.logger.Printf("Cron scan failed: %v", err)
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	s.hub.broadcast(scanUpdate{
		Type:      "scan_completed",
		Mode:      string(scan.ModeIncremental),
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		At:        s.now().UTC(),
	})

	writeJSON(w, http.StatusOK, summary)
}
