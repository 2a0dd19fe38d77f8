package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/scan"
	"degen-rank/internal/storage/memory"
)

// validWallet is an on-curve address accepted by the validator.
const validWallet = "6x5SYnLroiN7WYq8NQYU9KHcH4YjpBbwpUfVu3EB7ieH"

// fakeScanner records scan requests and signals each call.
type fakeScanner struct {
	calls chan scanCall
}

type scanCall struct {
	address string
	mode    scan.Mode
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{calls: make(chan scanCall, 8)}
}

func (f *fakeScanner) Run(_ context.Context, address string, mode scan.Mode) (*scan.Summary, error) {
	f.calls <- scanCall{address: address, mode: mode}
	return &scan.Summary{Succeeded: 1, Total: 1}, nil
}

func (f *fakeScanner) waitForCall(t *testing.T) scanCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a scan to be triggered")
		return scanCall{}
	}
}

type testEnv struct {
	server  *Server
	scanner *fakeScanner
	trades  *memory.TradeStore
	users   *memory.UserStore
	status  *memory.StatusStore
	ranks   *memory.RankStore
	snaps   *memory.SnapshotStore
	mux     http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	trades := memory.NewTradeStore()
	scanner := newFakeScanner()
	env := &testEnv{
		scanner: scanner,
		trades:  trades,
		users:   memory.NewUserStore(),
		status:  memory.NewStatusStore(),
		ranks:   memory.NewRankStore(trades),
		snaps:   memory.NewSnapshotStore(),
	}

	env.server = New(Options{
		Trades:     env.trades,
		Users:      env.users,
		Status:     env.status,
		Ranks:      env.ranks,
		Snapshots:  env.snaps,
		Scanner:    scanner,
		CronSecret: "cron-secret",
		Logger:     log.New(io.Discard, "", 0),
	})
	env.mux = env.server.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// seedTrade inserts a winning trade and refreshes the ranking.
func (e *testEnv) seedTrade(t *testing.T, platform domain.Platform, address, mint string, score int, sellAt time.Time) {
	t.Helper()

	err := e.trades.Upsert(context.Background(), platform, []*domain.Trade{{
		UserAddress:      address,
		TokenMint:        mint,
		Status:           domain.StatusWin,
		PnlSOL:           1.0,
		DegenScore:       score,
		LastSellAt:       sellAt,
		FirstBuyTx:       "buy",
		LastSellTx:       "sell",
		BuyTransactions:  []string{"buy"},
		SellTransactions: []string{"sell"},
	}})
	if err != nil {
		t.Fatalf("seed trade: %v", err)
	}
	if err := e.ranks.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh ranks: %v", err)
	}
}

func TestHandleConnect_CreatesUserAndStartsFullScan(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/user/connect", map[string]string{"address": validWallet})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := env.users.Get(context.Background(), validWallet); err != nil {
		t.Errorf("expected user created: %v", err)
	}

	call := env.scanner.waitForCall(t)
	if call.address != validWallet || call.mode != scan.ModeFull {
		t.Errorf("expected full scan of %s, got %+v", validWallet, call)
	}
}

func TestHandleConnect_DuplicateReturnsOK(t *testing.T) {
	env := newTestEnv(t)
	env.users.Insert(context.Background(), &domain.User{Address: validWallet})

	rec := env.do(t, http.MethodPost, "/user/connect", map[string]string{"address": validWallet})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing user, got %d", rec.Code)
	}

	select {
	case call := <-env.scanner.calls:
		t.Errorf("expected no rescan for existing user, got %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleConnect_RejectsInvalidAddress(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/user/connect", map[string]string{"address": "not-a-wallet"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGlobalLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.seedTrade(t, domain.PlatformPump, "walletA", "mint1pump", 45, now)
	env.seedTrade(t, domain.PlatformBonk, "walletB", "mint2bonk", 130, now)

	rec := env.do(t, http.MethodGet, "/leaderboard/global", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out []rankResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].Entry.UserAddress != "walletB" {
		t.Errorf("expected walletB first by degen score, got %s", out[0].Entry.UserAddress)
	}
	if out[0].Position != 1 {
		t.Errorf("expected position 1, got %d", out[0].Position)
	}
}

func TestHandleGlobalLeaderboard_InvalidSortBy(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/leaderboard/global?sortBy=total_degen_score;drop", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort column, got %d", rec.Code)
	}
}

func TestHandlePlatformLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrade(t, domain.PlatformPump, "walletA", "mint1pump", 45, time.Now())

	rec := env.do(t, http.MethodGet, "/leaderboard/pump", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var trades []*domain.Trade
	if err := json.Unmarshal(rec.Body.Bytes(), &trades); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(trades) != 1 {
		t.Errorf("expected 1 trade, got %d", len(trades))
	}

	rec = env.do(t, http.MethodGet, "/leaderboard/raydium", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown platform, got %d", rec.Code)
	}
}

func TestHandleUserStats(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrade(t, domain.PlatformPump, "walletA", "mint1pump", 45, time.Now())

	rec := env.do(t, http.MethodGet, "/user/walletA/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entry domain.RankEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if entry.Rank != 1 || entry.TotalWins != 1 {
		t.Errorf("expected rank 1 with 1 win, got %+v", entry)
	}

	rec = env.do(t, http.MethodGet, "/user/unknown/stats", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unranked user, got %d", rec.Code)
	}
}

func TestHandleUserHistory_MergesPlatformsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	env.seedTrade(t, domain.PlatformPump, "walletA", "oldpump", 45, base.Add(-2*time.Hour))
	env.seedTrade(t, domain.PlatformBonk, "walletA", "newbonk", 45, base.Add(-1*time.Hour))

	rec := env.do(t, http.MethodGet, "/user/walletA/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entries []historyEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Platform != domain.PlatformBonk {
		t.Errorf("expected most recent (bonk) trade first, got %s", entries[0].Platform)
	}
}

func TestHandleUserExists(t *testing.T) {
	env := newTestEnv(t)
	env.users.Insert(context.Background(), &domain.User{Address: "walletA"})

	rec := env.do(t, http.MethodGet, "/user/walletA/exists", nil)
	var out map[string]bool
	json.Unmarshal(rec.Body.Bytes(), &out)
	if !out["exists"] {
		t.Error("expected exists=true")
	}

	rec = env.do(t, http.MethodGet, "/user/walletB/exists", nil)
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["exists"] {
		t.Error("expected exists=false")
	}
}

func TestHandleRankEvolution(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	env.server.now = func() time.Time { return now }

	env.seedTrade(t, domain.PlatformPump, "walletA", "mint1pump", 45, now)

	yesterday := now.Truncate(24 * time.Hour).Add(-24 * time.Hour)
	env.snaps.InsertSnapshots(context.Background(), []*domain.RankSnapshot{
		{UserAddress: "walletA", SnapshotDate: yesterday, Rank: 3, TotalDegenScore: 45},
	})

	rec := env.do(t, http.MethodGet, "/user/walletA/rank-evolution", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var out rankEvolutionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.CurrentRank != 1 {
		t.Errorf("expected current rank 1, got %d", out.CurrentRank)
	}
	if out.PreviousRank == nil || *out.PreviousRank != 3 {
		t.Errorf("expected previous rank 3, got %v", out.PreviousRank)
	}
	if out.Direction != "up" || out.Change != 2 {
		t.Errorf("expected climb of 2, got direction=%s change=%d", out.Direction, out.Change)
	}
}

func TestHandleRefresh(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	env.server.now = func() time.Time { return now }

	env.users.Insert(context.Background(), &domain.User{Address: "walletA"})

	rec := env.do(t, http.MethodPost, "/user/walletA/refresh", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	call := env.scanner.waitForCall(t)
	if call.address != "walletA" || call.mode != scan.ModeIncremental {
		t.Errorf("expected incremental scan of walletA, got %+v", call)
	}

	// A second refresh inside the cooldown window is rejected.
	env.server.now = func() time.Time { return now.Add(10 * time.Minute) }
	rec = env.do(t, http.MethodPost, "/user/walletA/refresh", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 inside cooldown, got %d", rec.Code)
	}

	// After the cooldown it works again.
	env.server.now = func() time.Time { return now.Add(DefaultRefreshCooldown + time.Minute) }
	rec = env.do(t, http.MethodPost, "/user/walletA/refresh", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 after cooldown, got %d", rec.Code)
	}
	env.scanner.waitForCall(t)
}

func TestHandleRefresh_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/user/ghost/refresh", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleDeleteUser_ErasesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.users.Insert(ctx, &domain.User{Address: "walletA"})
	env.seedTrade(t, domain.PlatformPump, "walletA", "mint1pump", 45, time.Now())
	env.seedTrade(t, domain.PlatformBonk, "walletA", "mint2bonk", 45, time.Now())

	rec := env.do(t, http.MethodDelete, "/user/walletA", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := env.users.Get(ctx, "walletA"); err == nil {
		t.Error("expected user deleted")
	}
	for _, platform := range domain.Platforms {
		trades, _ := env.trades.GetByUser(ctx, platform, "walletA")
		if len(trades) != 0 {
			t.Errorf("expected no %s trades after erasure, got %d", platform, len(trades))
		}
	}
	if _, err := env.ranks.UserRank(ctx, "walletA"); err == nil {
		t.Error("expected user gone from ranking after erasure")
	}
}

func TestHandleDeleteUser_Unknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/user/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)
	updated := time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC)
	env.status.AdvanceLastGlobalUpdate(context.Background(), updated)

	rec := env.do(t, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.LastGlobalUpdateAt == nil || !out.LastGlobalUpdateAt.Equal(updated) {
		t.Errorf("expected last update %v, got %v", updated, out.LastGlobalUpdateAt)
	}
}

func TestHandleCronRun(t *testing.T) {
	env := newTestEnv(t)

	// Missing or wrong token is rejected.
	rec := env.do(t, http.MethodGet, "/api/cron/run-worker", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cron/run-worker", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	out := httptest.NewRecorder()
	env.mux.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", out.Code, out.Body.String())
	}

	call := env.scanner.waitForCall(t)
	if call.address != "" || call.mode != scan.ModeIncremental {
		t.Errorf("expected global incremental scan, got %+v", call)
	}
}

func TestHandleCronRun_DisabledWithoutSecret(t *testing.T) {
	env := newTestEnv(t)
	env.server.cronSecret = ""

	req := httptest.NewRequest(http.MethodGet, "/api/cron/run-worker", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when cron is disabled, got %d", rec.Code)
	}
}
