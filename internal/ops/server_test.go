package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"solana-launch-trader/internal/copytrade"
	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/engine"
	"solana-launch-trader/internal/execution"
	"solana-launch-trader/internal/market"
	"solana-launch-trader/internal/storage/memory"
)

type opsHarness struct {
	ts      *httptest.Server
	eng     *engine.Engine
	source  *market.Scripted
	wallets *memory.SmartWalletStore
}

func newTestServer(t *testing.T, copyCfg domain.CopyTradeConfig) *opsHarness {
	t.Helper()

	source := market.NewScripted()
	wallets := memory.NewSmartWalletStore()
	executor := execution.NewSimulated(execution.SimulatedOptions{
		Provider:           source,
		StartingBalanceSOL: 10,
		Seed:               1,
		Logger:             zap.NewNop(),
	})

	eng, err := engine.New(engine.Options{
		Config:     domain.DefaultTradingConfig(),
		CopyConfig: copyCfg,
		Positions:  memory.NewPositionStore(),
		Signals:    memory.NewSignalRecordStore(),
		Decisions:  memory.NewDecisionLogStore(),
		Events:     memory.NewExitEventStore(),
		Wallets:    wallets,
		Pending:    memory.NewPendingCopyTradeStore(),
		Launches:   source,
		Provider:   source,
		Executor:   executor,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("engine.Start() error = %v", err)
	}
	t.Cleanup(eng.Stop)

	s := NewServer(ServerOptions{Engine: eng, Logger: zap.NewNop()})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &opsHarness{ts: ts, eng: eng, source: source, wallets: wallets}
}

// seedLaunch scripts one passing launch plus the market data the simulated
// executor fills against.
func (h *opsHarness) seedLaunch(mint string) {
	h.source.AddLaunchWave(&domain.LaunchSnapshot{
		Mint:       mint,
		Symbol:     "TEST",
		Name:       "Test Token",
		AgeSeconds: 120,
		MarketCap:  250000,
		Liquidity:  5000,
		Volume24h:  45000,
		BuyCount:   30,
		SellCount:  10,
		Holders:    35,
		ObservedAt: time.Now().UnixMilli(),
	})
	h.source.AddSnapshots(mint, &domain.MarketSnapshot{
		Mint:       mint,
		Price:      0.001,
		Liquidity:  5000,
		Volume24h:  45000,
		MarketCap:  250000,
		BuyCount:   30,
		SellCount:  10,
		Holders:    35,
		ObservedAt: time.Now().UnixMilli(),
	})
}

func (h *opsHarness) request(t *testing.T, method, path string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp.StatusCode, raw
}

func (h *opsHarness) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	return h.request(t, http.MethodGet, path, nil)
}

func decodeAs[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, domain.CopyTradeConfig{})

	code, raw := h.get(t, "/health")
	if code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", code)
	}
	resp := decodeAs[map[string]interface{}](t, raw)
	if resp["status"] != "ok" {
		t.Errorf("health status = %v, want ok", resp["status"])
	}
	if _, hasSlot := resp["slot"]; hasSlot {
		t.Error("slot reported without a probe configured")
	}
}

type fakeProbe struct {
	slot int64
	err  error
}

func (f *fakeProbe) GetSlot(context.Context) (int64, error) {
	return f.slot, f.err
}

func TestServer_HealthWithProbe(t *testing.T) {
	h := newTestServer(t, domain.CopyTradeConfig{})

	probe := &fakeProbe{slot: 312550000}
	s := NewServer(ServerOptions{Engine: h.eng, Probe: probe, Logger: zap.NewNop()})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["status"] != "ok" || body["slot"] != float64(312550000) {
		t.Errorf("health = %v, want ok with slot", body)
	}

	probe.err = errors.New("rpc unreachable")
	resp2, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp2.Body.Close()
	if err := json.NewDecoder(resp2.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp2.StatusCode != http.StatusOK || body["status"] != "degraded" {
		t.Errorf("degraded health = %d %v, want 200 degraded", resp2.StatusCode, body)
	}
}

func TestServer_MetricsExposed(t *testing.T) {
	h := newTestServer(t, domain.CopyTradeConfig{})

	code, raw := h.get(t, "/metrics")
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", code)
	}
	if !strings.Contains(string(raw), "evaluation_launches_evaluated_total") {
		t.Error("metrics output missing evaluation counters")
	}
}

func TestServer_StatusReflectsKillSwitch(t *testing.T) {
	h := newTestServer(t, domain.CopyTradeConfig{})

	code, raw := h.get(t, "/status")
	if code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", code)
	}
	st := decodeAs[engine.Status](t, raw)
	if !st.Running || !st.TradingEnabled || st.Halted {
		t.Errorf("fresh status = %+v, want running and enabled", st)
	}

	code, raw = h.request(t, http.MethodPost, "/trading/disable", nil)
	if code != http.StatusOK {
		t.Fatalf("POST /trading/disable = %d, want 200", code)
	}
	tr := decodeAs[tradingResponse](t, raw)
	if tr.TradingEnabled {
		t.Error("disable response still reports trading enabled")
	}

	_, raw = h.get(t, "/status")
	st = decodeAs[engine.Status](t, raw)
	if st.TradingEnabled {
		t.Error("status still reports trading enabled after disable")
	}

	code, _ = h.request(t, http.MethodPost, "/trading/enable", nil)
	if code != http.StatusOK {
		t.Fatalf("POST /trading/enable = %d, want 200", code)
	}
	_, raw = h.get(t, "/status")
	st = decodeAs[engine.Status](t, raw)
	if !st.TradingEnabled {
		t.Error("status still reports trading disabled after enable")
	}
}

func TestServer_ConfigPatchAllOrNothing(t *testing.T) {
	h := newTestServer(t, domain.CopyTradeConfig{})

	code, raw := h.get(t, "/config")
	if code != http.StatusOK {
		t.Fatalf("GET /config = %d, want 200", code)
	}
	cfg := decodeAs[domain.TradingConfig](t, raw)
	if cfg.MaxOpenPositions != 5 {
		t.Fatalf("default maxOpenPositions = %d, want 5", cfg.MaxOpenPositions)
	}

	code, raw = h.request(t, http.MethodPatch, "/config", map[string]interface{}{
		"maxOpenPositions": 2,
	})
	if code != http.StatusOK {
		t.Fatalf("PATCH /config = %d, body %s", code, raw)
	}
	cfg = decodeAs[domain.TradingConfig](t, raw)
	if cfg.MaxOpenPositions != 2 {
		t.Errorf("patched maxOpenPositions = %d, want 2", cfg.MaxOpenPositions)
	}

	// Min above max: rejected as a whole, nothing applied.
	code, raw = h.request(t, http.MethodPatch, "/config", map[string]interface{}{
		"minPositionSize":  0.9,
		"maxOpenPositions": 4,
	})
	if code != http.StatusBadRequest {
		t.Fatalf("invalid PATCH /config = %d, body %s, want 400", code, raw)
	}

	_, raw = h.get(t, "/config")
	cfg = decodeAs[domain.TradingConfig](t, raw)
	if cfg.MaxOpenPositions != 2 || cfg.MinPositionSize != 0.05 {
		t.Errorf("config after rejected patch = %+v, want untouched", cfg)
	}
}

func TestServer_EvaluateAndPositions(t *testing.T) {
	h := newTestServer(t, domain.CopyTradeConfig{})
	h.seedLaunch("MintAAA")

	code, raw := h.request(t, http.MethodPost, "/run/evaluate", nil)
	if code != http.StatusOK {
		t.Fatalf("POST /run/evaluate = %d, body %s", code, raw)
	}
	sum := decodeAs[engine.EvaluationSummary](t, raw)
	if sum.Scanned != 1 || sum.Buys != 1 || sum.Entered != 1 {
		t.Errorf("summary = %+v, want one entered", sum)
	}

	code, raw = h.get(t, "/positions?status=open")
	if code != http.StatusOK {
		t.Fatalf("GET /positions = %d, want 200", code)
	}
	open := decodeAs[[]*domain.Position](t, raw)
	if len(open) != 1 || open[0].Mint != "MintAAA" {
		t.Fatalf("open positions = %+v, want one MintAAA", open)
	}

	// Default filter is open.
	_, raw = h.get(t, "/positions")
	if got := decodeAs[[]*domain.Position](t, raw); len(got) != 1 {
		t.Errorf("default positions = %d entries, want 1", len(got))
	}

	code, _ = h.get(t, "/positions?status=everything")
	if code != http.StatusBadRequest {
		t.Errorf("GET /positions?status=everything = %d, want 400", code)
	}

	code, raw = h.get(t, "/stats")
	if code != http.StatusOK {
		t.Fatalf("GET /stats = %d, want 200", code)
	}
	stats := decodeAs[domain.TradingStats](t, raw)
	if stats.OpenPositions != 1 {
		t.Errorf("stats.OpenPositions = %d, want 1", stats.OpenPositions)
	}

	code, _ = h.request(t, http.MethodPost, "/run/exits", nil)
	if code != http.StatusOK {
		t.Errorf("POST /run/exits = %d, want 200", code)
	}
}

func TestServer_ClosePositionErrorMapping(t *testing.T) {
	h := newTestServer(t, domain.CopyTradeConfig{})
	h.seedLaunch("MintAAA")

	if _, err := h.eng.RunEvaluationTick(context.Background()); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	open, err := h.eng.OpenPositions(context.Background())
	if err != nil || len(open) != 1 {
		t.Fatalf("open positions = %v, %v", open, err)
	}
	id := open[0].PositionID

	code, raw := h.request(t, http.MethodPost, "/positions/close", closeRequest{PositionID: id})
	if code != http.StatusOK {
		t.Fatalf("POST /positions/close = %d, body %s", code, raw)
	}
	closed := decodeAs[domain.Position](t, raw)
	if closed.Status != domain.StatusClosed {
		t.Errorf("closed status = %s, want CLOSED", closed.Status)
	}

	code, _ = h.request(t, http.MethodPost, "/positions/close", closeRequest{PositionID: id})
	if code != http.StatusConflict {
		t.Errorf("repeat close = %d, want 409", code)
	}

	code, _ = h.request(t, http.MethodPost, "/positions/close", closeRequest{PositionID: "pos_missing"})
	if code != http.StatusNotFound {
		t.Errorf("close unknown = %d, want 404", code)
	}

	code, _ = h.request(t, http.MethodPost, "/positions/close", closeRequest{})
	if code != http.StatusBadRequest {
		t.Errorf("close without id = %d, want 400", code)
	}
}

func TestServer_CopyApprovalFlow(t *testing.T) {
	copyCfg := domain.DefaultCopyTradeConfig()
	copyCfg.RequireApproval = true
	h := newTestServer(t, copyCfg)

	wallet := "WalletAAA"
	if err := h.wallets.Insert(context.Background(), &domain.SmartWallet{
		Address: wallet, Label: "alpha", WinRate: 0.7, TradeCount: 40,
		EnrolledAt: time.Now().UnixMilli(),
	}); err != nil {
		t.Fatalf("enroll wallet: %v", err)
	}
	h.source.AddSnapshots("MintCCC", &domain.MarketSnapshot{
		Mint: "MintCCC", Price: 0.001, Liquidity: 5000, Volume24h: 45000,
		MarketCap: 250000, ObservedAt: time.Now().UnixMilli(),
	})

	res, err := h.eng.Governor().HandleTrade(context.Background(), domain.ObservedTrade{
		Wallet: wallet, Action: domain.TradeActionBuy, Mint: "MintCCC",
		Symbol: "CCC", AmountSOL: 0.4, ObservedAt: time.Now().UnixMilli(),
	})
	if err != nil || res.Outcome != copytrade.OutcomeQueued {
		t.Fatalf("HandleTrade = %+v, %v, want queued", res, err)
	}

	code, raw := h.get(t, "/copytrades/pending")
	if code != http.StatusOK {
		t.Fatalf("GET /copytrades/pending = %d, want 200", code)
	}
	pending := decodeAs[[]*domain.PendingCopyTrade](t, raw)
	if len(pending) != 1 {
		t.Fatalf("pending = %d entries, want 1", len(pending))
	}

	code, raw = h.request(t, http.MethodPost, "/copytrades/approve", pendingRequest{PendingID: pending[0].PendingID})
	if code != http.StatusOK {
		t.Fatalf("POST /copytrades/approve = %d, body %s", code, raw)
	}
	result := decodeAs[copytrade.Result](t, raw)
	if result.Outcome != copytrade.OutcomeEntered || result.Position == nil {
		t.Errorf("approve result = %+v, want entered with position", result)
	}

	code, _ = h.request(t, http.MethodPost, "/copytrades/approve", pendingRequest{PendingID: pending[0].PendingID})
	if code != http.StatusNotFound {
		t.Errorf("repeat approve = %d, want 404", code)
	}

	code, _ = h.request(t, http.MethodPost, "/copytrades/reject", pendingRequest{PendingID: "pending_missing"})
	if code != http.StatusNotFound {
		t.Errorf("reject unknown = %d, want 404", code)
	}
}

func TestServer_LearningEndpoints(t *testing.T) {
	h := newTestServer(t, domain.CopyTradeConfig{})
	h.seedLaunch("MintAAA")

	ctx := context.Background()
	if _, err := h.eng.RunEvaluationTick(ctx); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	open, err := h.eng.OpenPositions(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("open positions = %v, %v", open, err)
	}
	if _, err := h.eng.ManualClose(ctx, open[0].PositionID); err != nil {
		t.Fatalf("manual close: %v", err)
	}

	code, raw := h.get(t, "/learning/signals")
	if code != http.StatusOK {
		t.Fatalf("GET /learning/signals = %d, want 200", code)
	}
	rankings := decodeAs[[]*domain.SignalRecord](t, raw)
	if len(rankings) == 0 {
		t.Fatal("rankings empty after a closed trade")
	}

	code, _ = h.request(t, http.MethodPost, "/learning/reset", nil)
	if code != http.StatusOK {
		t.Fatalf("POST /learning/reset = %d, want 200", code)
	}

	_, raw = h.get(t, "/learning/signals")
	rankings = decodeAs[[]*domain.SignalRecord](t, raw)
	if len(rankings) != 0 {
		t.Errorf("rankings = %d entries after reset, want 0", len(rankings))
	}
}
