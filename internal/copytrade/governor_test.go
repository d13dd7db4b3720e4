package copytrade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/ledger"
	"solana-launch-trader/internal/storage"
	"solana-launch-trader/internal/storage/memory"
)

type entryCall struct {
	trade domain.ObservedTrade
	size  float64
}

// entryRecorder stands in for the engine entry path.
type entryRecorder struct {
	mu    sync.Mutex
	err   error
	calls []entryCall
}

func (r *entryRecorder) enter(_ context.Context, trade domain.ObservedTrade, size float64) (*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, entryCall{trade: trade, size: size})
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Position{
		PositionID:   fmt.Sprintf("pos-%d", len(r.calls)),
		Mint:         trade.Mint,
		Symbol:       trade.Symbol,
		Status:       domain.StatusOpen,
		Source:       domain.EntrySourceCopy,
		SourceWallet: trade.Wallet,
	}, nil
}

func (r *entryRecorder) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *entryRecorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *entryRecorder) lastCall(t *testing.T) entryCall {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatal("no entry calls recorded")
	}
	return r.calls[len(r.calls)-1]
}

type harness struct {
	g       *Governor
	wallets *memory.SmartWalletStore
	pending *memory.PendingCopyTradeStore
	entries *entryRecorder
}

func newHarness(t *testing.T, cfg domain.CopyTradeConfig, mirror MirrorFunc) *harness {
	t.Helper()

	h := &harness{
		wallets: memory.NewSmartWalletStore(),
		pending: memory.NewPendingCopyTradeStore(),
		entries: &entryRecorder{},
	}

	g, err := NewGovernor(GovernorOptions{
		Config:  cfg,
		Wallets: h.wallets,
		Pending: h.pending,
		Enter:   h.entries.enter,
		Mirror:  mirror,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewGovernor: %v", err)
	}
	h.g = g
	return h
}

// enroll bypasses address validation; curve checks are covered by the
// Enroll tests with real keys.
func (h *harness) enroll(t *testing.T, address string, winRate float64) {
	t.Helper()
	err := h.wallets.Insert(context.Background(), &domain.SmartWallet{
		Address:    address,
		Label:      "test wallet",
		WinRate:    winRate,
		TradeCount: 40,
		EnrolledAt: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("enroll %s: %v", address, err)
	}
}

func buyTrade(wallet, mint string, amountSOL float64) domain.ObservedTrade {
	return domain.ObservedTrade{
		Wallet:     wallet,
		Action:     domain.TradeActionBuy,
		Mint:       mint,
		Symbol:     "TEST",
		AmountSOL:  amountSOL,
		Price:      0.0005,
		ObservedAt: time.Now().UnixMilli(),
	}
}

func expectReject(t *testing.T, res *Result, err error, reason string) {
	t.Helper()
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}
	if res.Outcome != OutcomeRejected {
		t.Fatalf("expected rejection, got %s", res.Outcome)
	}
	if res.Reason != reason {
		t.Errorf("expected reason %s, got %s", reason, res.Reason)
	}
}

func TestGovernor_EntersEnrolledBuy(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	h.enroll(t, "WalletAAA", 0.7)
	ctx := context.Background()

	res, err := h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintAAA", 0.6))
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}

	if res.Outcome != OutcomeEntered {
		t.Fatalf("expected entered, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.Position == nil || res.Position.SourceWallet != "WalletAAA" {
		t.Fatalf("unexpected position: %+v", res.Position)
	}

	call := h.entries.lastCall(t)
	if call.trade.Mint != "MintAAA" {
		t.Errorf("expected mint MintAAA, got %s", call.trade.Mint)
	}
	if call.size != 0.3 {
		t.Errorf("expected size 0.6*0.5=0.3, got %f", call.size)
	}

	// The copy consumed the wallet's interval budget.
	res, err = h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintBBB", 0.6))
	expectReject(t, res, err, ReasonTradeInterval)
	if h.entries.callCount() != 1 {
		t.Errorf("expected 1 entry call, got %d", h.entries.callCount())
	}
}

func TestGovernor_RejectsInDocumentedOrder(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	h.enroll(t, "WalletLow", 0.4)
	h.enroll(t, "WalletAAA", 0.7)
	ctx := context.Background()

	res, err := h.g.HandleTrade(ctx, buyTrade("WalletUnknown", "MintAAA", 1.0))
	expectReject(t, res, err, ReasonNotEnrolled)

	res, err = h.g.HandleTrade(ctx, buyTrade("WalletLow", "MintAAA", 1.0))
	expectReject(t, res, err, ReasonWinRateBelowFloor)

	sell := buyTrade("WalletAAA", "MintAAA", 1.0)
	sell.Action = domain.TradeActionSell
	res, err = h.g.HandleTrade(ctx, sell)
	expectReject(t, res, err, ReasonSellNotCopied)

	if h.entries.callCount() != 0 {
		t.Errorf("expected no entry calls, got %d", h.entries.callCount())
	}
}

func TestGovernor_CapsSuggestedSize(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	h.enroll(t, "WalletAAA", 0.9)

	res, err := h.g.HandleTrade(context.Background(), buyTrade("WalletAAA", "MintAAA", 10))
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}
	if res.Outcome != OutcomeEntered {
		t.Fatalf("expected entered, got %s (%s)", res.Outcome, res.Reason)
	}

	if call := h.entries.lastCall(t); call.size != 0.5 {
		t.Errorf("expected size capped at 0.5, got %f", call.size)
	}
}

func TestGovernor_HourlyWindowSlides(t *testing.T) {
	cfg := domain.DefaultCopyTradeConfig()
	cfg.MaxCopiesPerHour = 2

	h := newHarness(t, cfg, nil)
	h.enroll(t, "WalletAAA", 0.9)
	h.enroll(t, "WalletBBB", 0.9)
	ctx := context.Background()

	// One slot inside the hour, one already aged out.
	h.g.mu.Lock()
	h.g.window = append(h.g.window,
		time.Now().Add(-90*time.Minute),
		time.Now().Add(-10*time.Minute))
	h.g.mu.Unlock()

	res, err := h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintAAA", 0.4))
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}
	if res.Outcome != OutcomeEntered {
		t.Fatalf("expected entered, got %s (%s)", res.Outcome, res.Reason)
	}

	res, err = h.g.HandleTrade(ctx, buyTrade("WalletBBB", "MintBBB", 0.4))
	expectReject(t, res, err, ReasonHourlyLimit)
}

func TestGovernor_PerWalletInterval(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	h.enroll(t, "WalletAAA", 0.9)
	h.enroll(t, "WalletBBB", 0.9)
	ctx := context.Background()

	h.g.mu.Lock()
	h.g.lastCopy["WalletAAA"] = time.Now().Add(-30 * time.Second)
	h.g.mu.Unlock()

	res, err := h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintAAA", 0.4))
	expectReject(t, res, err, ReasonTradeInterval)

	// Another wallet is unaffected.
	res, err = h.g.HandleTrade(ctx, buyTrade("WalletBBB", "MintBBB", 0.4))
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}
	if res.Outcome != OutcomeEntered {
		t.Fatalf("expected entered, got %s (%s)", res.Outcome, res.Reason)
	}

	// The same wallet clears once the interval elapses.
	h.g.mu.Lock()
	h.g.lastCopy["WalletAAA"] = time.Now().Add(-2 * time.Minute)
	h.g.mu.Unlock()

	res, err = h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintCCC", 0.4))
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}
	if res.Outcome != OutcomeEntered {
		t.Fatalf("expected entered, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestGovernor_LossCooldown(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	h.enroll(t, "WalletAAA", 0.9)
	ctx := context.Background()

	h.g.RecordOutcome("WalletAAA", -0.2)

	res, err := h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintAAA", 0.4))
	expectReject(t, res, err, ReasonLossCooldown)

	// A winning close clears the cooldown.
	h.g.RecordOutcome("WalletAAA", 0.15)

	res, err = h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintBBB", 0.4))
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}
	if res.Outcome != OutcomeEntered {
		t.Fatalf("expected entered, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestGovernor_ApprovalQueue(t *testing.T) {
	cfg := domain.DefaultCopyTradeConfig()
	cfg.RequireApproval = true

	h := newHarness(t, cfg, nil)
	h.enroll(t, "WalletAAA", 0.9)
	ctx := context.Background()

	res, err := h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintAAA", 0.6))
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}
	if res.Outcome != OutcomeQueued {
		t.Fatalf("expected queued, got %s (%s)", res.Outcome, res.Reason)
	}
	if h.entries.callCount() != 0 {
		t.Fatalf("queued trade must not enter, got %d calls", h.entries.callCount())
	}

	p := res.Pending
	if p.Status != domain.PendingStatusPending {
		t.Errorf("expected status pending, got %s", p.Status)
	}
	if p.SuggestedSOL != 0.3 {
		t.Errorf("expected suggested 0.3, got %f", p.SuggestedSOL)
	}
	if p.ExpiresAt != p.CreatedAt+cfg.PendingTTL.Milliseconds() {
		t.Errorf("expected expiry %d, got %d", p.CreatedAt+cfg.PendingTTL.Milliseconds(), p.ExpiresAt)
	}

	approved, err := h.g.Approve(ctx, p.PendingID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Outcome != OutcomeEntered {
		t.Fatalf("expected entered, got %s (%s)", approved.Outcome, approved.Reason)
	}
	if call := h.entries.lastCall(t); call.size != 0.3 {
		t.Errorf("expected approved size 0.3, got %f", call.size)
	}

	// The pending trade is resolved exactly once.
	if _, err := h.g.Approve(ctx, p.PendingID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double approve, got %v", err)
	}
}

func TestGovernor_ApproveExpired(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	ctx := context.Background()

	stale := &domain.PendingCopyTrade{
		PendingID:    "pending-stale",
		Wallet:       "WalletAAA",
		Action:       domain.TradeActionBuy,
		Mint:         "MintAAA",
		ObservedSOL:  0.6,
		SuggestedSOL: 0.3,
		Status:       domain.PendingStatusPending,
		CreatedAt:    time.Now().Add(-10 * time.Minute).UnixMilli(),
		ExpiresAt:    time.Now().Add(-5 * time.Minute).UnixMilli(),
	}
	if err := h.pending.Insert(ctx, stale); err != nil {
		t.Fatalf("insert pending: %v", err)
	}

	res, err := h.g.Approve(ctx, "pending-stale")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	expectReject(t, res, nil, ReasonPendingExpired)

	if h.entries.callCount() != 0 {
		t.Errorf("expired trade must not enter, got %d calls", h.entries.callCount())
	}
	if _, err := h.pending.GetByID(ctx, "pending-stale"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected expired pending to be deleted, got %v", err)
	}
}

func TestGovernor_RejectPending(t *testing.T) {
	cfg := domain.DefaultCopyTradeConfig()
	cfg.RequireApproval = true

	h := newHarness(t, cfg, nil)
	h.enroll(t, "WalletAAA", 0.9)
	ctx := context.Background()

	res, err := h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintAAA", 0.6))
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}

	rejected, err := h.g.Reject(ctx, res.Pending.PendingID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != domain.PendingStatusRejected {
		t.Errorf("expected status rejected, got %s", rejected.Status)
	}

	if h.entries.callCount() != 0 {
		t.Errorf("rejected trade must not enter, got %d calls", h.entries.callCount())
	}
	if list, _ := h.g.ListPending(ctx); len(list) != 0 {
		t.Errorf("expected empty queue, got %d", len(list))
	}
}

func TestGovernor_ExpirePendingSweep(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	ctx := context.Background()

	now := time.Now()
	seed := []*domain.PendingCopyTrade{
		{PendingID: "p1", Wallet: "W1", Mint: "M1", CreatedAt: now.Add(-20 * time.Minute).UnixMilli(), ExpiresAt: now.Add(-15 * time.Minute).UnixMilli()},
		{PendingID: "p2", Wallet: "W2", Mint: "M2", CreatedAt: now.Add(-10 * time.Minute).UnixMilli(), ExpiresAt: now.Add(-5 * time.Minute).UnixMilli()},
		{PendingID: "p3", Wallet: "W3", Mint: "M3", CreatedAt: now.UnixMilli(), ExpiresAt: now.Add(5 * time.Minute).UnixMilli()},
	}
	for _, p := range seed {
		p.Status = domain.PendingStatusPending
		if err := h.pending.Insert(ctx, p); err != nil {
			t.Fatalf("insert %s: %v", p.PendingID, err)
		}
	}

	expired, err := h.g.ExpirePending(ctx)
	if err != nil {
		t.Fatalf("ExpirePending: %v", err)
	}
	if expired != 2 {
		t.Errorf("expected 2 expired, got %d", expired)
	}

	left, err := h.g.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(left) != 1 || left[0].PendingID != "p3" {
		t.Errorf("expected only p3 to survive, got %+v", left)
	}
}

func TestGovernor_LedgerRefusalsSurfaceAsRejections(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	h.enroll(t, "WalletAAA", 0.9)
	h.enroll(t, "WalletBBB", 0.9)
	h.enroll(t, "WalletCCC", 0.9)
	ctx := context.Background()

	h.entries.setErr(&domain.CapacityError{Reason: domain.CapacityCopyExposureLimit})
	res, err := h.g.HandleTrade(ctx, buyTrade("WalletAAA", "MintAAA", 0.4))
	expectReject(t, res, err, domain.CapacityCopyExposureLimit)

	h.entries.setErr(ledger.ErrMintAlreadyHeld)
	res, err = h.g.HandleTrade(ctx, buyTrade("WalletBBB", "MintBBB", 0.4))
	expectReject(t, res, err, ReasonMintAlreadyHeld)

	// Anything else is a processing failure, not a rejection.
	h.entries.setErr(errors.New("rpc unavailable"))
	if _, err := h.g.HandleTrade(ctx, buyTrade("WalletCCC", "MintCCC", 0.4)); err == nil {
		t.Error("expected error for entry failure")
	}
}

func TestGovernor_MirrorSell(t *testing.T) {
	cfg := domain.DefaultCopyTradeConfig()
	cfg.CopyBuysOnly = false

	held := &domain.Position{PositionID: "pos-copy", Mint: "MintAAA", SourceWallet: "WalletAAA"}
	mirror := func(_ context.Context, wallet, mint string) (*domain.Position, error) {
		if wallet == held.SourceWallet && mint == held.Mint {
			return held, nil
		}
		return nil, nil
	}

	h := newHarness(t, cfg, mirror)
	h.enroll(t, "WalletAAA", 0.9)
	ctx := context.Background()

	sell := buyTrade("WalletAAA", "MintAAA", 0.6)
	sell.Action = domain.TradeActionSell

	res, err := h.g.HandleTrade(ctx, sell)
	if err != nil {
		t.Fatalf("HandleTrade: %v", err)
	}
	if res.Outcome != OutcomeMirrored {
		t.Fatalf("expected mirrored, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.Position.PositionID != "pos-copy" {
		t.Errorf("unexpected position: %+v", res.Position)
	}

	unheld := buyTrade("WalletAAA", "MintZZZ", 0.6)
	unheld.Action = domain.TradeActionSell
	res, err = h.g.HandleTrade(ctx, unheld)
	expectReject(t, res, err, ReasonNoMatchingPosition)

	if h.entries.callCount() != 0 {
		t.Errorf("sells must not enter, got %d calls", h.entries.callCount())
	}
}

func TestGovernor_SellsRejectedWithoutMirror(t *testing.T) {
	cfg := domain.DefaultCopyTradeConfig()
	cfg.CopyBuysOnly = false

	h := newHarness(t, cfg, nil)
	h.enroll(t, "WalletAAA", 0.9)

	sell := buyTrade("WalletAAA", "MintAAA", 0.6)
	sell.Action = domain.TradeActionSell

	res, err := h.g.HandleTrade(context.Background(), sell)
	expectReject(t, res, err, ReasonSellNotCopied)
}

func TestGovernor_ValidatesObservation(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		trade domain.ObservedTrade
	}{
		{"missing wallet", domain.ObservedTrade{Action: domain.TradeActionBuy, Mint: "MintAAA", AmountSOL: 1}},
		{"missing mint", domain.ObservedTrade{Wallet: "WalletAAA", Action: domain.TradeActionBuy, AmountSOL: 1}},
		{"zero amount", domain.ObservedTrade{Wallet: "WalletAAA", Action: domain.TradeActionBuy, Mint: "MintAAA"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.g.HandleTrade(ctx, tc.trade)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGovernor_Enroll(t *testing.T) {
	h := newHarness(t, domain.DefaultCopyTradeConfig(), nil)
	ctx := context.Background()

	addr := base58.Encode(edwards25519.NewGeneratorPoint().Bytes())

	err := h.g.Enroll(ctx, &domain.SmartWallet{Address: addr, Label: "alpha", WinRate: 0.8})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	wallets, err := h.g.Wallets(ctx)
	if err != nil {
		t.Fatalf("Wallets: %v", err)
	}
	if len(wallets) != 1 || wallets[0].Address != addr {
		t.Fatalf("unexpected wallets: %+v", wallets)
	}
	if wallets[0].EnrolledAt == 0 {
		t.Error("expected EnrolledAt to be stamped")
	}

	if err := h.g.Enroll(ctx, &domain.SmartWallet{Address: addr, WinRate: 0.8}); err == nil {
		t.Error("expected error on duplicate enrollment")
	}

	var vErr *domain.ValidationError
	if err := h.g.Enroll(ctx, &domain.SmartWallet{Address: "not-base58-0OIl", WinRate: 0.8}); !errors.As(err, &vErr) {
		t.Errorf("expected validation error for bad address, got %v", err)
	}
	if err := h.g.Enroll(ctx, &domain.SmartWallet{Address: addr, WinRate: 1.5}); !errors.As(err, &vErr) {
		t.Errorf("expected validation error for win rate, got %v", err)
	}

	if err := h.g.Unenroll(ctx, addr); err != nil {
		t.Fatalf("Unenroll: %v", err)
	}
	if err := h.g.Unenroll(ctx, addr); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double unenroll, got %v", err)
	}
}

func TestNewGovernor_ValidatesConfig(t *testing.T) {
	cfg := domain.DefaultCopyTradeConfig()
	cfg.MaxCopiesPerHour = 0

	_, err := NewGovernor(GovernorOptions{
		Config:  cfg,
		Wallets: memory.NewSmartWalletStore(),
		Pending: memory.NewPendingCopyTradeStore(),
		Enter: func(context.Context, domain.ObservedTrade, float64) (*domain.Position, error) {
			return nil, nil
		},
		Logger: zap.NewNop(),
	})
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
}
