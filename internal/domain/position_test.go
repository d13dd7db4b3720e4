package domain

import "testing"

func TestPosition_CostBasisRemaining(t *testing.T) {
	p := &Position{
		EntrySOL:        0.4,
		TokensBought:    1000,
		TokensRemaining: 1000,
	}
	if got := p.CostBasisRemaining(); got != 0.4 {
		t.Errorf("Full position: got %f, want 0.4", got)
	}

	p.TokensRemaining = 500
	if got := p.CostBasisRemaining(); got != 0.2 {
		t.Errorf("Half sold: got %f, want 0.2", got)
	}

	p.TokensRemaining = 0
	if got := p.CostBasisRemaining(); got != 0 {
		t.Errorf("Fully sold: got %f, want 0", got)
	}
}

func TestPosition_CostBasisRemainingZeroBought(t *testing.T) {
	p := &Position{EntrySOL: 0.4}
	if got := p.CostBasisRemaining(); got != 0 {
		t.Errorf("Zero tokens bought: got %f, want 0", got)
	}
}

func TestTakeProfitReason(t *testing.T) {
	if got := TakeProfitReason(1); got != "take_profit_tier_1" {
		t.Errorf("Tier 1: got %s", got)
	}
	if got := TakeProfitReason(3); got != "take_profit_tier_3" {
		t.Errorf("Tier 3: got %s", got)
	}
}

func TestPositionStatus_IsValid(t *testing.T) {
	valid := []PositionStatus{StatusOpen, StatusPartiallyExited, StatusClosed}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if PositionStatus("HELD").IsValid() {
		t.Error("HELD should not be valid")
	}
}

func TestPosition_CloneIndependent(t *testing.T) {
	pnl := 0.25
	closedAt := int64(1700000000000)
	p := &Position{
		PositionID: "pos1",
		Status:     StatusClosed,
		PnL:        &pnl,
		ClosedAt:   &closedAt,
	}

	clone := p.Clone()
	*clone.PnL = -1.0
	*clone.ClosedAt = 0

	if *p.PnL != 0.25 {
		t.Error("Clone shares PnL pointer")
	}
	if *p.ClosedAt != 1700000000000 {
		t.Error("Clone shares ClosedAt pointer")
	}
}

func TestLaunchSnapshot_BuySellRatio(t *testing.T) {
	l := &LaunchSnapshot{BuyCount: 30, SellCount: 10}
	if got := l.BuySellRatio(); got != 0.75 {
		t.Errorf("30/40: got %f, want 0.75", got)
	}

	// No transactions: neutral 0.5
	l = &LaunchSnapshot{}
	if got := l.BuySellRatio(); got != 0.5 {
		t.Errorf("No txns: got %f, want 0.5", got)
	}
}
