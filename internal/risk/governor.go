package risk

import (
	"solana-launch-trader/internal/domain"
)

// The governor is stateless: the ledger actor owns the open-position count
// and exposure totals and passes them in, so check and commit happen under
// the same writer. Every check fails closed.

// CheckEntry validates a proposed entry against the position-count and
// total-exposure ceilings. Returns a CapacityError on the first ceiling hit.
func CheckEntry(openCount int, exposure, proposedSize float64, cfg *domain.TradingConfig) error {
	if openCount >= cfg.MaxOpenPositions {
		return &domain.CapacityError{Reason: domain.CapacityPositionLimit}
	}
	if exposure+proposedSize > cfg.MaxTotalExposure {
		return &domain.CapacityError{Reason: domain.CapacityExposureLimit}
	}
	return nil
}

// CheckCopyEntry validates a proposed copy entry against the copy-exposure
// ceiling. The general ceilings still apply; callers run CheckEntry first.
func CheckCopyEntry(copyExposure, proposedSize, maxCopyExposure float64) error {
	if copyExposure+proposedSize > maxCopyExposure {
		return &domain.CapacityError{Reason: domain.CapacityCopyExposureLimit}
	}
	return nil
}
