package storage

import (
	"context"

	"solana-launch-trader/internal/domain"
)

// PositionStore provides access to positions storage. Closed positions are
// never deleted; the store is the recovery source for the ledger.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
	Insert(ctx context.Context, p *domain.Position) error

	// Update replaces an existing position. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// ListOpen retrieves all non-CLOSED positions, ordered by created_at ASC.
	ListOpen(ctx context.Context) ([]*domain.Position, error)

	// ListAll retrieves every position, ordered by created_at ASC.
	ListAll(ctx context.Context) ([]*domain.Position, error)
}

// SignalRecordStore provides access to signal_records storage.
type SignalRecordStore interface {
	// Upsert inserts or replaces the record for a signal tag.
	Upsert(ctx context.Context, r *domain.SignalRecord) error

	// GetBySignal retrieves the record for a tag. Returns ErrNotFound if not exists.
	GetBySignal(ctx context.Context, signal string) (*domain.SignalRecord, error)

	// ListAll retrieves all signal records.
	ListAll(ctx context.Context) ([]*domain.SignalRecord, error)

	// DeleteAll removes every signal record (learning reset).
	DeleteAll(ctx context.Context) error
}

// SmartWalletStore provides access to smart_wallets storage.
type SmartWalletStore interface {
	// Insert enrolls a wallet. Returns ErrDuplicateKey if address exists.
	Insert(ctx context.Context, w *domain.SmartWallet) error

	// GetByAddress retrieves an enrolled wallet. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.SmartWallet, error)

	// ListAll retrieves all enrolled wallets, ordered by enrolled_at ASC.
	ListAll(ctx context.Context) ([]*domain.SmartWallet, error)

	// Delete unenrolls a wallet. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, address string) error
}

// PendingCopyTradeStore provides access to the pending copy-trade queue.
// Ephemeral: pending trades are deleted on approval, rejection, or expiry.
type PendingCopyTradeStore interface {
	// Insert adds a pending trade. Returns ErrDuplicateKey if pending_id exists.
	Insert(ctx context.Context, p *domain.PendingCopyTrade) error

	// GetByID retrieves a pending trade. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, pendingID string) (*domain.PendingCopyTrade, error)

	// List retrieves all pending trades, ordered by created_at ASC.
	List(ctx context.Context) ([]*domain.PendingCopyTrade, error)

	// Delete removes a resolved pending trade. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, pendingID string) error
}

// DecisionLogStore provides access to decision_log storage (append-only).
type DecisionLogStore interface {
	// Insert appends one evaluator decision.
	Insert(ctx context.Context, d *domain.LaunchDecision) error

	// InsertBulk appends multiple decisions.
	InsertBulk(ctx context.Context, decisions []*domain.LaunchDecision) error

	// ListRecent retrieves the most recent decisions, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.LaunchDecision, error)
}

// ExitEventStore provides access to exit_events storage (append-only).
type ExitEventStore interface {
	// Insert appends one exit action record.
	Insert(ctx context.Context, e *domain.ExitEvent) error

	// InsertBulk appends multiple exit action records.
	InsertBulk(ctx context.Context, events []*domain.ExitEvent) error

	// ListByPosition retrieves all events for a position, ordered by decided_at ASC.
	ListByPosition(ctx context.Context, positionID string) ([]*domain.ExitEvent, error)

	// ListRecent retrieves the most recent events, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.ExitEvent, error)
}
