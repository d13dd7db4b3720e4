package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, mint, symbol, name, status,
	entry_price, entry_sol, tokens_bought, entry_reason, entry_tx_ref,
	source, source_wallet,
	tokens_remaining, proceeds_sol, peak_price, decay_level, tier_hit,
	exit_reason, exit_tx_ref, pnl, created_at, closed_at
`

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (` + positionColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22
		)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID, p.Mint, p.Symbol, p.Name, string(p.Status),
		p.EntryPrice, p.EntrySOL, p.TokensBought, p.EntryReason, p.EntryTxRef,
		string(p.Source), p.SourceWallet,
		p.TokensRemaining, p.ProceedsSOL, p.PeakPrice, p.DecayLevel, p.TierHit,
		p.ExitReason, p.ExitTxRef, p.PnL, p.CreatedAt, p.ClosedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update replaces an existing position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE positions SET
			mint = $2, symbol = $3, name = $4, status = $5,
			entry_price = $6, entry_sol = $7, tokens_bought = $8, entry_reason = $9, entry_tx_ref = $10,
			source = $11, source_wallet = $12,
			tokens_remaining = $13, proceeds_sol = $14, peak_price = $15, decay_level = $16, tier_hit = $17,
			exit_reason = $18, exit_tx_ref = $19, pnl = $20, created_at = $21, closed_at = $22
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.PositionID, p.Mint, p.Symbol, p.Name, string(p.Status),
		p.EntryPrice, p.EntrySOL, p.TokensBought, p.EntryReason, p.EntryTxRef,
		string(p.Source), p.SourceWallet,
		p.TokensRemaining, p.ProceedsSOL, p.PeakPrice, p.DecayLevel, p.TierHit,
		p.ExitReason, p.ExitTxRef, p.PnL, p.CreatedAt, p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE position_id = $1`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// ListOpen retrieves all non-CLOSED positions, ordered by created_at ASC.
func (s *PositionStore) ListOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status != $1
		ORDER BY created_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(domain.StatusClosed))
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// ListAll retrieves every position, ordered by created_at ASC.
func (s *PositionStore) ListAll(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		ORDER BY created_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var status, source string

	err := row.Scan(
		&p.PositionID, &p.Mint, &p.Symbol, &p.Name, &status,
		&p.EntryPrice, &p.EntrySOL, &p.TokensBought, &p.EntryReason, &p.EntryTxRef,
		&source, &p.SourceWallet,
		&p.TokensRemaining, &p.ProceedsSOL, &p.PeakPrice, &p.DecayLevel, &p.TierHit,
		&p.ExitReason, &p.ExitTxRef, &p.PnL, &p.CreatedAt, &p.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PositionStatus(status)
	p.Source = domain.EntrySource(source)
	return &p, nil
}

// scanPositions scans multiple rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		var p domain.Position
		var status, source string

		err := rows.Scan(
			&p.PositionID, &p.Mint, &p.Symbol, &p.Name, &status,
			&p.EntryPrice, &p.EntrySOL, &p.TokensBought, &p.EntryReason, &p.EntryTxRef,
			&source, &p.SourceWallet,
			&p.TokensRemaining, &p.ProceedsSOL, &p.PeakPrice, &p.DecayLevel, &p.TierHit,
			&p.ExitReason, &p.ExitTxRef, &p.PnL, &p.CreatedAt, &p.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}

		p.Status = domain.PositionStatus(status)
		p.Source = domain.EntrySource(source)
		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
