package postgres

import (
	"context"
	"fmt"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// SmartWalletStore implements storage.SmartWalletStore using PostgreSQL.
type SmartWalletStore struct {
	pool *Pool
}

// NewSmartWalletStore creates a new SmartWalletStore.
func NewSmartWalletStore(pool *Pool) *SmartWalletStore {
	return &SmartWalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SmartWalletStore = (*SmartWalletStore)(nil)

// Insert enrolls a wallet. Returns ErrDuplicateKey if address exists.
func (s *SmartWalletStore) Insert(ctx context.Context, w *domain.SmartWallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO smart_wallets (address, label, win_rate, trade_count, enrolled_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, w.Address, w.Label, w.WinRate, w.TradeCount, w.EnrolledAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert smart wallet: %w", err)
	}
	return nil
}

// GetByAddress retrieves an enrolled wallet. Returns ErrNotFound if not exists.
func (s *SmartWalletStore) GetByAddress(ctx context.Context, address string) (*domain.SmartWallet, error) {
	query := `
		SELECT address, label, win_rate, trade_count, enrolled_at
		FROM smart_wallets
		WHERE address = $1
	`

	var w domain.SmartWallet
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&w.Address, &w.Label, &w.WinRate, &w.TradeCount, &w.EnrolledAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get smart wallet: %w", err)
	}
	return &w, nil
}

// ListAll retrieves all enrolled wallets, ordered by enrolled_at ASC.
func (s *SmartWalletStore) ListAll(ctx context.Context) ([]*domain.SmartWallet, error) {
	query := `
		SELECT address, label, win_rate, trade_count, enrolled_at
		FROM smart_wallets
		ORDER BY enrolled_at ASC, address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list smart wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*domain.SmartWallet
	for rows.Next() {
		var w domain.SmartWallet
		if err := rows.Scan(&w.Address, &w.Label, &w.WinRate, &w.TradeCount, &w.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan smart wallet row: %w", err)
		}
		wallets = append(wallets, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate smart wallet rows: %w", err)
	}

	return wallets, nil
}

// Delete unenrolls a wallet. Returns ErrNotFound if not exists.
func (s *SmartWalletStore) Delete(ctx context.Context, address string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM smart_wallets WHERE address = $1`, address)
	if err != nil {
		return fmt.Errorf("delete smart wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
