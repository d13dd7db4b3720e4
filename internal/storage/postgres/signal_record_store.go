package postgres

import (
	"context"
	"fmt"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// SignalRecordStore implements storage.SignalRecordStore using PostgreSQL.
type SignalRecordStore struct {
	pool *Pool
}

// NewSignalRecordStore creates a new SignalRecordStore.
func NewSignalRecordStore(pool *Pool) *SignalRecordStore {
	return &SignalRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalRecordStore = (*SignalRecordStore)(nil)

// Upsert inserts or replaces the record for a signal tag.
func (s *SignalRecordStore) Upsert(ctx context.Context, r *domain.SignalRecord) error {
	if r == nil || r.Signal == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO signal_records (
			signal, trades, wins, losses, total_pnl, avg_pnl, win_rate, score_adjustment, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (signal) DO UPDATE SET
			trades = EXCLUDED.trades,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			total_pnl = EXCLUDED.total_pnl,
			avg_pnl = EXCLUDED.avg_pnl,
			win_rate = EXCLUDED.win_rate,
			score_adjustment = EXCLUDED.score_adjustment,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		r.Signal, r.Trades, r.Wins, r.Losses,
		r.TotalPnL, r.AvgPnL, r.WinRate, r.ScoreAdjustment, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert signal record: %w", err)
	}
	return nil
}

// GetBySignal retrieves the record for a tag. Returns ErrNotFound if not exists.
func (s *SignalRecordStore) GetBySignal(ctx context.Context, signal string) (*domain.SignalRecord, error) {
	query := `
		SELECT signal, trades, wins, losses, total_pnl, avg_pnl, win_rate, score_adjustment, updated_at
		FROM signal_records
		WHERE signal = $1
	`

	var r domain.SignalRecord
	err := s.pool.QueryRow(ctx, query, signal).Scan(
		&r.Signal, &r.Trades, &r.Wins, &r.Losses,
		&r.TotalPnL, &r.AvgPnL, &r.WinRate, &r.ScoreAdjustment, &r.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal record: %w", err)
	}
	return &r, nil
}

// ListAll retrieves all signal records, ordered by signal tag ASC.
func (s *SignalRecordStore) ListAll(ctx context.Context) ([]*domain.SignalRecord, error) {
	query := `
		SELECT signal, trades, wins, losses, total_pnl, avg_pnl, win_rate, score_adjustment, updated_at
		FROM signal_records
		ORDER BY signal ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list signal records: %w", err)
	}
	defer rows.Close()

	var records []*domain.SignalRecord
	for rows.Next() {
		var r domain.SignalRecord
		err := rows.Scan(
			&r.Signal, &r.Trades, &r.Wins, &r.Losses,
			&r.TotalPnL, &r.AvgPnL, &r.WinRate, &r.ScoreAdjustment, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal record row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal record rows: %w", err)
	}

	return records, nil
}

// DeleteAll removes every signal record.
func (s *SignalRecordStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM signal_records`); err != nil {
		return fmt.Errorf("delete signal records: %w", err)
	}
	return nil
}
