package clickhouse

import (
	"context"
	"fmt"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// ExitEventStore implements storage.ExitEventStore using ClickHouse.
// The exit_events table is a plain MergeTree journal of every exit action,
// including failed attempts and decay bumps.
type ExitEventStore struct {
	conn *Conn
}

// NewExitEventStore creates a new ExitEventStore.
func NewExitEventStore(conn *Conn) *ExitEventStore {
	return &ExitEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ExitEventStore = (*ExitEventStore)(nil)

// Insert appends one exit action record.
func (s *ExitEventStore) Insert(ctx context.Context, e *domain.ExitEvent) error {
	query := `
		INSERT INTO exit_events (
			position_id, mint, reason, action, price,
			tokens_sold, proceeds_sol, success, detail, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		e.PositionID, e.Mint, e.Reason, e.Action, e.Price,
		e.TokensSold, e.ProceedsSOL, e.Success, e.Detail, e.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exit event: %w", err)
	}
	return nil
}

// InsertBulk appends multiple exit action records in one batch.
func (s *ExitEventStore) InsertBulk(ctx context.Context, events []*domain.ExitEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO exit_events (
			position_id, mint, reason, action, price,
			tokens_sold, proceeds_sol, success, detail, decided_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.PositionID, e.Mint, e.Reason, e.Action, e.Price,
			e.TokensSold, e.ProceedsSOL, e.Success, e.Detail, e.DecidedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ListByPosition retrieves all events for a position, oldest first.
func (s *ExitEventStore) ListByPosition(ctx context.Context, positionID string) ([]*domain.ExitEvent, error) {
	query := `
		SELECT
			position_id, mint, reason, action, price,
			tokens_sold, proceeds_sol, success, detail, decided_at
		FROM exit_events
		WHERE position_id = ?
		ORDER BY decided_at ASC
	`

	rows, err := s.conn.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("query by position: %w", err)
	}
	defer rows.Close()

	return scanExitEvents(rows)
}

// ListRecent retrieves the most recent events, newest first.
func (s *ExitEventStore) ListRecent(ctx context.Context, limit int) ([]*domain.ExitEvent, error) {
	query := `
		SELECT
			position_id, mint, reason, action, price,
			tokens_sold, proceeds_sol, success, detail, decided_at
		FROM exit_events
		ORDER BY decided_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	return scanExitEvents(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanExitEvents scans multiple rows into a slice.
func scanExitEvents(rows chRows) ([]*domain.ExitEvent, error) {
	var events []*domain.ExitEvent

	for rows.Next() {
		var e domain.ExitEvent
		err := rows.Scan(
			&e.PositionID, &e.Mint, &e.Reason, &e.Action, &e.Price,
			&e.TokensSold, &e.ProceedsSOL, &e.Success, &e.Detail, &e.DecidedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan exit event row: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exit event rows: %w", err)
	}

	return events, nil
}
