package clickhouse

import (
	"context"
	"fmt"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// DecisionLogStore implements storage.DecisionLogStore using ClickHouse.
// The decision_log table is a plain MergeTree journal: every evaluator
// verdict is appended, duplicates are meaningless.
type DecisionLogStore struct {
	conn *Conn
}

// NewDecisionLogStore creates a new DecisionLogStore.
func NewDecisionLogStore(conn *Conn) *DecisionLogStore {
	return &DecisionLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionLogStore = (*DecisionLogStore)(nil)

// Insert appends one evaluator decision.
func (s *DecisionLogStore) Insert(ctx context.Context, d *domain.LaunchDecision) error {
	query := `
		INSERT INTO decision_log (
			mint, symbol, source, score, red_flags,
			entry_reason, should_buy, suggested_sol, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		d.Mint, d.Symbol, string(d.Source), d.Score, d.RedFlags,
		d.EntryReason, d.ShouldBuy, d.SuggestedSOL, d.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// InsertBulk appends multiple decisions in one batch.
func (s *DecisionLogStore) InsertBulk(ctx context.Context, decisions []*domain.LaunchDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO decision_log (
			mint, symbol, source, score, red_flags,
			entry_reason, should_buy, suggested_sol, evaluated_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range decisions {
		err = batch.Append(
			d.Mint, d.Symbol, string(d.Source), d.Score, d.RedFlags,
			d.EntryReason, d.ShouldBuy, d.SuggestedSOL, d.EvaluatedAt,
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

// ListRecent retrieves the most recent decisions, newest first.
func (s *DecisionLogStore) ListRecent(ctx context.Context, limit int) ([]*domain.LaunchDecision, error) {
	query := `
		SELECT
			mint, symbol, source, score, red_flags,
			entry_reason, should_buy, suggested_sol, evaluated_at
		FROM decision_log
		ORDER BY evaluated_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*domain.LaunchDecision
	for rows.Next() {
		var d domain.LaunchDecision
		var source string
		err := rows.Scan(
			&d.Mint, &d.Symbol, &source, &d.Score, &d.RedFlags,
			&d.EntryReason, &d.ShouldBuy, &d.SuggestedSOL, &d.EvaluatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		d.Source = domain.EntrySource(source)
		decisions = append(decisions, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}

	return decisions, nil
}
