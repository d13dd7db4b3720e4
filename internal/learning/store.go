package learning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// Adjustment bounds. A persistently losing signal is down-weighted but
// floored; a winning one is boosted but capped, so no signal can dominate
// the evaluator's threshold on its own.
const (
	adjustmentFloor = -10.0
	adjustmentCap   = 10.0

	// Trades needed before a signal's history counts at full weight.
	confidenceTrades = 5.0
)

// Store tracks win/loss outcomes per entry-reason signal and serves the
// bounded score adjustment the evaluator applies. Records persist through
// the backing SignalRecordStore; a small cache keeps Adjustment lookups
// synchronous and cheap.
type Store struct {
	records storage.SignalRecordStore

	mu    sync.RWMutex
	cache map[string]float64
}

// NewStore creates a learning store over the given record store. Call Load
// before first use to warm the cache from persisted records.
func NewStore(records storage.SignalRecordStore) *Store {
	return &Store{
		records: records,
		cache:   make(map[string]float64),
	}
}

// Load warms the adjustment cache from the backing store.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.records.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load signal records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]float64, len(records))
	for _, r := range records {
		s.cache[r.Signal] = r.ScoreAdjustment
	}
	return nil
}

// RecordOutcome applies one terminal close to every signal tag in the
// composite entry reason. Records are created lazily on a tag's first trade.
func (s *Store) RecordOutcome(ctx context.Context, entryReason string, pnl float64) error {
	for _, tag := range strings.Split(entryReason, "+") {
		if tag == "" {
			continue
		}
		if err := s.recordTag(ctx, tag, pnl); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) recordTag(ctx context.Context, tag string, pnl float64) error {
	r, err := s.records.GetBySignal(ctx, tag)
	if errors.Is(err, storage.ErrNotFound) {
		r = &domain.SignalRecord{Signal: tag}
	} else if err != nil {
		return fmt.Errorf("get signal record %s: %w", tag, err)
	}

	r.Trades++
	if pnl > 0 {
		r.Wins++
	} else {
		r.Losses++
	}
	r.TotalPnL += pnl
	r.AvgPnL = r.TotalPnL / float64(r.Trades)
	r.WinRate = float64(r.Wins) / float64(r.Trades)
	r.ScoreAdjustment = computeAdjustment(r)
	r.UpdatedAt = time.Now().UnixMilli()

	if err := s.records.Upsert(ctx, r); err != nil {
		return fmt.Errorf("upsert signal record %s: %w", tag, err)
	}

	s.mu.Lock()
	s.cache[tag] = r.ScoreAdjustment
	s.mu.Unlock()
	return nil
}

// Adjustment returns the current adjustment for a signal tag; zero for tags
// with no history. Safe for concurrent use with RecordOutcome.
func (s *Store) Adjustment(signal string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[signal]
}

// Rankings returns all signal records ordered best to worst: adjustment
// descending, then win rate, then tag for a stable order.
func (s *Store) Rankings(ctx context.Context) ([]*domain.SignalRecord, error) {
	records, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list signal records: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].ScoreAdjustment != records[j].ScoreAdjustment {
			return records[i].ScoreAdjustment > records[j].ScoreAdjustment
		}
		if records[i].WinRate != records[j].WinRate {
			return records[i].WinRate > records[j].WinRate
		}
		return records[i].Signal < records[j].Signal
	})

	return records, nil
}

// Reset deletes every signal record and clears the cache, returning the
// learner to the neutral state. Used to purge poisoned learning state.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.records.DeleteAll(ctx); err != nil {
		return fmt.Errorf("reset signal records: %w", err)
	}

	s.mu.Lock()
	s.cache = make(map[string]float64)
	s.mu.Unlock()
	return nil
}

// computeAdjustment derives the bounded adjustment from a record's win rate
// and average PnL. Small samples are damped by the confidence factor.
func computeAdjustment(r *domain.SignalRecord) float64 {
	confidence := math.Min(1, float64(r.Trades)/confidenceTrades)
	raw := confidence * ((r.WinRate-0.5)*16 + clamp(r.AvgPnL*4, -4, 4))
	return clamp(raw, adjustmentFloor, adjustmentCap)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
