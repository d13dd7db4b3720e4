package market

import (
	"context"
	"fmt"
	"sync"

	"solana-launch-trader/internal/domain"
)

// Scripted replays preloaded market data in order. Used by tests and the
// simulate binary; implements Provider and LaunchSource.
type Scripted struct {
	mu       sync.Mutex
	snaps    map[string][]*domain.MarketSnapshot
	launches [][]*domain.LaunchSnapshot
}

// NewScripted creates an empty scripted source.
func NewScripted() *Scripted {
	return &Scripted{
		snaps: make(map[string][]*domain.MarketSnapshot),
	}
}

// AddSnapshots appends snapshots for a mint. Each Snapshot call consumes
// one; the final snapshot repeats once the script runs out.
func (s *Scripted) AddSnapshots(mint string, snaps ...*domain.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[mint] = append(s.snaps[mint], snaps...)
}

// AddLaunchWave appends one polling sweep's worth of launches. Each
// Launches call consumes one wave; an exhausted script yields empty sweeps.
func (s *Scripted) AddLaunchWave(launches ...*domain.LaunchSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launches = append(s.launches, launches)
}

// Snapshot pops the next scripted snapshot for the mint.
func (s *Scripted) Snapshot(_ context.Context, mint string) (*domain.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	script := s.snaps[mint]
	if len(script) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPairs, mint)
	}

	next := script[0]
	if len(script) > 1 {
		s.snaps[mint] = script[1:]
	}
	return next, nil
}

// Launches pops the next scripted sweep.
func (s *Scripted) Launches(_ context.Context) ([]*domain.LaunchSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.launches) == 0 {
		return nil, nil
	}
	wave := s.launches[0]
	s.launches = s.launches[1:]
	return wave, nil
}
