package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/idhash"
	"solana-launch-trader/internal/risk"
	"solana-launch-trader/internal/storage"
)

// Actor protocol errors.
var (
	// ErrMintAlreadyHeld means a non-terminal position or a pending
	// reservation already exists for the mint (no pyramiding).
	ErrMintAlreadyHeld = errors.New("mint already held")

	// ErrUnknownReservation means the reservation ID was never issued or
	// was already resolved.
	ErrUnknownReservation = errors.New("unknown reservation")

	// ErrExitInFlight refuses a second concurrent BeginExit.
	ErrExitInFlight = errors.New("exit already in flight")

	// ErrNoExitInFlight refuses a CommitExit without a prior BeginExit.
	ErrNoExitInFlight = errors.New("no exit in flight")

	// ErrPositionClosed means the position reached CLOSED; superseded
	// ticks treat it as a no-op.
	ErrPositionClosed = errors.New("position closed")

	// ErrStopped is returned once the actor has shut down. An operation
	// failing with it may or may not have been applied.
	ErrStopped = errors.New("ledger stopped")
)

// EntryRequest describes a proposed entry awaiting a capacity reservation.
type EntryRequest struct {
	Mint         string
	Symbol       string
	Name         string
	SizeSOL      float64
	EntryReason  string
	Source       domain.EntrySource
	SourceWallet string

	// CopyExposureCapSOL bounds total copy-sourced exposure. Consulted
	// only for copy entries.
	CopyExposureCapSOL float64
}

// Fill carries the result of an executed entry swap.
type Fill struct {
	TxRef     string
	Tokens    float64 // tokens received
	ExecPrice float64 // SOL per token
}

// ExitFill carries the result of an executed exit swap, or the terms of a
// bookkeeping-only transition.
type ExitFill struct {
	Reason       string
	TxRef        string
	TokensSold   float64
	ProceedsSOL  float64
	Terminal     bool
	TierConsumed bool // advance TierHit (take-profit sells)
}

// Exposure is a point-in-time snapshot of the capacity counters. Budget
// held by unresolved reservations counts toward the SOL totals.
type Exposure struct {
	OpenPositions int     `json:"openPositions"`
	Reservations  int     `json:"reservations"`
	TotalSOL      float64 `json:"totalSol"`
	CopySOL       float64 `json:"copySol"`
}

type reservation struct {
	id  string
	req EntryRequest
}

type request struct {
	fn   func()
	done chan struct{}
}

// Ledger is the single writer for all position state. One goroutine owns
// the maps and the exposure arithmetic; every operation runs as a closure
// on that goroutine, so a capacity check and the commit it guards are one
// logical transaction. Store writes happen inside the actor; external swap
// I/O never does: callers hold a reservation or an in-flight exit mark
// across the swap instead.
type Ledger struct {
	store  storage.PositionStore
	config func() *domain.TradingConfig
	logger *zap.Logger

	requests chan request
	stop     chan struct{}
	stopOnce sync.Once

	// Owned by the actor goroutine. Touched directly only during Recover
	// (before Start) and inside request closures.
	live         map[string]*domain.Position // position ID -> non-terminal position
	byMint       map[string]string           // mint -> position ID
	reservations map[string]*reservation
	inFlight     map[string]struct{} // position IDs with an exit in flight
	nextRsvID    uint64
}

// New creates a ledger over the given position store. config supplies the
// live TradingConfig on every capacity check.
func New(store storage.PositionStore, config func() *domain.TradingConfig, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:        store,
		config:       config,
		logger:       logger,
		requests:     make(chan request, 64),
		stop:         make(chan struct{}),
		live:         make(map[string]*domain.Position),
		byMint:       make(map[string]string),
		reservations: make(map[string]*reservation),
		inFlight:     make(map[string]struct{}),
	}
}

// Recover reloads non-terminal positions from the store and rebuilds the
// exposure counters. Must be called before Start.
func (l *Ledger) Recover(ctx context.Context) error {
	open, err := l.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("recover positions: %w", err)
	}

	for _, p := range open {
		if prev, dup := l.byMint[p.Mint]; dup {
			l.logger.Warn("two non-terminal positions share a mint; keeping the newer",
				zap.String("mint", p.Mint),
				zap.String("kept", p.PositionID),
				zap.String("shadowed", prev))
		}
		l.live[p.PositionID] = p
		l.byMint[p.Mint] = p.PositionID
	}

	l.logger.Info("ledger recovered", zap.Int("open_positions", len(l.live)))
	return nil
}

// Start launches the actor goroutine.
func (l *Ledger) Start() {
	go l.loop()
}

// Stop shuts the actor down. Operations in flight at stop time may be
// dropped; callers see ErrStopped.
func (l *Ledger) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Ledger) loop() {
	for {
		select {
		case <-l.stop:
			return
		case req := <-l.requests:
			req.fn()
			close(req.done)
		}
	}
}

// do runs fn on the actor goroutine and waits for it to finish. Enqueueing
// honors ctx; once enqueued the wait is bounded only by the actor itself.
func (l *Ledger) do(ctx context.Context, fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}

	select {
	case l.requests <- req:
	case <-l.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-l.stop:
		return ErrStopped
	}
}

// ReserveEntry atomically checks capacity (one-per-mint, position count,
// exposure, copy cap) and holds budget for an in-flight entry. The caller
// must resolve the reservation with CommitEntry or CancelReservation.
func (l *Ledger) ReserveEntry(ctx context.Context, req EntryRequest) (string, error) {
	var (
		id    string
		opErr error
	)
	if err := l.do(ctx, func() { id, opErr = l.reserveEntry(req) }); err != nil {
		return "", err
	}
	return id, opErr
}

func (l *Ledger) reserveEntry(req EntryRequest) (string, error) {
	if req.Mint == "" {
		return "", &domain.ValidationError{Field: "mint", Reason: "required"}
	}
	if req.SizeSOL <= 0 {
		return "", &domain.ValidationError{Field: "sizeSOL", Reason: "must be positive"}
	}

	if _, held := l.byMint[req.Mint]; held {
		return "", ErrMintAlreadyHeld
	}
	for _, r := range l.reservations {
		if r.req.Mint == req.Mint {
			return "", ErrMintAlreadyHeld
		}
	}

	cfg := l.config()
	total, copyTotal := l.exposureSOL()
	openCount := len(l.live) + len(l.reservations)

	if err := risk.CheckEntry(openCount, total, req.SizeSOL, cfg); err != nil {
		return "", err
	}
	if req.Source == domain.EntrySourceCopy {
		if err := risk.CheckCopyEntry(copyTotal, req.SizeSOL, req.CopyExposureCapSOL); err != nil {
			return "", err
		}
	}

	l.nextRsvID++
	id := fmt.Sprintf("rsv-%d", l.nextRsvID)
	l.reservations[id] = &reservation{id: id, req: req}
	return id, nil
}

// CommitEntry finalizes a reservation into an OPEN position after the swap
// succeeded. The returned copy carries the new deterministic position ID.
func (l *Ledger) CommitEntry(ctx context.Context, reservationID string, fill Fill) (*domain.Position, error) {
	var (
		p     *domain.Position
		opErr error
	)
	if err := l.do(ctx, func() { p, opErr = l.commitEntry(reservationID, fill) }); err != nil {
		return nil, err
	}
	return p, opErr
}

func (l *Ledger) commitEntry(reservationID string, fill Fill) (*domain.Position, error) {
	rsv, ok := l.reservations[reservationID]
	if !ok {
		return nil, ErrUnknownReservation
	}
	delete(l.reservations, reservationID)

	now := time.Now().UnixMilli()
	p := &domain.Position{
		PositionID:      idhash.ComputePositionID(rsv.req.Mint, rsv.req.SourceWallet, now),
		Mint:            rsv.req.Mint,
		Symbol:          rsv.req.Symbol,
		Name:            rsv.req.Name,
		Status:          domain.StatusOpen,
		EntryPrice:      fill.ExecPrice,
		EntrySOL:        rsv.req.SizeSOL,
		TokensBought:    fill.Tokens,
		EntryReason:     rsv.req.EntryReason,
		EntryTxRef:      fill.TxRef,
		Source:          rsv.req.Source,
		SourceWallet:    rsv.req.SourceWallet,
		TokensRemaining: fill.Tokens,
		PeakPrice:       fill.ExecPrice,
		CreatedAt:       now,
	}

	l.live[p.PositionID] = p
	l.byMint[p.Mint] = p.PositionID
	l.persist(p, true)
	return p.Clone(), nil
}

// CancelReservation releases held budget after a failed or abandoned swap.
func (l *Ledger) CancelReservation(ctx context.Context, reservationID string) error {
	var opErr error
	if err := l.do(ctx, func() { opErr = l.cancelReservation(reservationID) }); err != nil {
		return err
	}
	return opErr
}

func (l *Ledger) cancelReservation(reservationID string) error {
	if _, ok := l.reservations[reservationID]; !ok {
		return ErrUnknownReservation
	}
	delete(l.reservations, reservationID)
	return nil
}

// BeginExit marks an exit in flight and returns the position as of the
// mark. A second BeginExit is refused until the first resolves; a CLOSED
// position returns ErrPositionClosed so superseded ticks no-op.
func (l *Ledger) BeginExit(ctx context.Context, positionID string) (*domain.Position, error) {
	var (
		p     *domain.Position
		opErr error
	)
	if err := l.do(ctx, func() { p, opErr = l.beginExit(ctx, positionID) }); err != nil {
		return nil, err
	}
	return p, opErr
}

func (l *Ledger) beginExit(ctx context.Context, positionID string) (*domain.Position, error) {
	p, ok := l.live[positionID]
	if !ok {
		return nil, l.missingPosition(ctx, positionID)
	}
	if _, busy := l.inFlight[positionID]; busy {
		return nil, ErrExitInFlight
	}
	l.inFlight[positionID] = struct{}{}
	return p.Clone(), nil
}

// CommitExit applies a resolved exit: partial transitions reduce the
// remaining size, terminal ones set PnL and ClosedAt and free the mint.
func (l *Ledger) CommitExit(ctx context.Context, positionID string, exit ExitFill) (*domain.Position, error) {
	var (
		p     *domain.Position
		opErr error
	)
	if err := l.do(ctx, func() { p, opErr = l.commitExit(ctx, positionID, exit) }); err != nil {
		return nil, err
	}
	return p, opErr
}

func (l *Ledger) commitExit(ctx context.Context, positionID string, exit ExitFill) (*domain.Position, error) {
	p, ok := l.live[positionID]
	if !ok {
		return nil, l.missingPosition(ctx, positionID)
	}
	if _, busy := l.inFlight[positionID]; !busy {
		return nil, ErrNoExitInFlight
	}
	delete(l.inFlight, positionID)

	p.ProceedsSOL += exit.ProceedsSOL
	if exit.TierConsumed {
		p.TierHit++
	}

	if exit.Terminal {
		l.close(p, exit.Reason, exit.TxRef)
	} else {
		p.TokensRemaining -= exit.TokensSold
		if p.TokensRemaining < 0 {
			p.TokensRemaining = 0
		}
		p.Status = domain.StatusPartiallyExited
	}

	l.persist(p, false)
	return p.Clone(), nil
}

// AbortExit clears the in-flight mark after a failed swap, restoring the
// position's prior state. Idempotent: aborting a resolved or closed
// position is a no-op.
func (l *Ledger) AbortExit(ctx context.Context, positionID string) error {
	return l.do(ctx, func() { delete(l.inFlight, positionID) })
}

// ManualClose records an out-of-band close unconditionally: the external
// event is authoritative, with or without an exit in flight. A repeat
// close reports ErrPositionClosed, so close side effects run exactly once.
func (l *Ledger) ManualClose(ctx context.Context, positionID string) (*domain.Position, error) {
	var (
		p     *domain.Position
		opErr error
	)
	if err := l.do(ctx, func() { p, opErr = l.manualClose(ctx, positionID) }); err != nil {
		return nil, err
	}
	return p, opErr
}

func (l *Ledger) manualClose(ctx context.Context, positionID string) (*domain.Position, error) {
	p, ok := l.live[positionID]
	if !ok {
		return nil, l.missingPosition(ctx, positionID)
	}

	delete(l.inFlight, positionID)
	l.close(p, domain.ExitReasonManual, "")
	l.persist(p, false)
	return p.Clone(), nil
}

// close applies the terminal transition in place and frees the mint.
// Proceeds seen so far are final; tokens sold outside the system earn no
// recorded proceeds.
func (l *Ledger) close(p *domain.Position, reason, txRef string) {
	now := time.Now().UnixMilli()
	pnl := p.ProceedsSOL - p.EntrySOL

	p.Status = domain.StatusClosed
	p.TokensRemaining = 0
	p.ExitReason = reason
	p.ExitTxRef = txRef
	p.PnL = &pnl
	p.ClosedAt = &now

	delete(l.live, p.PositionID)
	delete(l.byMint, p.Mint)
}

// TouchMark ratchets the trailing watermark and optionally bumps the decay
// level. Called from exit ticks before rule evaluation.
func (l *Ledger) TouchMark(ctx context.Context, positionID string, price float64, bumpDecay bool) (*domain.Position, error) {
	var (
		p     *domain.Position
		opErr error
	)
	if err := l.do(ctx, func() { p, opErr = l.touchMark(ctx, positionID, price, bumpDecay) }); err != nil {
		return nil, err
	}
	return p, opErr
}

func (l *Ledger) touchMark(ctx context.Context, positionID string, price float64, bumpDecay bool) (*domain.Position, error) {
	p, ok := l.live[positionID]
	if !ok {
		return nil, l.missingPosition(ctx, positionID)
	}

	changed := false
	if price > p.PeakPrice {
		p.PeakPrice = price
		changed = true
	}
	if bumpDecay {
		p.DecayLevel++
		changed = true
	}
	if changed {
		l.persist(p, false)
	}
	return p.Clone(), nil
}

// Get returns a copy of a position, live or closed.
func (l *Ledger) Get(ctx context.Context, positionID string) (*domain.Position, error) {
	var (
		p     *domain.Position
		opErr error
	)
	if err := l.do(ctx, func() { p, opErr = l.get(ctx, positionID) }); err != nil {
		return nil, err
	}
	return p, opErr
}

func (l *Ledger) get(ctx context.Context, positionID string) (*domain.Position, error) {
	if p, ok := l.live[positionID]; ok {
		return p.Clone(), nil
	}
	return l.store.GetByID(ctx, positionID)
}

// ListOpen returns copies of every non-terminal position, oldest first.
func (l *Ledger) ListOpen(ctx context.Context) ([]*domain.Position, error) {
	var out []*domain.Position
	if err := l.do(ctx, func() { out = l.listOpen() }); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) listOpen() []*domain.Position {
	out := make([]*domain.Position, 0, len(l.live))
	for _, p := range l.live {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].PositionID < out[j].PositionID
	})
	return out
}

// Exposure returns the current capacity counters.
func (l *Ledger) Exposure(ctx context.Context) (Exposure, error) {
	var e Exposure
	if err := l.do(ctx, func() { e = l.exposure() }); err != nil {
		return Exposure{}, err
	}
	return e, nil
}

func (l *Ledger) exposure() Exposure {
	total, copyTotal := l.exposureSOL()
	return Exposure{
		OpenPositions: len(l.live),
		Reservations:  len(l.reservations),
		TotalSOL:      total,
		CopySOL:       copyTotal,
	}
}

// exposureSOL sums committed cost basis and reserved budget, total and
// copy-sourced.
func (l *Ledger) exposureSOL() (total, copyTotal float64) {
	for _, p := range l.live {
		basis := p.CostBasisRemaining()
		total += basis
		if p.Source == domain.EntrySourceCopy {
			copyTotal += basis
		}
	}
	for _, r := range l.reservations {
		total += r.req.SizeSOL
		if r.req.Source == domain.EntrySourceCopy {
			copyTotal += r.req.SizeSOL
		}
	}
	return total, copyTotal
}

// missingPosition distinguishes a closed position from one that never
// existed.
func (l *Ledger) missingPosition(ctx context.Context, positionID string) error {
	if _, err := l.store.GetByID(ctx, positionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("load position %s: %w", positionID, err)
	}
	return ErrPositionClosed
}

// persist writes the position inside the actor. A failure leaves the store
// behind the ledger; trading continues on the in-memory state.
func (l *Ledger) persist(p *domain.Position, insert bool) {
	var err error
	if insert {
		err = l.store.Insert(context.Background(), p)
	} else {
		err = l.store.Update(context.Background(), p)
	}
	if err != nil {
		l.logger.Error("position persist failed; store is behind the ledger",
			zap.String("position_id", p.PositionID),
			zap.String("mint", p.Mint),
			zap.Error(err))
	}
}
