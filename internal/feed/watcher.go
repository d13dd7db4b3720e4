// Package feed delivers normalized smart-money trade events over WebSocket.
// The watcher holds one connection, subscribes to enrolled wallet addresses,
// and survives drops by reconnecting and resubscribing.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/observability"
)

// Config configures watcher connection behavior.
type Config struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// Buffer is the outbound trade channel capacity.
	Buffer int
}

// DefaultConfig returns default watcher configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		Buffer:            1024,
	}
}

// Frame type discriminators on the wire.
const (
	frameTrade = "trade"
	frameError = "error"
)

// Subscription operations.
const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
)

// Watcher consumes the smart-money feed for a set of wallet addresses and
// emits domain trades on Trades(). One goroutine reads, one pings; both stop
// on Close.
type Watcher struct {
	endpoint string
	config   Config
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// wallets is the live subscription set, kept for resubscription
	// after a reconnect.
	wallets   map[string]struct{}
	walletsMu sync.RWMutex

	trades chan domain.ObservedTrade

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWatcher connects to the feed endpoint and subscribes to the given
// wallets. Pass nil config for defaults.
func NewWatcher(ctx context.Context, endpoint string, wallets []string, logger *zap.Logger, config *Config) (*Watcher, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}

	w := &Watcher{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		wallets:  make(map[string]struct{}, len(wallets)),
		trades:   make(chan domain.ObservedTrade, cfg.Buffer),
		done:     make(chan struct{}),
	}
	for _, addr := range wallets {
		w.wallets[addr] = struct{}{}
	}

	if err := w.connect(ctx); err != nil {
		return nil, err
	}
	if len(wallets) > 0 {
		if err := w.writeFrame(subscribeFrame{Op: opSubscribe, Wallets: wallets}); err != nil {
			w.conn.Close()
			return nil, fmt.Errorf("initial subscribe: %w", err)
		}
	}

	w.wg.Add(1)
	go w.readLoop()

	w.wg.Add(1)
	go w.pingLoop()

	return w, nil
}

// Trades returns the outbound trade channel. Closed by Close.
func (w *Watcher) Trades() <-chan domain.ObservedTrade {
	return w.trades
}

// Watch adds a wallet to the subscription set.
func (w *Watcher) Watch(wallet string) error {
	if w.closed.Load() {
		return fmt.Errorf("watcher closed")
	}
	if wallet == "" {
		return fmt.Errorf("empty wallet address")
	}

	w.walletsMu.Lock()
	_, known := w.wallets[wallet]
	w.wallets[wallet] = struct{}{}
	w.walletsMu.Unlock()
	if known {
		return nil
	}

	return w.writeFrame(subscribeFrame{Op: opSubscribe, Wallets: []string{wallet}})
}

// Unwatch removes a wallet from the subscription set.
func (w *Watcher) Unwatch(wallet string) error {
	if w.closed.Load() {
		return fmt.Errorf("watcher closed")
	}

	w.walletsMu.Lock()
	_, known := w.wallets[wallet]
	delete(w.wallets, wallet)
	w.walletsMu.Unlock()
	if !known {
		return nil
	}

	return w.writeFrame(subscribeFrame{Op: opUnsubscribe, Wallets: []string{wallet}})
}

// Close shuts the connection down and closes the trade channel.
func (w *Watcher) Close() error {
	if w.closed.Swap(true) {
		return nil // Already closed
	}

	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	w.connMu.Unlock()

	// Both loops must stop before the channel closes: deliver selects on
	// done, so no send can race the close below.
	w.wg.Wait()
	close(w.trades)
	return nil
}

// connect establishes the WebSocket connection.
func (w *Watcher) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: w.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("feed dial: %w", err)
	}

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()
	return nil
}

// writeFrame sends one JSON frame under the connection lock.
func (w *Watcher) writeFrame(v interface{}) error {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("not connected")
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	if err := w.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("feed write: %w", err)
	}
	return nil
}

// readLoop reads frames and dispatches trades until Close.
func (w *Watcher) readLoop() {
	defer w.wg.Done()

	for !w.closed.Load() {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return
			}

			if !w.reconnecting.Swap(true) {
				w.logger.Warn("feed connection lost", zap.Error(err))
				go w.reconnect()
			}

			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		w.handleMessage(message)
	}
}

// reconnect dials with exponential backoff until it succeeds or the watcher
// closes, then resubscribes the whole wallet set.
func (w *Watcher) reconnect() {
	defer w.reconnecting.Store(false)

	delay := w.config.ReconnectDelay
	for !w.closed.Load() {
		select {
		case <-w.done:
			return
		case <-time.After(delay):
		}

		w.connMu.Lock()
		if w.conn != nil {
			w.conn.Close()
			w.conn = nil
		}
		w.connMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), w.config.HandshakeTimeout)
		err := w.connect(ctx)
		cancel()
		if err == nil {
			w.resubscribe()
			observability.RecordFeedReconnect()
			w.logger.Info("feed reconnected", zap.String("endpoint", w.endpoint))
			return
		}

		w.logger.Warn("feed reconnect failed",
			zap.Duration("next_attempt_in", delay),
			zap.Error(err))

		delay *= 2
		if delay > w.config.MaxReconnectDelay {
			delay = w.config.MaxReconnectDelay
		}
	}
}

// resubscribe replays the subscription set on a fresh connection.
func (w *Watcher) resubscribe() {
	w.walletsMu.RLock()
	wallets := make([]string, 0, len(w.wallets))
	for addr := range w.wallets {
		wallets = append(wallets, addr)
	}
	w.walletsMu.RUnlock()

	if len(wallets) == 0 {
		return
	}
	if err := w.writeFrame(subscribeFrame{Op: opSubscribe, Wallets: wallets}); err != nil {
		// The read loop will notice the dead connection and retry.
		w.logger.Warn("feed resubscribe failed", zap.Error(err))
	}
}

// handleMessage parses one frame and dispatches by type. Acks and heartbeats
// fall through silently.
func (w *Watcher) handleMessage(message []byte) {
	var frame feedFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		w.logger.Debug("feed frame discarded", zap.Error(err))
		return
	}

	switch frame.Type {
	case frameTrade:
		w.handleTrade(&frame)
	case frameError:
		w.logger.Warn("feed error frame", zap.String("message", frame.Message))
	default:
		w.logger.Debug("feed frame ignored", zap.String("type", frame.Type))
	}
}

// handleTrade validates a trade frame and delivers it. Only well-formed
// trades from watched wallets pass.
func (w *Watcher) handleTrade(frame *feedFrame) {
	if frame.Action != domain.TradeActionBuy && frame.Action != domain.TradeActionSell {
		w.logger.Debug("trade frame with unknown action", zap.String("action", frame.Action))
		return
	}
	if frame.Mint == "" || frame.AmountSOL <= 0 {
		w.logger.Debug("trade frame with missing fields",
			zap.String("wallet", frame.Wallet),
			zap.String("mint", frame.Mint))
		return
	}

	w.walletsMu.RLock()
	_, watched := w.wallets[frame.Wallet]
	w.walletsMu.RUnlock()
	if !watched {
		return
	}

	trade := domain.ObservedTrade{
		Wallet:     frame.Wallet,
		Action:     frame.Action,
		Mint:       frame.Mint,
		Symbol:     frame.Symbol,
		AmountSOL:  frame.AmountSOL,
		Price:      frame.Price,
		ObservedAt: frame.ObservedAt,
	}
	if trade.ObservedAt == 0 {
		trade.ObservedAt = time.Now().UnixMilli()
	}

	// Block until the consumer takes it - trades are never dropped.
	select {
	case w.trades <- trade:
		observability.RecordTradeObserved()
	case <-w.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (w *Watcher) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.connMu.Lock()
			if w.conn != nil {
				// A failed ping means a dead connection; the read loop
				// notices and reconnects.
				w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
				w.conn.WriteMessage(websocket.PingMessage, nil)
			}
			w.connMu.Unlock()
		}
	}
}

// Wire frames

// subscribeFrame asks the feed to start or stop streaming wallets.
type subscribeFrame struct {
	Op      string   `json:"op"`
	Wallets []string `json:"wallets"`
}

// feedFrame is every inbound message; Type discriminates.
type feedFrame struct {
	Type       string  `json:"type"`
	Wallet     string  `json:"wallet"`
	Action     string  `json:"action"`
	Mint       string  `json:"mint"`
	Symbol     string  `json:"symbol"`
	AmountSOL  float64 `json:"amountSol"`
	Price      float64 `json:"price"`
	ObservedAt int64   `json:"observedAt"`
	Message    string  `json:"message,omitempty"`
}
