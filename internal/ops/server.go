// Package ops serves the operator HTTP surface: status, config, positions,
// stats, the kill switch, manual ticks, learning state, and the copy-trade
// approval queue. Every response is JSON except /metrics.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"solana-launch-trader/internal/engine"
	"solana-launch-trader/internal/observability"
)

// ChainProbe reports chain reachability for the health endpoint.
type ChainProbe interface {
	GetSlot(ctx context.Context) (int64, error)
}

// Server wraps the engine behind the ops mux.
type Server struct {
	engine *engine.Engine
	probe  ChainProbe
	logger *zap.Logger
	mux    *http.ServeMux
	srv    *http.Server
}

// ServerOptions contains configuration for creating a Server.
type ServerOptions struct {
	Engine *engine.Engine
	Probe  ChainProbe // optional; nil skips the chain check on /health
	Logger *zap.Logger
	Addr   string
}

// NewServer creates the ops server. It does not start listening.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: opts.Engine,
		probe:  opts.Probe,
		logger: logger,
	}
	s.mux = http.NewServeMux()
	s.routes()
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", observability.Handler())
	s.mux.HandleFunc("GET /status", s.handleStatus)

	s.mux.HandleFunc("GET /config", s.handleGetConfig)
	s.mux.HandleFunc("PATCH /config", s.handlePatchConfig)

	s.mux.HandleFunc("GET /positions", s.handlePositions)
	s.mux.HandleFunc("POST /positions/close", s.handleClosePosition)
	s.mux.HandleFunc("GET /stats", s.handleStats)

	s.mux.HandleFunc("POST /trading/enable", s.handleEnableTrading)
	s.mux.HandleFunc("POST /trading/disable", s.handleDisableTrading)

	s.mux.HandleFunc("POST /run/evaluate", s.handleRunEvaluate)
	s.mux.HandleFunc("POST /run/exits", s.handleRunExits)

	s.mux.HandleFunc("GET /learning/signals", s.handleLearningSignals)
	s.mux.HandleFunc("POST /learning/reset", s.handleLearningReset)

	s.mux.HandleFunc("GET /copytrades/pending", s.handlePendingCopyTrades)
	s.mux.HandleFunc("POST /copytrades/approve", s.handleApproveCopyTrade)
	s.mux.HandleFunc("POST /copytrades/reject", s.handleRejectCopyTrade)
}

// Handler exposes the mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("ops server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a JSON body into v. A failure writes the 400 itself and
// reports false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
