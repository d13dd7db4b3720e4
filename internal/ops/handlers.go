package ops

import (
	"context"
	"errors"
	"net/http"
	"time"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/ledger"
	"solana-launch-trader/internal/storage"
)

type healthResponse struct {
	Status string `json:"status"`
	Slot   int64  `json:"slot,omitempty"`
	Chain  string `json:"chain,omitempty"` // error detail when degraded
}

// handleHealth reports process liveness. With a probe configured it also
// checks chain reachability, downgrading to "degraded" without failing the
// request: a dead RPC node must not make the process look dead.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.probe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		slot, err := s.probe.GetSlot(ctx)
		if err != nil {
			resp.Status = "degraded"
			resp.Chain = err.Error()
		} else {
			resp.Slot = slot
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Config())
}

// handlePatchConfig applies a validated config patch. An invalid patch
// changes nothing and reports 400.
func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var patch domain.ConfigPatch
	if !s.decode(w, r, &patch) {
		return
	}

	updated, err := s.engine.UpdateConfig(&patch)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	var (
		positions []*domain.Position
		err       error
	)
	switch status := r.URL.Query().Get("status"); status {
	case "", "open":
		positions, err = s.engine.OpenPositions(r.Context())
	case "all":
		positions, err = s.engine.AllPositions(r.Context())
	default:
		s.writeError(w, http.StatusBadRequest, "status must be open or all, got "+status)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

type closeRequest struct {
	PositionID string `json:"positionId"`
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PositionID == "" {
		s.writeError(w, http.StatusBadRequest, "positionId is required")
		return
	}

	closed, err := s.engine.ManualClose(r.Context(), req.PositionID)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, closed)
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "position not found")
	case errors.Is(err, ledger.ErrPositionClosed):
		s.writeError(w, http.StatusConflict, "position already closed")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type tradingResponse struct {
	TradingEnabled bool `json:"tradingEnabled"`
}

func (s *Server) handleEnableTrading(w http.ResponseWriter, r *http.Request) {
	s.engine.EnableTrading()
	s.writeJSON(w, http.StatusOK, tradingResponse{TradingEnabled: true})
}

func (s *Server) handleDisableTrading(w http.ResponseWriter, r *http.Request) {
	s.engine.DisableTrading()
	s.writeJSON(w, http.StatusOK, tradingResponse{TradingEnabled: false})
}

func (s *Server) handleRunEvaluate(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.RunEvaluationTick(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRunExits(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RunExitTick(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (s *Server) handleLearningSignals(w http.ResponseWriter, r *http.Request) {
	rankings, err := s.engine.Learning().Rankings(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rankings)
}

func (s *Server) handleLearningReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Learning().Reset(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handlePendingCopyTrades(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.Governor().ListPending(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, pending)
}

type pendingRequest struct {
	PendingID string `json:"pendingId"`
}

func (s *Server) handleApproveCopyTrade(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PendingID == "" {
		s.writeError(w, http.StatusBadRequest, "pendingId is required")
		return
	}

	result, err := s.engine.Governor().Approve(r.Context(), req.PendingID)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, result)
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "pending copy trade not found")
	default:
		var execErr *domain.ExecutionError
		if errors.As(err, &execErr) {
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleRejectCopyTrade(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PendingID == "" {
		s.writeError(w, http.StatusBadRequest, "pendingId is required")
		return
	}

	rejected, err := s.engine.Governor().Reject(r.Context(), req.PendingID)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, rejected)
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "pending copy trade not found")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
