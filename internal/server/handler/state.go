package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/okozhin/icewheel/internal/service"
	"github.com/okozhin/icewheel/internal/wheel"
)

// StateHandler serves the public round-state snapshot: the current round's
// timing and outcome preview plus the recent outcome history.
type StateHandler struct {
	clock   *wheel.Clock
	oracle  *wheel.Oracle
	history *service.HistoryService
	logger  *slog.Logger
}

// NewStateHandler creates a StateHandler.
func NewStateHandler(clock *wheel.Clock, oracle *wheel.Oracle, history *service.HistoryService, logger *slog.Logger) *StateHandler {
	return &StateHandler{
		clock:   clock,
		oracle:  oracle,
		history: history,
		logger:  logHandler(logger, "state"),
	}
}

type roundPayload struct {
	RoundID       int64        `json:"roundId"`
	Phase         domain.Phase `json:"phase"`
	ServerNow     int64        `json:"serverNow"`
	StartAt       int64        `json:"startAt"`
	ActiveEndAt   int64        `json:"activeEndAt"`
	NextRoundAt   int64        `json:"nextRoundAt"`
	WinnerIndex   int          `json:"winnerIndex"`
	LastCompleted int64        `json:"lastCompletedRoundId"`
}

type statePayload struct {
	Round   roundPayload          `json:"round"`
	History []domain.HistoryEntry `json:"history"`
}

// Snapshot assembles the state payload. The WebSocket hub reuses it for its
// phase-transition pushes.
func (h *StateHandler) Snapshot(ctx context.Context) (any, error) {
	state := h.clock.State(time.Now(), h.oracle)

	// Self-healing: top the cache up to the newest completed round before
	// reading. Losing the advisory lock race is fine, someone else is on it.
	if err := h.history.EnsureUpTo(ctx, state.LastCompleted); err != nil {
		return nil, fmt.Errorf("ensure history: %w", err)
	}
	history, err := h.history.Read(ctx, state.LastCompleted)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	return statePayload{
		Round: roundPayload{
			RoundID:       state.RoundID,
			Phase:         state.Phase,
			ServerNow:     state.ServerNow.UnixMilli(),
			StartAt:       state.StartAt.UnixMilli(),
			ActiveEndAt:   state.ActiveEndAt.UnixMilli(),
			NextRoundAt:   state.NextRoundAt.UnixMilli(),
			WinnerIndex:   state.WinnerIndex,
			LastCompleted: state.LastCompleted,
		},
		History: history,
	}, nil
}

// GetState returns the current round snapshot and history.
// GET /api/state
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	payload, err := h.Snapshot(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
