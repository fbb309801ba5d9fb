package handler

import (
	"log/slog"
	"net/http"

	"github.com/okozhin/icewheel/internal/service"
)

// BalanceHandler serves the public balance read.
type BalanceHandler struct {
	balances *service.BalanceService
	logger   *slog.Logger
}

// NewBalanceHandler creates a BalanceHandler.
func NewBalanceHandler(balances *service.BalanceService, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balances: balances,
		logger:   logHandler(logger, "balance"),
	}
}

// GetBalance returns the account's balance, zero for unknown accounts.
// GET /api/balance?account=
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")

	balance, err := h.balances.Get(r.Context(), account)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account":     account,
		"balanceNano": balance,
	})
}
