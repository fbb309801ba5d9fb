package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/okozhin/icewheel/internal/notify"
	"github.com/okozhin/icewheel/internal/service"
)

// AdminHandler serves the operator surface: session validation, balance
// lookup and adjustment by target, and identity binding. The admin auth
// middleware has already validated the session token by the time these run.
type AdminHandler struct {
	admin    *service.AdminService
	balances *service.BalanceService
	alerter  Alerter // optional
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler. alerter may be nil.
func NewAdminHandler(admin *service.AdminService, balances *service.BalanceService, alerter Alerter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		balances: balances,
		alerter:  alerter,
		logger:   logHandler(logger, "admin"),
	}
}

// Validate confirms the session token is live.
// GET /api/admin/validate
func (h *AdminHandler) Validate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// GetBalance resolves a target (wallet, @username, or telegram id) and
// returns its balance.
// GET /api/admin/balance?target=
func (h *AdminHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	wallet, resolvedFrom, err := h.balances.ResolveTarget(r.Context(), r.URL.Query().Get("target"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	balance, err := h.balances.Get(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":       wallet,
		"resolvedFrom": resolvedFrom,
		"balanceNano":  balance,
	})
}

type topupRequest struct {
	Target     string `json:"target"`
	AmountNano int64  `json:"amountNano"`
}

// Topup credits a target. Strictly positive; Adjust covers debits.
// POST /api/admin/topup
func (h *AdminHandler) Topup(w http.ResponseWriter, r *http.Request) {
	var req topupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AmountNano <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("amount must be positive, got %d", req.AmountNano))
		return
	}

	h.applyDelta(w, r, req.Target, req.AmountNano)
}

type adjustRequest struct {
	Target    string `json:"target"`
	DeltaNano int64  `json:"deltaNano"`
}

// Adjust applies a signed delta to a target through the same atomic
// floor-increment as every other money path.
// POST /api/admin/adjust
func (h *AdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DeltaNano == 0 {
		writeError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}

	h.applyDelta(w, r, req.Target, req.DeltaNano)
}

func (h *AdminHandler) applyDelta(w http.ResponseWriter, r *http.Request, target string, deltaNano int64) {
	wallet, resolvedFrom, err := h.balances.ResolveTarget(r.Context(), target)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	balance, err := h.balances.Adjust(r.Context(), wallet, deltaNano)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	if h.alerter != nil {
		if err := h.alerter.Notify(r.Context(), notify.EventBalanceAdjusted,
			"Balance adjusted",
			fmt.Sprintf("%s (%s) adjusted by %d nano, now %d", wallet, resolvedFrom, deltaNano, balance),
		); err != nil {
			h.logger.WarnContext(r.Context(), "adjust alert failed",
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":       wallet,
		"resolvedFrom": resolvedFrom,
		"balanceNano":  balance,
	})
}

type bindRequest struct {
	TelegramID int64  `json:"telegramId"`
	Username   string `json:"username"`
	Wallet     string `json:"wallet"`
}

// Bind records a telegram identity's wallet binding.
// POST /api/admin/bind
func (h *AdminHandler) Bind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.admin.Bind(r.Context(), req.TelegramID, req.Username, req.Wallet); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"bound": true})
}
