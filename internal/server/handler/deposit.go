package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/okozhin/icewheel/internal/notify"
	"github.com/okozhin/icewheel/internal/service"
)

// DepositHandler serves deposit intent creation, confirmation, and resume.
type DepositHandler struct {
	deposits *service.DepositService
	alerter  Alerter // optional
	logger   *slog.Logger
}

// NewDepositHandler creates a DepositHandler. alerter may be nil.
func NewDepositHandler(deposits *service.DepositService, alerter Alerter, logger *slog.Logger) *DepositHandler {
	return &DepositHandler{
		deposits: deposits,
		alerter:  alerter,
		logger:   logHandler(logger, "deposits"),
	}
}

type createIntentRequest struct {
	AmountNano int64 `json:"amountNano"`
}

type createIntentResponse struct {
	IntentID   string `json:"intentId"`
	Treasury   string `json:"treasury"`
	AmountNano int64  `json:"amountNano"`
	Comment    string `json:"comment"`
	CreatedAt  int64  `json:"createdAt"`
}

// CreateIntent registers a deposit intent and returns the exact amount and
// comment the user must send.
// POST /api/deposits
func (h *DepositHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	intent, err := h.deposits.CreateIntent(r.Context(), req.AmountNano)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, createIntentResponse{
		IntentID:   intent.ID,
		Treasury:   intent.Treasury,
		AmountNano: intent.AmountNano,
		Comment:    intent.Comment,
		CreatedAt:  intent.CreatedAt.UnixMilli(),
	})
}

type confirmRequest struct {
	IntentID string `json:"intentId"`
	Account  string `json:"account"`
}

// Confirm checks the chain for the intent's transfer and credits on match.
// POST /api/deposits/confirm
func (h *DepositHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.deposits.Confirm(r.Context(), req.IntentID, req.Account)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	if result.NewlyCredited {
		h.alertCredited(r, req.Account, result.CreditedNano)
	}

	writeJSON(w, http.StatusOK, result)
}

type resumeRequest struct {
	Account string `json:"account"`
}

// Resume rechecks the account's parked intents.
// POST /api/deposits/resume
func (h *DepositHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	checked, credited, pending, err := h.deposits.Resume(r.Context(), req.Account)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"checked":  checked,
		"credited": credited,
		"pending":  pending,
	})
}

func (h *DepositHandler) alertCredited(r *http.Request, account string, nano int64) {
	if h.alerter == nil {
		return
	}
	if err := h.alerter.Notify(r.Context(), notify.EventDepositCredited,
		"Deposit credited",
		fmt.Sprintf("account %s credited %d nano", account, nano),
	); err != nil {
		h.logger.WarnContext(r.Context(), "deposit alert failed",
			slog.String("error", err.Error()),
		)
	}
}
