package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/okozhin/icewheel/internal/notify"
	"github.com/okozhin/icewheel/internal/service"
)

// BetHandler serves bet placement and settlement.
type BetHandler struct {
	bets        *service.BetService
	settlements *service.SettlementService
	alerter     Alerter // optional
	bigWinNano  int64   // alert threshold, 0 disables
	logger      *slog.Logger
}

// NewBetHandler creates a BetHandler. alerter may be nil.
func NewBetHandler(bets *service.BetService, settlements *service.SettlementService, alerter Alerter, bigWinNano int64, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:        bets,
		settlements: settlements,
		alerter:     alerter,
		bigWinNano:  bigWinNano,
		logger:      logHandler(logger, "bets"),
	}
}

type placeBetRequest struct {
	Account   string `json:"account"`
	RoundID   int64  `json:"roundId"`
	Kind      string `json:"kind"`
	StakeNano int64  `json:"stakeNano"`
}

// PlaceBet debits the stake and books it on the round.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := h.bets.Place(r.Context(), req.Account, req.RoundID, req.Kind, req.StakeNano)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"balanceNano": balance})
}

type settleRequest struct {
	Account string `json:"account"`
}

type settleResponse struct {
	LastCompleted int64                 `json:"lastCompletedRoundId"`
	Settled       []domain.SettledRound `json:"settled"`
	CreditedNano  int64                 `json:"creditedNanoTotal"`
}

// Settle settles the account's pending rounds up to the last completed one.
// POST /api/bets/settle
func (h *BetHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.settlements.SettlePending(r.Context(), req.Account)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	if h.alerter != nil && h.bigWinNano > 0 && result.CreditedNano >= h.bigWinNano {
		if err := h.alerter.Notify(r.Context(), notify.EventBigWin,
			"Big win",
			fmt.Sprintf("account %s credited %d nano across %d round(s)",
				req.Account, result.CreditedNano, len(result.Settled)),
		); err != nil {
			h.logger.WarnContext(r.Context(), "big win alert failed",
				slog.String("error", err.Error()),
			)
		}
	}

	settled := result.Settled
	if settled == nil {
		settled = []domain.SettledRound{}
	}
	writeJSON(w, http.StatusOK, settleResponse{
		LastCompleted: result.LastCompleted,
		Settled:       settled,
		CreditedNano:  result.CreditedNano,
	})
}
