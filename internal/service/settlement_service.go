package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/okozhin/icewheel/internal/wheel"
)

const (
	// settleBatch bounds how many pending rounds one call processes; the
	// rest settle across repeated calls.
	settleBatch = 10
	// settlementMarkerTTL keeps the at-most-once gate alive long past any
	// realistic retry horizon.
	settlementMarkerTTL = 24 * time.Hour
)

// SettlementService applies balance credits for completed rounds exactly
// once per (round, account). The settlement marker is acquired strictly
// before the credit: a crash in between leaves the marker held without a
// credit, and since the credit is a pure function of already-accumulated
// stakes, nothing can ever re-derive a different amount for that marker.
type SettlementService struct {
	clock    *wheel.Clock
	oracle   *wheel.Oracle
	balances domain.BalanceLedger
	book     domain.BetBook
	markers  domain.MarkerStore
	audit    domain.AuditStore // optional
	now      func() time.Time
	logger   *slog.Logger
}

// NewSettlementService creates a SettlementService. audit may be nil.
func NewSettlementService(
	clock *wheel.Clock,
	oracle *wheel.Oracle,
	balances domain.BalanceLedger,
	book domain.BetBook,
	markers domain.MarkerStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		clock:    clock,
		oracle:   oracle,
		balances: balances,
		book:     book,
		markers:  markers,
		audit:    audit,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "settlement")),
	}
}

// SettlePending settles the account's completed pending rounds, smallest
// round ids first, at most settleBatch per call. Rounds another caller
// already settled are silently cleared from the pending set. Re-invocation
// after success always takes the marker-miss branch and credits nothing
// further.
func (s *SettlementService) SettlePending(ctx context.Context, account string) (domain.SettlementResult, error) {
	result := domain.SettlementResult{
		LastCompleted: s.clock.LastCompleted(s.now()),
	}
	if account == "" {
		return result, fmt.Errorf("settlement: %w: empty account", domain.ErrBadTarget)
	}

	pending, err := s.book.Pending(ctx, account)
	if err != nil {
		return result, fmt.Errorf("settlement: read pending: %w", err)
	}

	processed := 0
	for _, roundID := range pending {
		if processed >= settleBatch {
			break
		}
		if roundID > result.LastCompleted {
			continue
		}
		processed++

		acquired, err := s.markers.AcquireSettlement(ctx, roundID, account, settlementMarkerTTL)
		if err != nil {
			return result, fmt.Errorf("settlement: acquire marker %d/%s: %w", roundID, account, err)
		}
		if !acquired {
			// Someone else settled this pair. No credit, no error.
			if err := s.book.RemovePending(ctx, account, roundID); err != nil {
				return result, fmt.Errorf("settlement: clear settled round %d: %w", roundID, err)
			}
			continue
		}

		buckets, err := s.book.Buckets(ctx, roundID, account)
		if err != nil {
			return result, fmt.Errorf("settlement: read buckets %d/%s: %w", roundID, account, err)
		}

		winnerIdx := s.oracle.Winner(roundID)
		winnerKind := wheel.KindForSector(winnerIdx)

		var credit int64
		for kind, staked := range buckets {
			if kind != winnerKind {
				continue
			}
			credit += staked * wheel.Multiplier(kind)
		}

		if credit > 0 {
			if _, err := s.balances.Increment(ctx, account, credit); err != nil {
				// Marker is held, credit is not applied. The amount can be
				// recomputed from the still-present buckets by an operator;
				// it can never be re-derived differently.
				return result, fmt.Errorf("settlement: credit %d/%s: %w", roundID, account, err)
			}
		}

		if err := s.book.Clear(ctx, roundID, account); err != nil {
			return result, fmt.Errorf("settlement: clear buckets %d/%s: %w", roundID, account, err)
		}
		if err := s.book.RemovePending(ctx, account, roundID); err != nil {
			return result, fmt.Errorf("settlement: remove pending %d/%s: %w", roundID, account, err)
		}

		settled := domain.SettledRound{
			RoundID:      roundID,
			WinnerIndex:  winnerIdx,
			WinnerKind:   winnerKind,
			CreditedNano: credit,
		}
		result.Settled = append(result.Settled, settled)
		result.CreditedNano += credit

		if s.audit != nil {
			if err := s.audit.RecordSettlement(ctx, account, settled); err != nil {
				s.logger.WarnContext(ctx, "audit record failed",
					slog.Int64("round_id", roundID),
					slog.String("account", account),
					slog.String("error", err.Error()),
				)
			}
		}

		s.logger.InfoContext(ctx, "round settled",
			slog.String("account", account),
			slog.Int64("round_id", roundID),
			slog.String("winner_kind", winnerKind),
			slog.Int64("credited_nano", credit),
		)
	}

	return result, nil
}
