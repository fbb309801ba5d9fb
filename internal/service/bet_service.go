package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/okozhin/icewheel/internal/wheel"
)

// BetService places wagers. The debit is a single atomic floor-decrement of
// the balance; the stake bucket and pending entry are written only after
// the debit succeeded.
type BetService struct {
	clock    *wheel.Clock
	balances domain.BalanceLedger
	book     domain.BetBook
	now      func() time.Time
	logger   *slog.Logger
}

// NewBetService creates a BetService.
func NewBetService(
	clock *wheel.Clock,
	balances domain.BalanceLedger,
	book domain.BetBook,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		clock:    clock,
		balances: balances,
		book:     book,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "bets")),
	}
}

// Place validates and books a wager of stakeNano on kind in roundID for
// account, debiting the stake. It returns the new balance.
//
// The round must be the current one and still in its active phase; the
// stake must be a positive amount on a known kind. A debit that would take
// the balance below zero fails with domain.ErrInsufficientFunds and
// changes nothing.
func (s *BetService) Place(ctx context.Context, account string, roundID int64, kind string, stakeNano int64) (int64, error) {
	if account == "" {
		return 0, fmt.Errorf("bets: %w: empty account", domain.ErrBadTarget)
	}
	if stakeNano <= 0 {
		return 0, fmt.Errorf("bets: %w: %d", domain.ErrInvalidStake, stakeNano)
	}
	if !wheel.ValidKind(kind) {
		return 0, fmt.Errorf("bets: %w: %q", domain.ErrInvalidKind, kind)
	}

	now := s.now()
	if roundID != s.clock.RoundID(now) {
		return 0, fmt.Errorf("bets: %w: round %d", domain.ErrRoundMismatch, roundID)
	}
	if s.clock.Phase(now) != domain.PhaseActive {
		return 0, fmt.Errorf("bets: %w: round %d", domain.ErrRoundClosed, roundID)
	}

	newBalance, err := s.balances.Increment(ctx, account, -stakeNano)
	if err != nil {
		return 0, fmt.Errorf("bets: debit %s: %w", account, err)
	}

	// Pending goes in before the bucket: a crash after the debit then
	// settles the round against whatever buckets exist (possibly none) and
	// never credits more than was staked.
	if err := s.book.AddPending(ctx, account, roundID); err != nil {
		s.refund(ctx, account, stakeNano)
		return 0, fmt.Errorf("bets: add pending: %w", err)
	}
	if err := s.book.Accumulate(ctx, roundID, account, kind, stakeNano); err != nil {
		s.refund(ctx, account, stakeNano)
		return 0, fmt.Errorf("bets: accumulate: %w", err)
	}

	s.logger.InfoContext(ctx, "bet placed",
		slog.String("account", account),
		slog.Int64("round_id", roundID),
		slog.String("kind", kind),
		slog.Int64("stake_nano", stakeNano),
	)
	return newBalance, nil
}

// refund undoes a debit whose bet was never booked. Best effort: on failure
// the stake stays debited and the error is logged for manual adjustment.
func (s *BetService) refund(ctx context.Context, account string, stakeNano int64) {
	if _, err := s.balances.Increment(ctx, account, stakeNano); err != nil {
		s.logger.ErrorContext(ctx, "refund failed after booking error",
			slog.String("account", account),
			slog.Int64("stake_nano", stakeNano),
			slog.String("error", err.Error()),
		)
	}
}
