package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/okozhin/icewheel/internal/domain"
)

// BalanceService reads balances and applies operator adjustments. Like
// every other money path it goes through the atomic floor-increment; an
// operator cannot overwrite a balance, only shift it.
type BalanceService struct {
	balances domain.BalanceLedger
	identity domain.IdentityStore
	logger   *slog.Logger
}

// NewBalanceService creates a BalanceService.
func NewBalanceService(balances domain.BalanceLedger, identity domain.IdentityStore, logger *slog.Logger) *BalanceService {
	return &BalanceService{
		balances: balances,
		identity: identity,
		logger:   logger.With(slog.String("component", "balances")),
	}
}

// Get returns the balance for an account, zero for unknown accounts.
func (s *BalanceService) Get(ctx context.Context, account string) (int64, error) {
	if account == "" {
		return 0, fmt.Errorf("balances: %w: empty account", domain.ErrBadTarget)
	}
	return s.balances.Get(ctx, account)
}

// Adjust applies a signed operator delta and returns the new balance. A
// delta that would take the balance below zero fails with
// domain.ErrInsufficientFunds.
func (s *BalanceService) Adjust(ctx context.Context, account string, deltaNano int64) (int64, error) {
	if account == "" {
		return 0, fmt.Errorf("balances: %w: empty account", domain.ErrBadTarget)
	}
	if deltaNano == 0 {
		return s.balances.Get(ctx, account)
	}

	newBalance, err := s.balances.Increment(ctx, account, deltaNano)
	if err != nil {
		return 0, fmt.Errorf("balances: adjust %s: %w", account, err)
	}

	s.logger.InfoContext(ctx, "balance adjusted",
		slog.String("account", account),
		slog.Int64("delta_nano", deltaNano),
		slog.Int64("balance_nano", newBalance),
	)
	return newBalance, nil
}

// ResolveTarget maps an operator-supplied target to a wallet account.
// Accepted forms: a wallet address (long string), "@username", or a bare
// telegram id. The second return names what the target resolved from, for
// operator feedback.
func (s *BalanceService) ResolveTarget(ctx context.Context, target string) (wallet, resolvedFrom string, err error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", "", fmt.Errorf("balances: %w: empty target", domain.ErrBadTarget)
	}

	switch {
	case strings.HasPrefix(target, "@"):
		username := strings.ToLower(strings.TrimPrefix(target, "@"))
		telegramID, err := s.identity.TelegramIDByUsername(ctx, username)
		if errors.Is(err, domain.ErrNotFound) {
			return "", "", fmt.Errorf("balances: %w: unknown username %s", domain.ErrBadTarget, target)
		}
		if err != nil {
			return "", "", fmt.Errorf("balances: resolve %s: %w", target, err)
		}
		wallet, err := s.identity.WalletByTelegramID(ctx, telegramID)
		if errors.Is(err, domain.ErrNotFound) {
			return "", "", fmt.Errorf("balances: %w: %s has no wallet", domain.ErrBadTarget, target)
		}
		if err != nil {
			return "", "", fmt.Errorf("balances: resolve %s: %w", target, err)
		}
		return wallet, "@" + username, nil

	case isNumeric(target):
		telegramID, _ := strconv.ParseInt(target, 10, 64)
		wallet, err := s.identity.WalletByTelegramID(ctx, telegramID)
		if errors.Is(err, domain.ErrNotFound) {
			return "", "", fmt.Errorf("balances: %w: telegram id %s has no wallet", domain.ErrBadTarget, target)
		}
		if err != nil {
			return "", "", fmt.Errorf("balances: resolve %s: %w", target, err)
		}
		return wallet, "tg:" + target, nil

	case len(target) >= 20:
		return target, "wallet", nil

	default:
		return "", "", fmt.Errorf("balances: %w: %q", domain.ErrBadTarget, target)
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
