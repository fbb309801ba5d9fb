package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okozhin/icewheel/internal/domain"
)

const (
	// saltRange bounds the per-intent amount salt: 1..999 nanounits on top
	// of the requested amount.
	saltRange = 999
	// saltAttempts bounds the retries when a salted amount collides with
	// another outstanding intent.
	saltAttempts = 8
	// creditMarkerTTL guards a matched transfer against re-crediting.
	creditMarkerTTL = 24 * time.Hour
	// creditedIntentTTL keeps a credited intent readable for idempotent
	// confirm retries after the fact.
	creditedIntentTTL = time.Hour
	// resumeBatch bounds how many parked intents one resume call rechecks.
	resumeBatch = 6
	// transferQueryLimit bounds how far back one confirm looks on chain.
	transferQueryLimit = 20
)

// DepositConfig holds the tunable deposit reconciliation parameters.
type DepositConfig struct {
	// Treasury is the external-ledger account users deposit to.
	Treasury string
	// DefaultNano is the requested amount when the caller passes none.
	DefaultNano int64
	// IntentTTL bounds how long an unconfirmed intent stays loadable.
	IntentTTL time.Duration
	// MinObservation is how long after creation a confirm must wait before
	// the chain is consulted at all.
	MinObservation time.Duration
	// MatchTolerance is how far before the intent's creation a matched
	// transfer's timestamp may lie (clock skew allowance).
	MatchTolerance time.Duration
	// AllowAmountOnlyMatch accepts transfers that carry no comment on
	// amount and time alone. Reduced assurance; every such match is logged.
	AllowAmountOnlyMatch bool
}

// DepositService reconciles off-chain deposit intents against on-chain
// transfers, crediting each matched transfer exactly once.
type DepositService struct {
	cfg      DepositConfig
	querier  domain.TransferQuerier
	intents  domain.IntentStore
	markers  domain.MarkerStore
	balances domain.BalanceLedger
	audit    domain.AuditStore // optional
	now      func() time.Time
	salt     func() int64
	logger   *slog.Logger
}

// NewDepositService creates a DepositService. audit may be nil.
func NewDepositService(
	cfg DepositConfig,
	querier domain.TransferQuerier,
	intents domain.IntentStore,
	markers domain.MarkerStore,
	balances domain.BalanceLedger,
	audit domain.AuditStore,
	logger *slog.Logger,
) *DepositService {
	return &DepositService{
		cfg:      cfg,
		querier:  querier,
		intents:  intents,
		markers:  markers,
		balances: balances,
		audit:    audit,
		now:      time.Now,
		salt:     func() int64 { return 1 + rand.Int64N(saltRange) },
		logger:   logger.With(slog.String("component", "deposits")),
	}
}

// CreateIntent registers a deposit intent for requestedNano (or the
// configured default when zero) and returns it. The exact amount to send
// is the requested amount plus a small salt reserved so that no two
// outstanding intents expect the same on-chain amount.
func (s *DepositService) CreateIntent(ctx context.Context, requestedNano int64) (domain.DepositIntent, error) {
	if requestedNano == 0 {
		requestedNano = s.cfg.DefaultNano
	}
	if requestedNano <= 0 {
		return domain.DepositIntent{}, fmt.Errorf("deposits: %w: amount %d", domain.ErrInvalidStake, requestedNano)
	}

	var exact int64
	reserved := false
	for i := 0; i < saltAttempts; i++ {
		exact = requestedNano + s.salt()
		ok, err := s.markers.ReserveSalt(ctx, exact, s.cfg.IntentTTL)
		if err != nil {
			return domain.DepositIntent{}, fmt.Errorf("deposits: reserve salt: %w", err)
		}
		if ok {
			reserved = true
			break
		}
	}
	if !reserved {
		return domain.DepositIntent{}, fmt.Errorf("deposits: %w: no free salted amount", domain.ErrAlreadyExists)
	}

	id := uuid.New().String()
	intent := domain.DepositIntent{
		ID:          id,
		Treasury:    s.cfg.Treasury,
		AmountNano:  exact,
		NominalNano: requestedNano,
		Comment:     "ICEWHEEL:" + id,
		CreatedAt:   s.now(),
		Status:      domain.DepositCreated,
	}

	if err := s.intents.Put(ctx, intent, s.cfg.IntentTTL); err != nil {
		return domain.DepositIntent{}, fmt.Errorf("deposits: store intent: %w", err)
	}

	s.logger.InfoContext(ctx, "deposit intent created",
		slog.String("intent_id", id),
		slog.Int64("amount_nano", exact),
	)
	return intent, nil
}

// Confirm checks whether the intent's transfer has landed on chain and
// credits account if so. It returns wait before the observation delay,
// pending while no transfer matches, and credited when the intent is (or
// already was) credited. Crediting a given transfer happens at most once
// across any number of concurrent confirm calls.
func (s *DepositService) Confirm(ctx context.Context, intentID, account string) (domain.ConfirmResult, error) {
	if account == "" {
		return domain.ConfirmResult{}, fmt.Errorf("deposits: %w: empty account", domain.ErrBadTarget)
	}

	intent, err := s.intents.Get(ctx, intentID)
	if err != nil {
		return domain.ConfirmResult{}, fmt.Errorf("deposits: load intent %s: %w", intentID, err)
	}

	// Idempotent short-circuit: a credited intent reports its amount and
	// never touches the balance again.
	if intent.Status == domain.DepositCredited {
		s.unpark(ctx, account, intentID)
		return domain.ConfirmResult{Status: domain.ConfirmCredited, CreditedNano: intent.NominalNano}, nil
	}

	now := s.now()
	if now.Sub(intent.CreatedAt) < s.cfg.MinObservation {
		return domain.ConfirmResult{Status: domain.ConfirmWait}, nil
	}

	// A query failure mutates nothing; the caller retries later.
	transfers, err := s.querier.RecentTransfers(ctx, s.cfg.Treasury, transferQueryLimit)
	if err != nil {
		return domain.ConfirmResult{}, fmt.Errorf("deposits: query transfers: %w", err)
	}

	match, ok := s.matchTransfer(ctx, intent, transfers)
	if !ok {
		// Park the intent so a later resume call retries it.
		if err := s.intents.AddPending(ctx, account, intentID); err != nil {
			s.logger.WarnContext(ctx, "park intent failed",
				slog.String("intent_id", intentID),
				slog.String("error", err.Error()),
			)
		}
		return domain.ConfirmResult{Status: domain.ConfirmPending}, nil
	}

	acquired, err := s.markers.AcquireCredit(ctx, match.ID, creditMarkerTTL)
	if err != nil {
		return domain.ConfirmResult{}, fmt.Errorf("deposits: acquire credit marker %s: %w", match.ID, err)
	}
	if acquired {
		if _, err := s.balances.Increment(ctx, account, intent.NominalNano); err != nil {
			// Marker held without a credit; the transfer can never be
			// credited twice, and never for a different amount.
			return domain.ConfirmResult{}, fmt.Errorf("deposits: credit %s: %w", account, err)
		}
	}
	// The marker loser just finalizes the intent: the winner already
	// applied the one credit this transfer is worth.

	intent.Status = domain.DepositCredited
	intent.CreditedAt = now
	intent.TransferID = match.ID
	if err := s.intents.Put(ctx, intent, creditedIntentTTL); err != nil {
		s.logger.WarnContext(ctx, "finalize intent failed",
			slog.String("intent_id", intentID),
			slog.String("error", err.Error()),
		)
	}
	s.unpark(ctx, account, intentID)

	if acquired {
		if s.audit != nil {
			if err := s.audit.RecordDepositCredit(ctx, account, intent); err != nil {
				s.logger.WarnContext(ctx, "audit record failed",
					slog.String("intent_id", intentID),
					slog.String("error", err.Error()),
				)
			}
		}
		s.logger.InfoContext(ctx, "deposit credited",
			slog.String("intent_id", intentID),
			slog.String("account", account),
			slog.String("transfer_id", match.ID),
			slog.Int64("credited_nano", intent.NominalNano),
		)
	}

	return domain.ConfirmResult{
		Status:        domain.ConfirmCredited,
		CreditedNano:  intent.NominalNano,
		NewlyCredited: acquired,
	}, nil
}

// matchTransfer selects the first transfer satisfying the intent: exact
// salted amount, timestamp no earlier than creation minus the tolerance,
// and a matching comment when the transfer carries one. Commentless
// transfers match only in the amount-only mode, and loudly.
func (s *DepositService) matchTransfer(ctx context.Context, intent domain.DepositIntent, transfers []domain.Transfer) (domain.Transfer, bool) {
	earliest := intent.CreatedAt.Add(-s.cfg.MatchTolerance)

	for _, t := range transfers {
		if t.AmountNano != intent.AmountNano {
			continue
		}
		if t.Timestamp.Before(earliest) {
			continue
		}
		if t.HasComment {
			if t.Comment != intent.Comment {
				continue
			}
			return t, true
		}
		if !s.cfg.AllowAmountOnlyMatch {
			continue
		}
		s.logger.WarnContext(ctx, "reduced-assurance match: amount and time only",
			slog.String("intent_id", intent.ID),
			slog.String("transfer_id", t.ID),
		)
		return t, true
	}
	return domain.Transfer{}, false
}

// Resume rechecks up to resumeBatch parked intents for the account,
// dropping ones that expired. It reports how many were checked and how
// many came back credited versus still pending.
func (s *DepositService) Resume(ctx context.Context, account string) (checked, credited, pending int, err error) {
	ids, err := s.intents.Pending(ctx, account)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("deposits: list parked intents: %w", err)
	}

	for _, id := range ids {
		if checked >= resumeBatch {
			break
		}
		checked++

		res, err := s.Confirm(ctx, id, account)
		if errors.Is(err, domain.ErrNotFound) {
			// Intent expired unconfirmed; stop rechecking it.
			s.unpark(ctx, account, id)
			continue
		}
		if err != nil {
			return checked, credited, pending, err
		}
		if res.Status == domain.ConfirmCredited {
			credited++
		} else {
			pending++
		}
	}
	return checked, credited, pending, nil
}

// unpark drops an intent from the account's resume set, best effort.
func (s *DepositService) unpark(ctx context.Context, account, intentID string) {
	if err := s.intents.RemovePending(ctx, account, intentID); err != nil {
		s.logger.WarnContext(ctx, "unpark intent failed",
			slog.String("intent_id", intentID),
			slog.String("error", err.Error()),
		)
	}
}
