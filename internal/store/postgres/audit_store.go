package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okozhin/icewheel/internal/domain"
)

// AuditStore keeps a durable record of every settlement credit and deposit
// credit. The Redis ledger is the source of truth; this trail exists for
// offline reconciliation and is written only by the marker winner, so the
// unique indexes double as a second line against replays.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

var _ domain.AuditStore = (*AuditStore)(nil)

// RecordSettlement appends one settled round for an account.
func (s *AuditStore) RecordSettlement(ctx context.Context, account string, settled domain.SettledRound) error {
	const query = `
		INSERT INTO settlements (account, round_id, winner_index, winner_kind, credited_nano)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account, round_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		account, settled.RoundID, settled.WinnerIndex, settled.WinnerKind, settled.CreditedNano,
	)
	if err != nil {
		return fmt.Errorf("postgres: record settlement round %d: %w", settled.RoundID, err)
	}
	return nil
}

// RecordDepositCredit appends one credited deposit intent.
func (s *AuditStore) RecordDepositCredit(ctx context.Context, account string, intent domain.DepositIntent) error {
	const query = `
		INSERT INTO deposit_credits (account, intent_id, transfer_id, exact_nano, nominal_nano, credited_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transfer_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		account, intent.ID, intent.TransferID, intent.AmountNano, intent.NominalNano, intent.CreditedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record deposit credit %s: %w", intent.ID, err)
	}
	return nil
}
