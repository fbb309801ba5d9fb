package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCorruptHistory is returned by HistoryStore.Entries when one or more
// stored entries cannot be parsed. The caller is expected to rebuild.
var ErrCorruptHistory = errors.New("corrupt history entries")

// BalanceLedger is the sole authoritative account-balance store. Balances
// are integer nanounits and may only be mutated through Increment; there is
// deliberately no Set.
type BalanceLedger interface {
	// Get returns the current balance, zero for unknown accounts.
	Get(ctx context.Context, account string) (int64, error)
	// Increment applies a signed delta as a single atomic operation and
	// returns the new balance. It returns ErrInsufficientFunds, without
	// mutating anything, if the result would go below zero.
	Increment(ctx context.Context, account string, deltaNano int64) (int64, error)
}

// BetBook accumulates per-round, per-account wager buckets and tracks which
// rounds an account still has unsettled bets in.
type BetBook interface {
	Accumulate(ctx context.Context, roundID int64, account, kind string, stakeNano int64) error
	Buckets(ctx context.Context, roundID int64, account string) (map[string]int64, error)
	Clear(ctx context.Context, roundID int64, account string) error

	AddPending(ctx context.Context, account string, roundID int64) error
	RemovePending(ctx context.Context, account string, roundID int64) error
	Pending(ctx context.Context, account string) ([]int64, error)
}

// HistoryStore persists the bounded outcome history list plus the id of the
// last round recorded into it.
type HistoryStore interface {
	// Entries returns the stored history in list order. It returns
	// ErrCorruptHistory when any entry fails to parse.
	Entries(ctx context.Context) ([]HistoryEntry, error)
	Append(ctx context.Context, entries ...HistoryEntry) error
	Trim(ctx context.Context, max int) error
	// Replace atomically swaps the whole list for the given entries.
	Replace(ctx context.Context, entries []HistoryEntry) error

	// Head returns the last recorded round id, ErrNotFound when unset.
	Head(ctx context.Context) (int64, error)
	SetHead(ctx context.Context, roundID int64) error
}

// MarkerStore holds the one-shot idempotency markers that gate every
// balance credit. Acquire-style calls are conditional-set-if-absent: true
// means this caller owns the marker, false means someone else got there
// first.
type MarkerStore interface {
	// AcquireSettlement gates at-most-once settlement per (round, account).
	AcquireSettlement(ctx context.Context, roundID int64, account string, ttl time.Duration) (bool, error)
	// AcquireCredit gates at-most-once crediting per external transfer.
	AcquireCredit(ctx context.Context, transferID string, ttl time.Duration) (bool, error)
	CreditExists(ctx context.Context, transferID string) (bool, error)
	// ReserveSalt claims an exact salted deposit amount so that no two
	// outstanding intents expect the same amount.
	ReserveSalt(ctx context.Context, exactNano int64, ttl time.Duration) (bool, error)
}

// LockManager provides advisory TTL-based locks. Safe here only because
// every guarded operation is idempotent: losing an acquisition race always
// means someone else is already doing the equivalent work.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// IntentStore persists deposit intents and the per-account set of intent
// ids still awaiting confirmation.
type IntentStore interface {
	Put(ctx context.Context, intent DepositIntent, ttl time.Duration) error
	Get(ctx context.Context, id string) (DepositIntent, error)

	AddPending(ctx context.Context, account, intentID string) error
	RemovePending(ctx context.Context, account, intentID string) error
	Pending(ctx context.Context, account string) ([]string, error)
}

// IdentityStore keeps the telegram-id/username to wallet bindings used by
// the admin target resolver. Verifying telegram identity is an external
// collaborator's job; only the resulting bindings live here.
type IdentityStore interface {
	BindWallet(ctx context.Context, telegramID int64, wallet string) error
	BindUsername(ctx context.Context, username string, telegramID int64) error
	WalletByTelegramID(ctx context.Context, telegramID int64) (string, error)
	TelegramIDByUsername(ctx context.Context, username string) (int64, error)
}

// AdminTokenStore validates short-lived admin session tokens.
type AdminTokenStore interface {
	Validate(ctx context.Context, token string) (bool, error)
	Issue(ctx context.Context, token string, ttl time.Duration) error
}

// TransferQuerier is the external-ledger collaborator: it returns a bounded
// list of recent incoming transfers to the given treasury account, newest
// first.
type TransferQuerier interface {
	RecentTransfers(ctx context.Context, account string, limit int) ([]Transfer, error)
}

// RateLimiter bounds request rates per key over a sliding window.
type RateLimiter interface {
	// Allow reports whether one more request for key fits under limit
	// within window, counting the request when it does.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// AuditStore records settled rounds and credited deposits for offline
// reconciliation. Implementations must tolerate being nil-checked away:
// auditing is optional and never gates a credit.
type AuditStore interface {
	RecordSettlement(ctx context.Context, account string, s SettledRound) error
	RecordDepositCredit(ctx context.Context, account string, intent DepositIntent) error
}
