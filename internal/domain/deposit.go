package domain

import "time"

// DepositStatus is the lifecycle state of a deposit intent. An intent moves
// created -> credited at most once; there is no other transition.
type DepositStatus string

const (
	DepositCreated  DepositStatus = "created"
	DepositCredited DepositStatus = "credited"
)

// DepositIntent is a request to credit an account once a matching transfer
// to the treasury is observed on chain. AmountNano is the exact salted
// amount the depositor must send; NominalNano is the amount credited on
// match (the salt stays with the treasury).
type DepositIntent struct {
	ID          string        `json:"intentId"`
	Treasury    string        `json:"treasury"`
	AmountNano  int64         `json:"amountNano"`
	NominalNano int64         `json:"nominalNano"`
	Comment     string        `json:"comment"`
	CreatedAt   time.Time     `json:"createdAt"`
	Status      DepositStatus `json:"status"`
	CreditedAt  time.Time     `json:"creditedAt,omitempty"`
	TransferID  string        `json:"transferId,omitempty"`
}

// ConfirmStatus is the terminal outcome of a single confirm call.
type ConfirmStatus string

const (
	// ConfirmWait means the minimum observation delay has not elapsed yet.
	ConfirmWait ConfirmStatus = "wait"
	// ConfirmPending means no matching transfer was found; retry later.
	ConfirmPending ConfirmStatus = "pending"
	// ConfirmCredited means the intent is credited (now or previously).
	ConfirmCredited ConfirmStatus = "credited"
)

// ConfirmResult reports a confirm call. CreditedNano is set only for
// ConfirmCredited. NewlyCredited is true on the one call that applied the
// credit; idempotent replays report credited with it false.
type ConfirmResult struct {
	Status        ConfirmStatus `json:"status"`
	CreditedNano  int64         `json:"creditedNano,omitempty"`
	NewlyCredited bool          `json:"-"`
}

// Transfer is one incoming transfer to the treasury account, already
// normalized by the platform adapter. ID is globally unique on the external
// ledger and is the key of the credit marker.
type Transfer struct {
	ID         string
	AmountNano int64
	Sender     string
	Comment    string
	HasComment bool
	Timestamp  time.Time
}
