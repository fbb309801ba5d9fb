package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidStake      = errors.New("invalid stake")
	ErrInvalidKind       = errors.New("invalid bet kind")
	ErrRoundMismatch     = errors.New("round is not the current round")
	ErrRoundClosed       = errors.New("betting closed for this round")
	ErrLockHeld          = errors.New("lock already held")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrBadTarget         = errors.New("unresolvable target")
)
