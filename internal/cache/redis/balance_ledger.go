package redis

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/redis/go-redis/v9"
)

//go:embed scripts/balance_incr.lua
var balanceIncrLua string

// BalanceLedger implements domain.BalanceLedger. Balances are stored as
// plain integer strings at "bal:{account}" and only ever mutated through
// the embedded Lua script, which applies the delta and the zero floor in a
// single atomic step.
type BalanceLedger struct {
	rdb  *redis.Client
	incr *redis.Script
}

// NewBalanceLedger creates a BalanceLedger backed by the given Client.
func NewBalanceLedger(c *Client) *BalanceLedger {
	return &BalanceLedger{
		rdb:  c.Underlying(),
		incr: redis.NewScript(balanceIncrLua),
	}
}

func balanceKey(account string) string {
	return "bal:" + account
}

// Get returns the account balance in nanounits, zero for unknown accounts.
func (bl *BalanceLedger) Get(ctx context.Context, account string) (int64, error) {
	val, err := bl.rdb.Get(ctx, balanceKey(account)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get balance %s: %w", account, err)
	}
	return val, nil
}

// Increment applies a signed delta atomically and returns the new balance.
// It returns domain.ErrInsufficientFunds when the result would go below
// zero; the balance is left untouched in that case.
func (bl *BalanceLedger) Increment(ctx context.Context, account string, deltaNano int64) (int64, error) {
	result, err := bl.incr.Run(ctx, bl.rdb, []string{balanceKey(account)}, deltaNano).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("redis: increment balance %s: %w", account, err)
	}
	if len(result) != 2 {
		return 0, fmt.Errorf("redis: increment balance %s: unexpected result length %d", account, len(result))
	}
	if result[0] == 0 {
		return result[1], domain.ErrInsufficientFunds
	}
	return result[1], nil
}

// Compile-time interface check.
var _ domain.BalanceLedger = (*BalanceLedger)(nil)
