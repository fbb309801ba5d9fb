package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// BetBook implements domain.BetBook. Stake buckets live in a hash at
// "bet:{round}:{account}" keyed by bet kind; the set of rounds an account
// still has unsettled bets in lives at "bet:pending:{account}".
type BetBook struct {
	rdb *redis.Client
}

// NewBetBook creates a BetBook backed by the given Client.
func NewBetBook(c *Client) *BetBook {
	return &BetBook{rdb: c.Underlying()}
}

func betKey(roundID int64, account string) string {
	return fmt.Sprintf("bet:%d:%s", roundID, account)
}

func pendingKey(account string) string {
	return "bet:pending:" + account
}

// Accumulate adds stakeNano to the (round, account, kind) bucket using a
// single HINCRBY, so repeated placements on the same kind pile up.
func (bb *BetBook) Accumulate(ctx context.Context, roundID int64, account, kind string, stakeNano int64) error {
	if err := bb.rdb.HIncrBy(ctx, betKey(roundID, account), kind, stakeNano).Err(); err != nil {
		return fmt.Errorf("redis: accumulate bet %d/%s/%s: %w", roundID, account, kind, err)
	}
	return nil
}

// Buckets returns every stake bucket for (round, account). Empty map when
// none exist. Unparsable fields are skipped.
func (bb *BetBook) Buckets(ctx context.Context, roundID int64, account string) (map[string]int64, error) {
	vals, err := bb.rdb.HGetAll(ctx, betKey(roundID, account)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get bet buckets %d/%s: %w", roundID, account, err)
	}

	buckets := make(map[string]int64, len(vals))
	for kind, raw := range vals {
		nano, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || nano <= 0 {
			continue
		}
		buckets[kind] = nano
	}
	return buckets, nil
}

// Clear deletes the bucket hash for (round, account).
func (bb *BetBook) Clear(ctx context.Context, roundID int64, account string) error {
	if err := bb.rdb.Del(ctx, betKey(roundID, account)).Err(); err != nil {
		return fmt.Errorf("redis: clear bets %d/%s: %w", roundID, account, err)
	}
	return nil
}

// AddPending records that the account has unsettled bets in roundID.
func (bb *BetBook) AddPending(ctx context.Context, account string, roundID int64) error {
	if err := bb.rdb.SAdd(ctx, pendingKey(account), strconv.FormatInt(roundID, 10)).Err(); err != nil {
		return fmt.Errorf("redis: add pending %s/%d: %w", account, roundID, err)
	}
	return nil
}

// RemovePending drops roundID from the account's pending set.
func (bb *BetBook) RemovePending(ctx context.Context, account string, roundID int64) error {
	if err := bb.rdb.SRem(ctx, pendingKey(account), strconv.FormatInt(roundID, 10)).Err(); err != nil {
		return fmt.Errorf("redis: remove pending %s/%d: %w", account, roundID, err)
	}
	return nil
}

// Pending returns the account's pending round ids sorted ascending. Members
// that fail to parse are ignored.
func (bb *BetBook) Pending(ctx context.Context, account string) ([]int64, error) {
	members, err := bb.rdb.SMembers(ctx, pendingKey(account)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: pending rounds %s: %w", account, err)
	}

	rounds := make([]int64, 0, len(members))
	for _, m := range members {
		r, err := strconv.ParseInt(m, 10, 64)
		if err != nil || r < 0 {
			continue
		}
		rounds = append(rounds, r)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i] < rounds[j] })
	return rounds, nil
}

// Compile-time interface check.
var _ domain.BetBook = (*BetBook)(nil)
