package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// MarkerStore implements domain.MarkerStore with SETNX one-shot keys.
// Marker acquisition strictly precedes every balance credit, which is what
// makes settlement and deposit crediting at-most-once under concurrency.
type MarkerStore struct {
	rdb *redis.Client
}

// NewMarkerStore creates a MarkerStore backed by the given Client.
func NewMarkerStore(c *Client) *MarkerStore {
	return &MarkerStore{rdb: c.Underlying()}
}

func settledKey(roundID int64, account string) string {
	return fmt.Sprintf("bet:settled:%d:%s", roundID, account)
}

func creditKey(transferID string) string {
	return "dep:credited:tx:" + transferID
}

func saltKey(exactNano int64) string {
	return "dep:salt:" + strconv.FormatInt(exactNano, 10)
}

// AcquireSettlement claims the settlement marker for (round, account).
func (ms *MarkerStore) AcquireSettlement(ctx context.Context, roundID int64, account string, ttl time.Duration) (bool, error) {
	ok, err := ms.rdb.SetNX(ctx, settledKey(roundID, account), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire settlement marker %d/%s: %w", roundID, account, err)
	}
	return ok, nil
}

// AcquireCredit claims the credit marker for an external transfer.
func (ms *MarkerStore) AcquireCredit(ctx context.Context, transferID string, ttl time.Duration) (bool, error) {
	ok, err := ms.rdb.SetNX(ctx, creditKey(transferID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire credit marker %s: %w", transferID, err)
	}
	return ok, nil
}

// CreditExists reports whether a transfer is already credited.
func (ms *MarkerStore) CreditExists(ctx context.Context, transferID string) (bool, error) {
	n, err := ms.rdb.Exists(ctx, creditKey(transferID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: credit marker exists %s: %w", transferID, err)
	}
	return n > 0, nil
}

// ReserveSalt claims an exact salted deposit amount for the lifetime of an
// intent, so concurrent intents never expect the same on-chain amount.
func (ms *MarkerStore) ReserveSalt(ctx context.Context, exactNano int64, ttl time.Duration) (bool, error) {
	ok, err := ms.rdb.SetNX(ctx, saltKey(exactNano), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: reserve salt %d: %w", exactNano, err)
	}
	return ok, nil
}

// Compile-time interface check.
var _ domain.MarkerStore = (*MarkerStore)(nil)
