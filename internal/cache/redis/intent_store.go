package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// IntentStore implements domain.IntentStore. Intents are JSON blobs at
// "dep:intent:{id}" with a bounded TTL; the per-account set of intent ids
// awaiting confirmation lives at "dep:pending:{account}".
type IntentStore struct {
	rdb *redis.Client
}

// NewIntentStore creates an IntentStore backed by the given Client.
func NewIntentStore(c *Client) *IntentStore {
	return &IntentStore{rdb: c.Underlying()}
}

func intentKey(id string) string {
	return "dep:intent:" + id
}

func depPendingKey(account string) string {
	return "dep:pending:" + account
}

// Put stores (or overwrites) an intent with the given TTL.
func (is *IntentStore) Put(ctx context.Context, intent domain.DepositIntent, ttl time.Duration) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("redis: marshal intent %s: %w", intent.ID, err)
	}
	if err := is.rdb.Set(ctx, intentKey(intent.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put intent %s: %w", intent.ID, err)
	}
	return nil
}

// Get loads an intent, returning domain.ErrNotFound when absent or
// expired.
func (is *IntentStore) Get(ctx context.Context, id string) (domain.DepositIntent, error) {
	raw, err := is.rdb.Get(ctx, intentKey(id)).Bytes()
	if err == redis.Nil {
		return domain.DepositIntent{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DepositIntent{}, fmt.Errorf("redis: get intent %s: %w", id, err)
	}

	var intent domain.DepositIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return domain.DepositIntent{}, fmt.Errorf("redis: decode intent %s: %w", id, err)
	}
	return intent, nil
}

// AddPending parks an intent id in the account's resume set.
func (is *IntentStore) AddPending(ctx context.Context, account, intentID string) error {
	if err := is.rdb.SAdd(ctx, depPendingKey(account), intentID).Err(); err != nil {
		return fmt.Errorf("redis: add pending intent %s/%s: %w", account, intentID, err)
	}
	return nil
}

// RemovePending drops an intent id from the account's resume set.
func (is *IntentStore) RemovePending(ctx context.Context, account, intentID string) error {
	if err := is.rdb.SRem(ctx, depPendingKey(account), intentID).Err(); err != nil {
		return fmt.Errorf("redis: remove pending intent %s/%s: %w", account, intentID, err)
	}
	return nil
}

// Pending returns the account's parked intent ids.
func (is *IntentStore) Pending(ctx context.Context, account string) ([]string, error) {
	ids, err := is.rdb.SMembers(ctx, depPendingKey(account)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: pending intents %s: %w", account, err)
	}
	return ids, nil
}

// Compile-time interface check.
var _ domain.IntentStore = (*IntentStore)(nil)
