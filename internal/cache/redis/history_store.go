package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// HistoryStore implements domain.HistoryStore. Outcomes live as JSON
// entries in the list "wheel:history"; the id of the newest recorded round
// lives at "wheel:lastRoundId".
type HistoryStore struct {
	rdb *redis.Client
}

// NewHistoryStore creates a HistoryStore backed by the given Client.
func NewHistoryStore(c *Client) *HistoryStore {
	return &HistoryStore{rdb: c.Underlying()}
}

const (
	historyKey = "wheel:history"
	headKey    = "wheel:lastRoundId"
)

// Entries returns the stored history in list order. It returns
// domain.ErrCorruptHistory when any stored entry fails to parse, so the
// caller can trigger a rebuild.
func (hs *HistoryStore) Entries(ctx context.Context) ([]domain.HistoryEntry, error) {
	raw, err := hs.rdb.LRange(ctx, historyKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: history range: %w", err)
	}

	entries := make([]domain.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, domain.ErrCorruptHistory
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Append pushes entries onto the tail of the history list.
func (hs *HistoryStore) Append(ctx context.Context, entries ...domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("redis: marshal history entry: %w", err)
		}
		vals = append(vals, data)
	}
	if err := hs.rdb.RPush(ctx, historyKey, vals...).Err(); err != nil {
		return fmt.Errorf("redis: history append: %w", err)
	}
	return nil
}

// Trim keeps only the newest max entries.
func (hs *HistoryStore) Trim(ctx context.Context, max int) error {
	if err := hs.rdb.LTrim(ctx, historyKey, int64(-max), -1).Err(); err != nil {
		return fmt.Errorf("redis: history trim: %w", err)
	}
	return nil
}

// Replace swaps the whole list for the given entries inside a MULTI/EXEC
// transaction, so readers never observe a half-built list.
func (hs *HistoryStore) Replace(ctx context.Context, entries []domain.HistoryEntry) error {
	vals := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("redis: marshal history entry: %w", err)
		}
		vals = append(vals, data)
	}

	_, err := hs.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, historyKey)
		if len(vals) > 0 {
			pipe.RPush(ctx, historyKey, vals...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: history replace: %w", err)
	}
	return nil
}

// Head returns the last recorded round id, domain.ErrNotFound when unset.
func (hs *HistoryStore) Head(ctx context.Context) (int64, error) {
	val, err := hs.rdb.Get(ctx, headKey).Int64()
	if err == redis.Nil {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis: history head: %w", err)
	}
	return val, nil
}

// SetHead records the id of the newest round present in the list.
func (hs *HistoryStore) SetHead(ctx context.Context, roundID int64) error {
	if err := hs.rdb.Set(ctx, headKey, roundID, 0).Err(); err != nil {
		return fmt.Errorf("redis: set history head: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)
