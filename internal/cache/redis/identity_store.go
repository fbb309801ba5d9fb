package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// IdentityStore implements domain.IdentityStore with two plain key maps:
// "tg:wallet:{telegramID}" -> wallet and "tg:username:{username}" -> id.
type IdentityStore struct {
	rdb *redis.Client
}

// NewIdentityStore creates an IdentityStore backed by the given Client.
func NewIdentityStore(c *Client) *IdentityStore {
	return &IdentityStore{rdb: c.Underlying()}
}

func tgWalletKey(telegramID int64) string {
	return "tg:wallet:" + strconv.FormatInt(telegramID, 10)
}

func tgUsernameKey(username string) string {
	return "tg:username:" + strings.ToLower(username)
}

// BindWallet maps a telegram id to a wallet. Rebinding overwrites.
func (is *IdentityStore) BindWallet(ctx context.Context, telegramID int64, wallet string) error {
	if err := is.rdb.Set(ctx, tgWalletKey(telegramID), wallet, 0).Err(); err != nil {
		return fmt.Errorf("redis: bind wallet %d: %w", telegramID, err)
	}
	return nil
}

// BindUsername maps a username (lowercased) to a telegram id.
func (is *IdentityStore) BindUsername(ctx context.Context, username string, telegramID int64) error {
	if err := is.rdb.Set(ctx, tgUsernameKey(username), telegramID, 0).Err(); err != nil {
		return fmt.Errorf("redis: bind username %s: %w", username, err)
	}
	return nil
}

// WalletByTelegramID resolves a telegram id to its bound wallet.
func (is *IdentityStore) WalletByTelegramID(ctx context.Context, telegramID int64) (string, error) {
	wallet, err := is.rdb.Get(ctx, tgWalletKey(telegramID)).Result()
	if err == redis.Nil {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: wallet by telegram id %d: %w", telegramID, err)
	}
	return wallet, nil
}

// TelegramIDByUsername resolves a username to its telegram id.
func (is *IdentityStore) TelegramIDByUsername(ctx context.Context, username string) (int64, error) {
	id, err := is.rdb.Get(ctx, tgUsernameKey(username)).Int64()
	if err == redis.Nil {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis: telegram id by username %s: %w", username, err)
	}
	return id, nil
}

// Compile-time interface check.
var _ domain.IdentityStore = (*IdentityStore)(nil)
