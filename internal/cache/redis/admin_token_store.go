package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AdminTokenStore implements domain.AdminTokenStore. A session token at
// "admin:token:{token}" is valid while the key exists; expiry is handled
// entirely by the key TTL.
type AdminTokenStore struct {
	rdb *redis.Client
}

// NewAdminTokenStore creates an AdminTokenStore backed by the given Client.
func NewAdminTokenStore(c *Client) *AdminTokenStore {
	return &AdminTokenStore{rdb: c.Underlying()}
}

func adminTokenKey(token string) string {
	return "admin:token:" + token
}

// Validate reports whether the token is a live admin session.
func (as *AdminTokenStore) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := as.rdb.Exists(ctx, adminTokenKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: validate admin token: %w", err)
	}
	return n > 0, nil
}

// Issue registers a token with the given TTL.
func (as *AdminTokenStore) Issue(ctx context.Context, token string, ttl time.Duration) error {
	if err := as.rdb.Set(ctx, adminTokenKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis: issue admin token: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AdminTokenStore = (*AdminTokenStore)(nil)
