package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fitgrid/auth-service/internal/domain"
	"github.com/fitgrid/auth-service/pkg/auth"
)

const refreshTokenKeyPrefix = "refresh_token:"

const revokeScanBatch = 100

// RefreshTokenStore is the registry of live refresh tokens. A refresh
// token is usable iff its signature verifies AND a record exists under
// refresh_token:{userID}:{fingerprint} AND the stored value equals the
// presented token string. Deleting the record is the only revocation
// mechanism.
type RefreshTokenStore struct {
	client *redis.Client
}

func NewRefreshTokenStore(client *redis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{client: client}
}

func refreshTokenKey(userID, fingerprint string) string {
	return refreshTokenKeyPrefix + userID + ":" + fingerprint
}

// Put records a refresh token with a hard expiry, overwriting any record
// under the same key so re-issuance needs no explicit delete.
func (s *RefreshTokenStore) Put(ctx context.Context, userID, token string, ttl time.Duration) error {
	key := refreshTokenKey(userID, auth.Fingerprint(token))
	if err := s.client.Set(ctx, key, token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to store refresh token: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// IsValid reports whether the exact token presented is currently live for
// the user. Comparing the stored value, not just key presence, defends
// against fingerprint collisions and key reuse after store corruption.
func (s *RefreshTokenStore) IsValid(ctx context.Context, userID, token string) (bool, error) {
	key := refreshTokenKey(userID, auth.Fingerprint(token))
	stored, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to read refresh token: %v", domain.ErrStoreUnavailable, err)
	}
	return stored == token, nil
}

// Revoke deletes the single record for the token. Idempotent; revoking an
// absent record is not an error.
func (s *RefreshTokenStore) Revoke(ctx context.Context, userID, token string) error {
	key := refreshTokenKey(userID, auth.Fingerprint(token))
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: failed to revoke refresh token: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeAll enumerates every record under the user's prefix and deletes
// them as one batch. A Put racing the scan may survive or be deleted
// depending on arrival order; last-write-wins is the accepted contract.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, userID string) error {
	pattern := refreshTokenKeyPrefix + userID + ":*"

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, revokeScanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: failed to scan refresh tokens: %v", domain.ErrStoreUnavailable, err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: failed to delete refresh tokens: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
