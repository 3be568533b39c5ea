package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedTokenPrefix = "revoked_token:"

// RevocationList stores logged-out token ids in Redis until they expire.
type RevocationList struct {
	Client *redis.Client
}

func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{Client: client}
}

func (l *RevocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if l == nil || l.Client == nil || tokenID == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := l.Client.Set(ctx, revokedTokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (l *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if l == nil || l.Client == nil || tokenID == "" {
		return false, nil
	}
	n, err := l.Client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}
