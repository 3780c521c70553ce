package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/web3guardian/guardian-server-go/internal/model"
	redisclient "github.com/web3guardian/guardian-server-go/internal/redis"
)

// CredentialRepository persists one API credential per user. Keys carry a TTL
// matching the longest-lived token so abandoned credentials age out of Redis
// on their own.
type CredentialRepository interface {
	Find(ctx context.Context, userID string) (*model.Credential, error)
	Save(ctx context.Context, userID string, credential *model.Credential) error
	Delete(ctx context.Context, userID string) error
}

type credentialRepo struct {
	redis *redisclient.Client
}

func NewCredentialRepository(client *redisclient.Client) CredentialRepository {
	return &credentialRepo{redis: client}
}

func (r *credentialRepo) Find(ctx context.Context, userID string) (*model.Credential, error) {
	data, err := r.redis.Get(ctx, redisclient.CredentialKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	var credential model.Credential
	if err := json.Unmarshal([]byte(data), &credential); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return &credential, nil
}

func (r *credentialRepo) Save(ctx context.Context, userID string, credential *model.Credential) error {
	data, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	ttl := credentialTTL(credential, time.Now())
	if err := r.redis.Set(ctx, redisclient.CredentialKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	return nil
}

func (r *credentialRepo) Delete(ctx context.Context, userID string) error {
	if err := r.redis.Del(ctx, redisclient.CredentialKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func credentialTTL(credential *model.Credential, now time.Time) time.Duration {
	expiry := credential.AccessTokenExpiresAt
	if credential.RefreshTokenExpiresAt.After(expiry) {
		expiry = credential.RefreshTokenExpiresAt
	}
	ttl := expiry.Sub(now)
	if ttl <= 0 {
		// already expired; keep it briefly so callers see TOKEN_EXPIRED
		// instead of a silent miss
		return time.Minute
	}
	return ttl
}
