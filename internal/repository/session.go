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

// SessionRepository persists dialog sessions keyed by conversation ID. The
// store is passive: it never mutates a session on its own, and a missing key
// reads as (nil, nil).
type SessionRepository interface {
	Find(ctx context.Context, conversationID string) (*model.Session, error)
	Save(ctx context.Context, conversationID string, session *model.Session) error
	Delete(ctx context.Context, conversationID string) error
}

type sessionRepo struct {
	redis *redisclient.Client
	ttl   time.Duration
}

func NewSessionRepository(client *redisclient.Client, ttl time.Duration) SessionRepository {
	return &sessionRepo{redis: client, ttl: ttl}
}

func (r *sessionRepo) Find(ctx context.Context, conversationID string) (*model.Session, error) {
	data, err := r.redis.Get(ctx, redisclient.SessionKey(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepo) Save(ctx context.Context, conversationID string, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.redis.Set(ctx, redisclient.SessionKey(conversationID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, conversationID string) error {
	if err := r.redis.Del(ctx, redisclient.SessionKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
