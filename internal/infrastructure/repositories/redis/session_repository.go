package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
)

// SessionRepository stores session snapshots in Redis so a restarted
// control daemon can report the last known session. Snapshots expire
// on their own if the engine dies without cleaning up.
type SessionRepository struct {
	client *redis.Client
	prefix string
}

const snapshotTTL = 24 * time.Hour

func NewSessionRepository(client *redis.Client) ports.SessionRepository {
	return &SessionRepository{
		client: client,
		prefix: "streamcast:session:",
	}
}

func (r *SessionRepository) sessionKey(id domain.SessionID) string {
	return r.prefix + string(id)
}

func (r *SessionRepository) currentKey() string {
	return r.prefix + "current"
}

func (r *SessionRepository) Save(ctx context.Context, session *domain.StreamSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(session.ID), data, snapshotTTL)
	pipe.Set(ctx, r.currentKey(), string(session.ID), snapshotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id domain.SessionID) (*domain.StreamSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.StreamSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) GetCurrent(ctx context.Context) (*domain.StreamSession, error) {
	id, err := r.client.Get(ctx, r.currentKey()).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current session id from Redis: %w", err)
	}
	return r.Get(ctx, domain.SessionID(id))
}

func (r *SessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.sessionKey(id))
	pipe.Del(ctx, r.currentKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}
