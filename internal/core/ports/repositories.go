package ports

import (
	"context"

	"streamcast/internal/core/domain"
)

// SessionRepository stores the current session snapshot so status
// queries survive control-API reconnects.
type SessionRepository interface {
	Save(ctx context.Context, session *domain.StreamSession) error
	Get(ctx context.Context, id domain.SessionID) (*domain.StreamSession, error)
	GetCurrent(ctx context.Context) (*domain.StreamSession, error)
	Delete(ctx context.Context, id domain.SessionID) error
}
