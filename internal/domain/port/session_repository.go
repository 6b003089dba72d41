package port

import (
	"context"

	"eicr-vision/internal/domain/entity"
)

// SessionRepository stores per-chat sessions.
type SessionRepository interface {
	// Get returns a copy of the session, creating a new one if none exists
	Get(ctx context.Context, userID, chatID int64) (*entity.Session, error)

	Save(ctx context.Context, session *entity.Session) error
}
