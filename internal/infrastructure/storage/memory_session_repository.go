package storage

import (
	"context"
	"sync"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

// MemorySessionRepository keeps chat sessions in memory.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[int64]*entity.Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[int64]*entity.Session),
	}
}

// Get returns a copy of the session for userID, creating one in the main
// menu if needed.
func (r *MemorySessionRepository) Get(ctx context.Context, userID, chatID int64) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		s = entity.NewSession(userID, chatID)
		r.sessions[userID] = s
	}
	cp := *s
	return &cp, nil
}

func (r *MemorySessionRepository) Save(ctx context.Context, session *entity.Session) error {
	cp := *session
	r.mu.Lock()
	r.sessions[session.ID] = &cp
	r.mu.Unlock()

	return nil
}

var _ port.SessionRepository = (*MemorySessionRepository)(nil)
