package app

import (
	"context"
	"sync"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

// SessionService owns the per-chat flow state. A session in the analyzing
// state is the only busy marker: at most one analysis runs per session.
type SessionService struct {
	mu   sync.Mutex
	repo port.SessionRepository
}

func NewSessionService(repo port.SessionRepository) *SessionService {
	return &SessionService{repo: repo}
}

func (s *SessionService) Get(ctx context.Context, userID, chatID int64) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Get(ctx, userID, chatID)
}

// Busy reports whether an analysis is running for the session.
func (s *SessionService) Busy(ctx context.Context, userID, chatID int64) bool {
	session, err := s.Get(ctx, userID, chatID)
	return err == nil && session.Busy()
}

func (s *SessionService) SetState(ctx context.Context, userID, chatID int64, state entity.SessionState) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStateLocked(ctx, userID, chatID, state)
}

func (s *SessionService) setStateLocked(ctx context.Context, userID, chatID int64, state entity.SessionState) (*entity.Session, error) {
	session, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	session.SetState(state)
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *SessionService) BeginCapture(ctx context.Context, userID, chatID int64) (*entity.Session, error) {
	return s.SetState(ctx, userID, chatID, entity.StateCapturing)
}

// BeginAnalysis moves the session to analyzing, or fails with an input error
// when an analysis is already running.
func (s *SessionService) BeginAnalysis(ctx context.Context, userID, chatID int64) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if session.Busy() {
		return nil, errBusy()
	}
	return s.setStateLocked(ctx, userID, chatID, entity.StateAnalyzing)
}

func (s *SessionService) Review(ctx context.Context, userID, chatID int64) (*entity.Session, error) {
	return s.SetState(ctx, userID, chatID, entity.StateReviewing)
}

func (s *SessionService) Cancel(ctx context.Context, userID, chatID int64) (*entity.Session, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}
