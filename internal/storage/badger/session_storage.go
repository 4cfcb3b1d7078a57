package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SessionStorage implements interfaces.SessionStorage with badgerhold
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.SessionStorage = (*SessionStorage)(nil)

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) *SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

// SaveSession inserts or replaces a session
func (s *SessionStorage) SaveSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession loads a session by ID
func (s *SessionStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.db.Store().Get(id, &session)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.ID = id
	return &session, nil
}

// DeleteSession removes a session and its document
func (s *SessionStorage) DeleteSession(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.Session{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteOlderThan removes every session created before cutoff
func (s *SessionStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	var expired []models.Session
	if err := s.db.Store().Find(&expired, badgerhold.Where("CreatedAt").Lt(cutoff)); err != nil {
		return nil, fmt.Errorf("failed to find expired sessions: %w", err)
	}

	ids := make([]string, 0, len(expired))
	for _, session := range expired {
		if err := s.db.Store().Delete(session.ID, &models.Session{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return ids, fmt.Errorf("failed to delete session %s: %w", session.ID, err)
		}
		ids = append(ids, session.ID)
	}
	return ids, nil
}

// CountSessions returns the number of stored sessions
func (s *SessionStorage) CountSessions(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Session{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(count), nil
}
