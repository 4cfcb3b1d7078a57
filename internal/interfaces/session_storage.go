package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/redactiq/internal/models"
)

// ErrSessionNotFound is returned when a session does not exist or was already closed
var ErrSessionNotFound = errors.New("session not found")

// SessionStorage persists processing sessions, including the uploaded document
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	// DeleteOlderThan removes sessions created before cutoff and returns their IDs
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
	CountSessions(ctx context.Context) (int, error)
}

// SessionService drives one document through scan and redaction.
// Every opened session must be closed; Close deletes the stored document.
type SessionService interface {
	Open(ctx context.Context, fileName string, data []byte) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Scan(ctx context.Context, id string, useAI bool) (*models.ScanResult, error)
	Redact(ctx context.Context, id string, selections []models.ConfirmedSelection) ([]byte, *models.RedactionReport, error)
	Close(ctx context.Context, id string) error
}
