// -----------------------------------------------------------------------
// Sessions - one uploaded document from scan to redaction to deletion
// -----------------------------------------------------------------------

package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/common"
	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
	"github.com/ternarybob/redactiq/internal/services/detection"
)

// Service implements interfaces.SessionService.
// The uploaded bytes are kept in session storage until Close or the sweeper
// removes them; AI results are cached per session for the same lifetime.
type Service struct {
	storage      interfaces.SessionStorage
	extractor    interfaces.PageExtractor
	engine       interfaces.RedactionEngine
	scanner      *detection.Scanner
	cacheEntries int
	logger       arbor.ILogger

	mu     sync.Mutex
	caches map[string]*detection.Cache
}

var _ interfaces.SessionService = (*Service)(nil)

// NewService creates the session service. The scanner's AI detector, if any,
// is wrapped with a per-session cache on every scan.
func NewService(
	logger arbor.ILogger,
	storage interfaces.SessionStorage,
	extractor interfaces.PageExtractor,
	engine interfaces.RedactionEngine,
	scanner *detection.Scanner,
	cacheEntries int,
) *Service {
	return &Service{
		storage:      storage,
		extractor:    extractor,
		engine:       engine,
		scanner:      scanner,
		cacheEntries: cacheEntries,
		logger:       logger,
		caches:       make(map[string]*detection.Cache),
	}
}

// Open validates the document and stores it under a new session ID
func (s *Service) Open(ctx context.Context, fileName string, data []byte) (*models.Session, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("document is empty")
	}

	metadata, err := s.extractor.GetMetadata(ctx, data)
	if err != nil {
		s.logger.Error().Err(err).Str("file", fileName).Msg("Failed to open document")
		return nil, err
	}

	session := &models.Session{
		ID:       common.NewSessionID(),
		FileName: fileName,
		Document: data,
		Metadata: *metadata,
	}
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Int("pages", metadata.PageCount).
		Int64("bytes", metadata.FileSize).
		Msg("Session opened")

	return session, nil
}

// Get returns the stored session
func (s *Service) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.storage.GetSession(ctx, id)
}

// Scan runs detection over the session's document and stores the result.
// With useAI false, or no AI detector configured, only patterns are used.
func (s *Service) Scan(ctx context.Context, id string, useAI bool) (*models.ScanResult, error) {
	session, err := s.storage.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	scanner := s.scanner.WithAIDetector(nil)
	if ai := s.scanner.AIDetector(); useAI && ai != nil {
		scanner = s.scanner.WithAIDetector(detection.NewCachedDetector(ai, s.cacheFor(id)))
	}

	result, err := scanner.Scan(ctx, session.Document)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("Scan failed")
		return nil, err
	}

	session.Scan = result
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", id).
		Int("candidates", result.Summary.Total).
		Int("page_errors", len(result.PageErrors)).
		Str("duration", result.Duration).
		Msg("Session scanned")

	return result, nil
}

// Redact applies the confirmed selections to the session's document
func (s *Service) Redact(ctx context.Context, id string, selections []models.ConfirmedSelection) ([]byte, *models.RedactionReport, error) {
	session, err := s.storage.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	out, report, err := s.engine.Apply(ctx, session.Document, selections)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("Redaction failed")
		return nil, nil, err
	}

	s.logger.Info().
		Str("session_id", id).
		Int("selections", len(selections)).
		Int("marks", report.Marks).
		Int("skipped", len(report.Skipped)).
		Msg("Session redacted")

	return out, report, nil
}

// Close deletes the session, its document and its AI cache.
// Closing an unknown session returns interfaces.ErrSessionNotFound.
func (s *Service) Close(ctx context.Context, id string) error {
	s.dropCache(id)

	if err := s.storage.DeleteSession(ctx, id); err != nil {
		if !errors.Is(err, interfaces.ErrSessionNotFound) {
			s.logger.Error().Err(err).Str("session_id", id).Msg("Failed to delete session")
		}
		return err
	}

	s.logger.Info().Str("session_id", id).Msg("Session closed")
	return nil
}

func (s *Service) cacheFor(id string) *detection.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.caches[id]
	if !ok {
		cache = detection.NewCache(s.cacheEntries)
		s.caches[id] = cache
	}
	return cache
}

func (s *Service) dropCache(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cache, ok := s.caches[id]; ok {
		cache.Reset()
		delete(s.caches, id)
	}
}

// Process opens a session for data, runs fn and always closes the session,
// whatever fn returns
func Process(ctx context.Context, svc interfaces.SessionService, fileName string, data []byte, fn func(session *models.Session) error) (err error) {
	session, err := svc.Open(ctx, fileName, data)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(context.WithoutCancel(ctx), session.ID); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close session: %w", cerr)
		}
	}()

	return fn(session)
}
