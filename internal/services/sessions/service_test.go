package sessions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
	"github.com/ternarybob/redactiq/internal/services/detection"
)

type memoryStorage struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{sessions: make(map[string]models.Session)}
}

func (m *memoryStorage) SaveSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *memoryStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, interfaces.ErrSessionNotFound
	}
	return &session, nil
}

func (m *memoryStorage) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return interfaces.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memoryStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, session := range m.sessions {
		if session.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(m.sessions, id)
		}
	}
	return ids, nil
}

func (m *memoryStorage) CountSessions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}

var errNotPDF = errors.New("not a pdf")

// textExtractor treats the document bytes as the text of a single page
type textExtractor struct{}

func (textExtractor) ExtractPages(ctx context.Context, data []byte) ([]models.PageText, error) {
	if string(data) == "garbage" {
		return nil, errNotPDF
	}
	return []models.PageText{{Number: 1, Text: string(data)}}, nil
}

func (textExtractor) GetMetadata(ctx context.Context, data []byte) (*models.PDFMetadata, error) {
	if string(data) == "garbage" {
		return nil, errNotPDF
	}
	return &models.PDFMetadata{PageCount: 1, FileSize: int64(len(data))}, nil
}

type recordingEngine struct {
	selections []models.ConfirmedSelection
}

func (e *recordingEngine) Apply(ctx context.Context, data []byte, selections []models.ConfirmedSelection) ([]byte, *models.RedactionReport, error) {
	e.selections = selections
	return append([]byte("redacted:"), data...), &models.RedactionReport{Marks: len(selections)}, nil
}

type countingAI struct {
	calls atomic.Int32
}

func (a *countingAI) Detect(ctx context.Context, text string, page int) ([]models.Candidate, error) {
	a.calls.Add(1)
	return []models.Candidate{{Text: "Jane Roe", Reason: "Patient name", Page: page, Source: models.SourceAI}}, nil
}

type fixture struct {
	service *Service
	storage *memoryStorage
	engine  *recordingEngine
	ai      *countingAI
}

func newFixture(t *testing.T, withAI bool) *fixture {
	t.Helper()
	logger := arbor.NewLogger()
	f := &fixture{storage: newMemoryStorage(), engine: &recordingEngine{}, ai: &countingAI{}}

	var ai interfaces.AIDetector
	if withAI {
		ai = f.ai
	}
	scanner := detection.NewScanner(logger, textExtractor{}, detection.NewRegexDetector(), ai, detection.ScannerOptions{})
	f.service = NewService(logger, f.storage, textExtractor{}, f.engine, scanner, 0)
	return f
}

const document = "Jane Roe, SSN 123-45-6789"

func TestServiceLifecycle(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	session, err := f.service.Open(ctx, "intake.pdf", []byte(document))
	require.NoError(t, err)
	assert.Contains(t, session.ID, "ses_")
	assert.Equal(t, 1, session.Metadata.PageCount)

	result, err := f.service.Scan(ctx, session.ID, true)
	require.NoError(t, err)
	assert.True(t, result.AIEnabled)
	assert.Equal(t, 2, result.Summary.Total)

	stored, err := f.service.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Scan)
	assert.Equal(t, result.Items, stored.Scan.Items)

	selections := models.SelectionsFromItems(result.Items)
	out, report, err := f.service.Redact(ctx, session.ID, selections)
	require.NoError(t, err)
	assert.Equal(t, "redacted:"+document, string(out))
	assert.Equal(t, 2, report.Marks)
	assert.Len(t, f.engine.selections, 2)

	require.NoError(t, f.service.Close(ctx, session.ID))
	_, err = f.service.Get(ctx, session.ID)
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
	assert.ErrorIs(t, f.service.Close(ctx, session.ID), interfaces.ErrSessionNotFound)
}

func TestServiceCachesAIPerSession(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.service.Open(ctx, "a.pdf", []byte(document))
	require.NoError(t, err)
	second, err := f.service.Open(ctx, "b.pdf", []byte(document))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.service.Scan(ctx, first.ID, true)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.ai.calls.Load())

	_, err = f.service.Scan(ctx, second.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.ai.calls.Load(), "sessions do not share a cache")

	require.NoError(t, f.service.Close(ctx, first.ID))
	f.service.mu.Lock()
	_, cached := f.service.caches[first.ID]
	f.service.mu.Unlock()
	assert.False(t, cached)
}

func TestServiceScanWithoutAI(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	session, err := f.service.Open(ctx, "a.pdf", []byte(document))
	require.NoError(t, err)

	result, err := f.service.Scan(ctx, session.ID, false)
	require.NoError(t, err)
	assert.False(t, result.AIEnabled)
	assert.Equal(t, 1, result.Summary.Total)
	assert.Equal(t, int32(0), f.ai.calls.Load())

	regexOnly := newFixture(t, false)
	session, err = regexOnly.service.Open(ctx, "a.pdf", []byte(document))
	require.NoError(t, err)
	result, err = regexOnly.service.Scan(ctx, session.ID, true)
	require.NoError(t, err)
	assert.False(t, result.AIEnabled)
}

func TestServiceOpenErrors(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.service.Open(ctx, "bad.pdf", []byte("garbage"))
	assert.ErrorIs(t, err, errNotPDF)

	_, err = f.service.Open(ctx, "empty.pdf", nil)
	assert.Error(t, err)

	count, _ := f.storage.CountSessions(ctx)
	assert.Equal(t, 0, count)

	_, err = f.service.Scan(ctx, "ses_missing", true)
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
	_, _, err = f.service.Redact(ctx, "ses_missing", nil)
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
}

func TestProcessAlwaysCloses(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	fnErr := errors.New("review aborted")

	var openedID string
	err := Process(ctx, f.service, "a.pdf", []byte(document), func(session *models.Session) error {
		openedID = session.ID
		_, err := f.service.Scan(ctx, session.ID, false)
		require.NoError(t, err)
		return fnErr
	})
	assert.ErrorIs(t, err, fnErr)

	_, err = f.storage.GetSession(ctx, openedID)
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)

	err = Process(ctx, f.service, "a.pdf", []byte(document), func(session *models.Session) error { return nil })
	assert.NoError(t, err)
	count, _ := f.storage.CountSessions(ctx)
	assert.Equal(t, 0, count)
}

func TestSweep(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.storage.SaveSession(ctx, &models.Session{ID: "ses_old", CreatedAt: time.Now().Add(-2 * time.Hour)}))
	fresh, err := f.service.Open(ctx, "a.pdf", []byte(document))
	require.NoError(t, err)

	removed, err := f.service.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.service.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestStartSweeper(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.storage.SaveSession(ctx, &models.Session{ID: "ses_old", CreatedAt: time.Now().Add(-time.Hour)}))
	f.service.StartSweeper(ctx, time.Minute, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		count, _ := f.storage.CountSessions(context.Background())
		return count == 0
	}, time.Second, 5*time.Millisecond)
}
