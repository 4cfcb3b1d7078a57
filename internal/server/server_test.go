package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/app"
	"github.com/ternarybob/redactiq/internal/common"
	"github.com/ternarybob/redactiq/internal/handlers"
)

func newTestServer(t *testing.T, maxUploadMB int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newTestApp(t, maxUploadMB).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newTestApp(t *testing.T, maxUploadMB int) *Server {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")
	cfg.Detection.AIEnabled = false
	cfg.Sessions.MaxUploadMB = maxUploadMB

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	return New(application)
}

func samplePDF(t *testing.T) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Text(72, 72, "Member SSN 123-45-6789")
	doc.Text(72, 90, "Contact jane@example.com")

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func upload(t *testing.T, url string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "member.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(url, writer.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestSessionWorkflow(t *testing.T) {
	ts := newTestServer(t, 0)

	resp := upload(t, ts.URL+"/api/sessions", samplePDF(t))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created handlers.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotNil(t, created.Scan)
	assert.False(t, created.Scan.AIEnabled)
	assert.Equal(t, 1, created.Metadata.PageCount)
	assert.Equal(t, 2, created.Scan.Summary.Total)

	redactResp, err := http.Post(ts.URL+"/api/sessions/"+created.SessionID+"/redact", "application/json",
		strings.NewReader(`{"use_detected":true}`))
	require.NoError(t, err)
	defer redactResp.Body.Close()
	require.Equal(t, http.StatusOK, redactResp.StatusCode)
	assert.Equal(t, "application/pdf", redactResp.Header.Get("Content-Type"))
	assert.Equal(t, "2", redactResp.Header.Get("X-Redaction-Marks"))

	out, err := io.ReadAll(redactResp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+created.SessionID, nil)
	require.NoError(t, err)
	deleteResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	deleteResp.Body.Close()
	assert.Equal(t, http.StatusOK, deleteResp.StatusCode)

	getResp, err := http.Get(ts.URL + "/api/sessions/" + created.SessionID)
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	ts := newTestServer(t, 0)

	resp := upload(t, ts.URL+"/api/sessions", []byte("plain text, not a document"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUploadSizeLimit(t *testing.T) {
	ts := newTestServer(t, 1)

	resp := upload(t, ts.URL+"/api/sessions", bytes.Repeat([]byte("x"), 3<<19))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestBodyLimitMiddleware(t *testing.T) {
	s := newTestApp(t, 1)
	h := s.bodyLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(make([]byte, 3<<20))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(make([]byte, 1<<20))))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSystemRoutes(t *testing.T) {
	ts := newTestServer(t, 0)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(ts.URL + "/api/sessions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/sessions", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
