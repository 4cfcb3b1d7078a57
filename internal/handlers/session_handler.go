package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
)

const sessionsPath = "/api/sessions/"

// SessionResponse is returned for upload and session lookups
type SessionResponse struct {
	SessionID string             `json:"session_id"`
	FileName  string             `json:"file_name"`
	Metadata  models.PDFMetadata `json:"metadata"`
	Scan      *models.ScanResult `json:"scan,omitempty"`
}

// SessionHandler serves the upload, review and redaction endpoints
type SessionHandler struct {
	sessions  interfaces.SessionService
	maxUpload int64
	logger    arbor.ILogger
}

// NewSessionHandler creates a new SessionHandler. Uploads larger than
// maxUpload bytes are rejected.
func NewSessionHandler(sessions interfaces.SessionService, maxUpload int64, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// SessionIDFromPath splits /api/sessions/{id}[/{action}] into id and action
func SessionIDFromPath(path string) (id, action string) {
	rest := strings.Trim(strings.TrimPrefix(path, sessionsPath), "/")
	id, action, _ = strings.Cut(rest, "/")
	return id, action
}

// UploadHandler handles POST /api/sessions.
// Multipart field "file" holds the PDF; "ai=false" forces pattern-only detection.
func (h *SessionHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return
		}
		WriteError(w, http.StatusBadRequest, "Expected a multipart form with a file field")
		return
	}
	// form field or query parameter
	useAI := true
	if value := r.FormValue("ai"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "ai must be true or false")
			return
		}
		useAI = parsed
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if int64(len(data)) > h.maxUpload {
		WriteError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
		return
	}
	if len(data) == 0 {
		WriteError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	fileName := filepath.Base(header.Filename)
	session, err := h.sessions.Open(r.Context(), fileName, data)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	result, err := h.sessions.Scan(r.Context(), session.ID, useAI)
	if err != nil {
		// a session that could not be scanned is of no use to the caller
		if closeErr := h.sessions.Close(r.Context(), session.ID); closeErr != nil {
			h.logger.Warn().Err(closeErr).Str("session_id", session.ID).Msg("Failed to close session after scan error")
		}
		WriteServiceError(w, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, SessionResponse{
		SessionID: session.ID,
		FileName:  session.FileName,
		Metadata:  session.Metadata,
		Scan:      result,
	})
}

// SessionRoutes dispatches /api/sessions/{id} and /api/sessions/{id}/redact
func (h *SessionHandler) SessionRoutes(w http.ResponseWriter, r *http.Request) {
	id, action := SessionIDFromPath(r.URL.Path)
	if id == "" {
		WriteError(w, http.StatusNotFound, "Session ID is required")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.GetHandler(w, r, id)
		case http.MethodDelete:
			h.DeleteHandler(w, r, id)
		default:
			WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case "redact":
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}
		h.RedactHandler(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// GetHandler handles GET /api/sessions/{id}
func (h *SessionHandler) GetHandler(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, SessionResponse{
		SessionID: session.ID,
		FileName:  session.FileName,
		Metadata:  session.Metadata,
		Scan:      session.Scan,
	})
}

// RedactHandler handles POST /api/sessions/{id}/redact.
// The redacted PDF is the response body; the report travels in X-Redaction-* headers.
func (h *SessionHandler) RedactHandler(w http.ResponseWriter, r *http.Request, id string) {
	var req models.RedactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	selections := req.Selections
	if req.UseDetected {
		session, err := h.sessions.Get(r.Context(), id)
		if err != nil {
			WriteServiceError(w, h.logger, err)
			return
		}
		if session.Scan != nil {
			selections = append(selections, models.SelectionsFromItems(session.Scan.Items)...)
		}
	}
	if len(selections) == 0 {
		WriteError(w, http.StatusBadRequest, "No selections to redact")
		return
	}

	out, report, err := h.sessions.Redact(r.Context(), id, selections)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="redacted.pdf"`)
	w.Header().Set("X-Redaction-Pages", strconv.Itoa(report.PagesRedacted))
	w.Header().Set("X-Redaction-Marks", strconv.Itoa(report.Marks))
	w.Header().Set("X-Redaction-Skipped", strconv.Itoa(len(report.Skipped)))
	w.Header().Set("X-Redaction-Truncated", strconv.Itoa(len(report.Truncated)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		h.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to write redacted document")
	}
}

// DeleteHandler handles DELETE /api/sessions/{id}
func (h *SessionHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.sessions.Close(r.Context(), id); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, "Session deleted")
}
