package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/common"
)

// SystemHandler serves health and version information
type SystemHandler struct {
	aiEnabled bool
	logger    arbor.ILogger
}

// NewSystemHandler creates a new SystemHandler. aiEnabled reports whether
// an AI detector is configured for this process.
func NewSystemHandler(aiEnabled bool, logger arbor.ILogger) *SystemHandler {
	return &SystemHandler{
		aiEnabled: aiEnabled,
		logger:    logger,
	}
}

// HealthHandler handles GET /api/health
func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"ai_enabled": h.aiEnabled,
	})
}

// VersionHandler handles GET /api/version
func (h *SystemHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}
