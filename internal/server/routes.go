package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Sessions (upload + scan, review, redact, delete)
	mux.HandleFunc("/api/sessions", s.handleSessionsRoute)               // POST - upload and scan
	mux.HandleFunc("/api/sessions/", s.app.SessionHandler.SessionRoutes) // GET/DELETE /{id}, POST /{id}/redact

	// API routes - System
	mux.HandleFunc("/api/health", s.app.SystemHandler.HealthHandler)   // GET - liveness
	mux.HandleFunc("/api/version", s.app.SystemHandler.VersionHandler) // GET - build information

	return mux
}

// handleSessionsRoute routes the sessions collection
func (s *Server) handleSessionsRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodPost: s.app.SessionHandler.UploadHandler,
	})
}
