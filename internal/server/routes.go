package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.Handler)

	// API routes - job submission
	mux.HandleFunc("/api/discovery", s.app.DiscoveryHandler.SubmitHandler) // POST - submit discovery job
	mux.HandleFunc("/api/verify", s.app.DiscoveryHandler.VerifyHandler)    // POST - verify explicit emails
	mux.HandleFunc("/api/enrich", s.app.DiscoveryHandler.EnrichHandler)    // POST - enrich an earlier result
	mux.HandleFunc("/api/drafts", s.app.DiscoveryHandler.DraftHandler)     // POST - generate outreach draft

	// API routes - polling and threshold updates
	mux.HandleFunc("/api/discovery/", s.app.DiscoveryHandler.JobHandler) // GET /{id}, PATCH /{id}/threshold

	// API routes - system
	mux.HandleFunc("/api/status", s.app.StatusHandler.StatusHandler) // GET - queue stats + version

	return mux
}
