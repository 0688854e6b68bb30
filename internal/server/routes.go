package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Reports
	mux.HandleFunc("/api/reports/generate", s.app.ReportHandler.GenerateHandler) // POST - create and enqueue
	mux.HandleFunc("/api/reports", s.app.ReportHandler.ListHandler)              // GET - list by user
	mux.HandleFunc("/api/reports/", s.app.ReportHandler.ReportRoutesHandler)     // GET /{id}, GET /{id}/status

	// API routes - Operational status
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler) // GET - gauges and version

	return mux
}
