package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Crawl (seed intake and paper inspection)
	mux.HandleFunc("/api/crawl", s.app.CrawlHandler.StartCrawlHandler)    // POST - seed a crawl
	mux.HandleFunc("/api/papers/", s.app.CrawlHandler.PaperRoutesHandler) // GET /{id}, /{id}/status

	// API routes - Catalog search (seed picking)
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler)

	// API routes - Aggregates
	mux.HandleFunc("/api/stats", s.app.StatsHandler.GetStatsHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
