// -----------------------------------------------------------------------
// Crawl Handler - Seed intake and per-paper progress over HTTP
// -----------------------------------------------------------------------

package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/ingress"
	"github.com/ternarybob/refnet/internal/interfaces"
)

// CrawlHandler handles seed submission and paper inspection.
type CrawlHandler struct {
	ingress *ingress.Service
	papers  interfaces.PaperStorage
	logger  arbor.ILogger
}

// NewCrawlHandler creates a new CrawlHandler.
func NewCrawlHandler(svc *ingress.Service, papers interfaces.PaperStorage, logger arbor.ILogger) *CrawlHandler {
	return &CrawlHandler{
		ingress: svc,
		papers:  papers,
		logger:  logger,
	}
}

type startCrawlRequest struct {
	SeedID  string `json:"seed_id"`
	MaxHops int    `json:"max_hops"`
}

// StartCrawlHandler handles POST /api/crawl
func (h *CrawlHandler) StartCrawlHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req startCrawlRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.SeedID == "" {
		WriteError(w, http.StatusBadRequest, "seed_id is required")
		return
	}

	taskID, err := h.ingress.StartCrawl(r.Context(), req.SeedID, req.MaxHops)
	if err != nil {
		h.logger.Warn().Err(err).Str("seed_id", req.SeedID).Msg("Failed to start crawl")
		WriteError(w, http.StatusInternalServerError, "Failed to start crawl")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"paper_id": req.SeedID,
		"task_id":  taskID,
	})
}

// PaperRoutesHandler dispatches GET /api/papers/{id} and
// GET /api/papers/{id}/status.
func (h *CrawlHandler) PaperRoutesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/papers/")
	paperID, tail, _ := strings.Cut(rest, "/")
	if paperID == "" {
		WriteError(w, http.StatusBadRequest, "paper id is required")
		return
	}

	switch tail {
	case "":
		h.getPaper(w, r, paperID)
	case "status":
		h.getStatus(w, r, paperID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *CrawlHandler) getPaper(w http.ResponseWriter, r *http.Request, paperID string) {
	paper, err := h.papers.GetPaper(r.Context(), paperID)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, "Paper not found")
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("paper_id", paperID).Msg("Failed to load paper")
		WriteError(w, http.StatusInternalServerError, "Failed to load paper")
		return
	}
	WriteJSON(w, http.StatusOK, paper)
}

func (h *CrawlHandler) getStatus(w http.ResponseWriter, r *http.Request, paperID string) {
	status, err := h.ingress.Status(r.Context(), paperID)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, "Paper not found")
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("paper_id", paperID).Msg("Failed to load paper status")
		WriteError(w, http.StatusInternalServerError, "Failed to load paper status")
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
