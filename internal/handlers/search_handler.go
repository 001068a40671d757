// -----------------------------------------------------------------------
// Search Handler - Catalog seed lookup over HTTP
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/ingress"
)

// SearchHandler proxies free-text catalog searches used to pick a seed.
type SearchHandler struct {
	ingress *ingress.Service
	logger  arbor.ILogger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(svc *ingress.Service, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{ingress: svc, logger: logger}
}

// SearchHandler handles GET /api/search?q=...&limit=...
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		WriteError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	results, err := h.ingress.Search(r.Context(), query, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("query", query).Msg("Catalog search failed")
		WriteError(w, http.StatusBadGateway, "Catalog search failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}
