// -----------------------------------------------------------------------
// Stats Handler - Graph and queue aggregates over HTTP
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/interfaces"
)

// StatsHandler reports graph totals and queue depths.
type StatsHandler struct {
	papers interfaces.PaperStorage
	queue  interfaces.QueueStorage
	logger arbor.ILogger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(papers interfaces.PaperStorage, queue interfaces.QueueStorage, logger arbor.ILogger) *StatsHandler {
	return &StatsHandler{papers: papers, queue: queue, logger: logger}
}

// GetStatsHandler handles GET /api/stats
func (h *StatsHandler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := h.papers.GetStats(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to load graph stats")
		WriteError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	queueCounts, err := h.queue.CountByStatus(r.Context(), "")
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count queue items")
		WriteError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_papers":    stats.TotalPapers,
		"total_citations": stats.TotalCitations,
		"papers_by_year":  stats.YearHistogram,
		"queue":           queueCounts,
	})
}
