package handlers

import (
	"net/http"

	"github.com/avery-cole/frontdesk/services/agenda-service/internal/stats"
)

// Stats serves GET /api/v1/stats?from=&to= over the current snapshot.
func (h *AgendaHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from, to, verr := parseRange(r)
	if !verr.Empty() {
		writeValidationError(w, verr)
		return
	}

	snap := h.board.Snapshot()
	writeJSON(w, http.StatusOK, statsResponse{
		From:                   from,
		To:                     to,
		NoShowRate:             stats.NoShowRate(snap, from, to),
		AverageDurationMinutes: stats.AverageDurationMinutes(snap, from, to),
		CountByStatus:          stats.CountByStatus(snap, from, to),
	})
}
