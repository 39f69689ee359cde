package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/middleware"
)

// AuditHistoryHandler handles GET /api/audit/{visitor_id}: the recorded
// decision trail for one visitor, newest first. Intended for operators,
// not for the docs site itself.
func (s *Server) AuditHistoryHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "audit_history"
	const method = "GET"

	if s.Audit == nil {
		s.Metrics.IncrementRequests(endpoint, method, "503")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "audit trail not configured", http.StatusServiceUnavailable)
		return
	}

	visitorID := mux.Vars(r)["visitor_id"]
	if visitorID == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "visitor_id required", http.StatusBadRequest)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.Audit.History(r.Context(), visitorID, limit)
	if err != nil {
		logger.Error("audit history query failed", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "audit history unavailable", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, entries)
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
