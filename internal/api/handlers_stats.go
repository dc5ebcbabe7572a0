package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.models == nil || s.models.Stats() == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	stats := s.models.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"default_model": s.models.Default(),
		"stats":         stats.Snapshot(),
		"by_model":      stats.ByModel(),
		"queue_depth":   s.orchestrator.QueueDepth(),
	})
}
