package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Senders handles autocomplete requests for sender addresses
func (s *Server) Senders(w http.ResponseWriter, r *http.Request) {
	// Parse limit parameter (default 100)
	limitParam := r.URL.Query().Get("limit")
	limit := 100
	if limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	senders, err := s.store.UniqueSenders(limit)
	if err != nil {
		s.logger.Error("failed to load senders", "error", err)
		http.Error(w, "Failed to load senders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(senders); err != nil {
		s.logger.Error("failed to encode senders", "error", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
