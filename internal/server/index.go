package server

import "net/http"

// Index handles the home page
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		s.logger.Error("failed to load stats", "error", err)
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	conversions, err := s.store.List(50, 0)
	if err != nil {
		s.logger.Error("failed to load conversions", "error", err)
		http.Error(w, "Failed to load conversions", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"PageTitle":   "Conversion History - eml2pdf",
		"Stats":       stats,
		"Conversions": conversions,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("template error", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
