package server

import (
	"fmt"
	"net/http"
)

// maxUploadSize bounds message uploads. Real mail tops out far below this.
const maxUploadSize = 50 << 20

// Convert handles a single uploaded message.
func (s *Server) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("message")
	if err != nil {
		http.Error(w, "Missing message file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := s.conv.ConvertReader(r.Context(), file, header.Filename, "")
	if err != nil {
		s.logger.Error("upload conversion failed", "filename", header.Filename, "error", err)
		http.Error(w, fmt.Sprintf("Conversion failed: %v", err), http.StatusInternalServerError)
		return
	}

	if res.HistoryID != 0 {
		http.Redirect(w, r, fmt.Sprintf("/conversions/%d", res.HistoryID), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
