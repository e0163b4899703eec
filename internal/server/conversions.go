package server

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/emltools/eml2pdf/internal/attachment"
	"github.com/emltools/eml2pdf/internal/history"
)

// conversionFromRequest resolves the {id} route parameter to a conversion.
// A nil return means the response has already been written.
func (s *Server) conversionFromRequest(w http.ResponseWriter, r *http.Request) *history.Conversion {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversion ID", http.StatusBadRequest)
		return nil
	}

	conv, err := s.store.Get(id)
	if err != nil {
		s.logger.Error("failed to load conversion", "id", id, "error", err)
		http.Error(w, "Failed to load conversion", http.StatusInternalServerError)
		return nil
	}
	if conv == nil {
		http.Error(w, "Conversion not found", http.StatusNotFound)
		return nil
	}
	return conv
}

// ViewConversion handles displaying a single conversion
func (s *Server) ViewConversion(w http.ResponseWriter, r *http.Request) {
	conv := s.conversionFromRequest(w, r)
	if conv == nil {
		return
	}

	pageTitle := "Conversion - eml2pdf"
	if conv.Subject != "" {
		pageTitle = conv.Subject + " - eml2pdf"
	}

	data := map[string]interface{}{
		"PageTitle":   pageTitle,
		"Conversion":  conv,
		"Problems":    conv.ProblemList(),
		"Attachments": conv.AttachmentList(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "conversion.html", data); err != nil {
		s.logger.Error("template error", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// DownloadOutput serves the rendered output file of a conversion.
func (s *Server) DownloadOutput(w http.ResponseWriter, r *http.Request) {
	conv := s.conversionFromRequest(w, r)
	if conv == nil {
		return
	}
	if conv.Status != history.StatusConverted || conv.OutputPath == "" {
		http.Error(w, "No output for this conversion", http.StatusNotFound)
		return
	}

	path, err := s.store.ResolveOutputPath(filepath.FromSlash(conv.OutputPath))
	if err != nil {
		s.logger.Warn("refusing recorded output path", "path", conv.OutputPath, "error", err)
		http.Error(w, "Invalid output path", http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("output file unavailable", "path", path, "error", err)
		http.Error(w, "Output file missing", http.StatusNotFound)
		return
	}

	contentType := "application/pdf"
	if strings.EqualFold(filepath.Ext(path), ".html") {
		contentType = "text/html; charset=utf-8"
	}

	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{
			"filename": attachment.Sanitize(filepath.Base(path)),
		}))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	w.Write(data)
}

// PreviewConversion re-renders the conversion's source message and serves
// the sanitized document inline.
func (s *Server) PreviewConversion(w http.ResponseWriter, r *http.Request) {
	conv := s.conversionFromRequest(w, r)
	if conv == nil {
		return
	}

	// Mbox positions and moved files have no readable source anymore.
	data, err := os.ReadFile(conv.SourcePath)
	if err != nil {
		s.logger.Warn("source unavailable for preview", "path", conv.SourcePath, "error", err)
		http.Error(w, "Source file unavailable", http.StatusNotFound)
		return
	}

	doc, _, err := s.conv.Preview(data)
	if err != nil {
		s.logger.Error("preview failed", "path", conv.SourcePath, "error", err)
		http.Error(w, "Failed to render preview", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	io.WriteString(w, s.sanitizer.Sanitize(doc))
}
