package server

import (
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/emltools/eml2pdf/internal/config"
	"github.com/emltools/eml2pdf/internal/converter"
	"github.com/emltools/eml2pdf/internal/history"
	"github.com/emltools/eml2pdf/web"
)

// Server holds all HTTP handlers and their dependencies
type Server struct {
	store     *history.Store
	conv      *converter.Converter
	cfg       *config.Config
	logger    *slog.Logger
	templates *template.Template
	sanitizer *bluemonday.Policy
	batch     *batchState
}

// New creates a new Server instance. A nil logger falls back to
// slog.Default.
func New(store *history.Store, conv *converter.Converter, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	// Previews show mail-supplied HTML; the policy strips scripting while
	// keeping inline images that were rewritten to data URIs.
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowDataURIImages()

	return &Server{
		store:     store,
		conv:      conv,
		cfg:       cfg,
		logger:    logger,
		sanitizer: sanitizer,
		batch:     &batchState{},
	}
}

// LoadTemplates loads HTML templates from embedded filesystem
func (s *Server) LoadTemplates(embeddedFiles embed.FS) error {
	tmpl, err := template.ParseFS(embeddedFiles,
		"templates/*.html",
		"templates/components/*.html",
	)
	if err != nil {
		return err
	}
	s.templates = tmpl
	return nil
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", s.Index)
	r.Get("/search", s.Search)
	r.Post("/convert", s.Convert)
	r.Get("/conversions/{id}", s.ViewConversion)
	r.Get("/conversions/{id}/download", s.DownloadOutput)
	r.Get("/conversions/{id}/preview", s.PreviewConversion)
	r.Get("/api/senders", s.Senders)
	r.Post("/batch", s.StartBatch)
	r.Get("/batch/progress", s.BatchProgressSSE)

	staticFS, err := fs.Sub(web.Assets, "static")
	if err != nil {
		s.logger.Error("failed to mount static assets", "error", err)
	} else {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	return r
}
