package server

import (
	"fmt"
	"html"
	"net/http"
	"strings"
)

// Search handles search requests
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := s.store.Search(query, 50)
	if err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
		http.Error(w, fmt.Sprintf("Search failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Return HTML fragment for HTMX
	if len(results) == 0 {
		fmt.Fprintf(w, `
			<div class="text-center py-8 text-gray-500">
				<p>No conversions found</p>
			</div>`)
		return
	}

	for _, result := range results {
		subject := result.Subject
		if subject == "" {
			subject = "(No Subject)"
		}

		date := ""
		if result.CreatedAt.Valid {
			date = result.CreatedAt.Time.Format("Jan 2, 2006 15:04")
		}

		fmt.Fprintf(w, `
			<div class="bg-white rounded-lg shadow p-4 hover:shadow-md transition-shadow">
				<a href="/conversions/%d" class="block">
					<div class="flex justify-between items-start mb-2">
						<h3 class="text-lg font-semibold text-gray-900">%s</h3>
						<span class="text-sm text-gray-500">%s</span>
					</div>
					<p class="text-sm text-gray-600 mb-2">From: %s</p>
					<p class="text-sm text-gray-500 line-clamp-2">%s</p>
				</a>
			</div>`,
			result.ID,
			html.EscapeString(subject),
			date,
			html.EscapeString(result.Sender),
			escapeSnippet(result.Snippet),
		)
	}
}

// escapeSnippet escapes a search snippet while keeping the highlight marks
// it came with. The snippet body is mail-supplied text and must never reach
// the page unescaped.
func escapeSnippet(snippet string) string {
	escaped := html.EscapeString(snippet)
	escaped = strings.ReplaceAll(escaped, "&lt;mark&gt;", "<mark>")
	escaped = strings.ReplaceAll(escaped, "&lt;/mark&gt;", "</mark>")
	return escaped
}
