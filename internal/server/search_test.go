package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emltools/eml2pdf/internal/history"
)

func TestSearchHandler(t *testing.T) {
	s, store, _ := setupTestServer(t)

	history.RecordTestConversions(t, store, []*history.Conversion{
		history.CreateTestConversion("/mail/q1.eml", "Quarterly report", "alice@example.com"),
		history.CreateTestConversion("/mail/note.eml", "Holiday note", "bob@example.com"),
	})

	req := httptest.NewRequest("GET", "/search?q=quarterly", nil)
	w := httptest.NewRecorder()

	s.Search(w, req)

	assert.Equal(t, 200, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "Quarterly report")
	assert.Contains(t, body, "/conversions/1")
	assert.NotContains(t, body, "Holiday note")
}

func TestSearchHandlerNoResults(t *testing.T) {
	s, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/search?q=nonexistent", nil)
	w := httptest.NewRecorder()

	s.Search(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "No conversions found")
}

func TestSearchHandlerEmptyQueryListsRecent(t *testing.T) {
	s, store, _ := setupTestServer(t)

	history.RecordTestConversions(t, store, []*history.Conversion{
		history.CreateTestConversion("/mail/a.eml", "First", "alice@example.com"),
		history.CreateTestConversion("/mail/b.eml", "Second", "bob@example.com"),
	})

	req := httptest.NewRequest("GET", "/search", nil)
	w := httptest.NewRecorder()

	s.Search(w, req)

	assert.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "First")
	assert.Contains(t, body, "Second")
}

// TestSearchHandlerEscapesSnippets tests that mail-supplied text cannot smuggle
// markup through the search fragment while snippet highlights survive.
func TestSearchHandlerEscapesSnippets(t *testing.T) {
	s, store, _ := setupTestServer(t)

	history.RecordTestConversions(t, store, []*history.Conversion{
		history.CreateTestConversion("/mail/evil.eml",
			`<script>alert(1)</script> quarterly figures`, "mallory@example.com"),
	})

	req := httptest.NewRequest("GET", "/search?q=quarterly", nil)
	w := httptest.NewRecorder()

	s.Search(w, req)

	assert.Equal(t, 200, w.Code)
	body := w.Body.String()

	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "<mark>", "FTS highlight marks should survive escaping")
}

func TestEscapeSnippet(t *testing.T) {
	in := `see <b>bold</b> and <mark>target</mark> here`
	out := escapeSnippet(in)

	assert.Contains(t, out, "&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, out, "<mark>target</mark>")
	assert.NotContains(t, out, "<b>")
}
