package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emltools/eml2pdf/internal/config"
	"github.com/emltools/eml2pdf/internal/converter"
	"github.com/emltools/eml2pdf/internal/history"
)

// newTestPipeline builds an HTML-mode converter with an in-memory history
// store, so no wkhtmltopdf binary is needed.
func newTestPipeline(t *testing.T) (*converter.Converter, *history.Store, *config.Config) {
	t.Helper()

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.HTMLOutput = true
	cfg.ExtractFiles = true
	cfg.Workers = 2

	store, err := history.Open(":memory:", cfg.OutputDir)
	require.NoError(t, err, "Should open history store")
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	conv := converter.New(cfg, logger).WithHistory(store)

	return conv, store, cfg
}

// TestEndToEndWorkflow tests the complete workflow from scanning a directory
// to serving the recorded conversion back out of history.
func TestEndToEndWorkflow(t *testing.T) {
	conv, store, cfg := newTestPipeline(t)

	// Step 1: set up a source directory with the sample message
	sourceDir := t.TempDir()
	data, err := os.ReadFile(filepath.Join("testdata", "sample.eml"))
	require.NoError(t, err, "Should read test fixture")
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "sample.eml"), data, 0644))

	// Step 2: verify the store starts empty
	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalConversions, "Store should start empty")

	// Step 3: convert the directory
	result, err := conv.ConvertDir(context.Background(), sourceDir, nil)
	require.NoError(t, err, "Should convert directory")

	assert.Equal(t, 1, result.TotalFound)
	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	// Step 4: the HTML output prefers the html alternative and carries the
	// header banner
	outPath := filepath.Join(cfg.OutputDir, "sample.html")
	doc, err := os.ReadFile(outPath)
	require.NoError(t, err, "Should write output file")

	assert.Contains(t, string(doc), "<b>HTML</b>")
	assert.NotContains(t, string(doc), "plain text rendering", "plain alternative should lose")
	assert.Contains(t, string(doc), "Integration Test Message")
	assert.Contains(t, string(doc), "John Doe &lt;john.doe@example.com&gt;")

	// Step 5: the attachment is extracted next to the output
	attPath := filepath.Join(cfg.OutputDir, "sample-attachments", "readme.txt")
	attData, err := os.ReadFile(attPath)
	require.NoError(t, err, "Should extract attachment")
	assert.Contains(t, string(attData), "test attachment file")

	// Step 6: the conversion is recorded
	conversions, err := store.List(10, 0)
	require.NoError(t, err)
	require.Len(t, conversions, 1)

	rec := conversions[0]
	assert.Equal(t, "Integration Test Message", rec.Subject)
	assert.Equal(t, "John Doe <john.doe@example.com>", rec.Sender)
	assert.Equal(t, "sample.html", rec.OutputPath, "output recorded relative to the output dir")
	assert.Equal(t, history.StatusConverted, rec.Status)
	assert.Equal(t, 1, rec.AttachmentCount)
	assert.True(t, rec.MessageDate.Valid, "message date should be recorded")
	assert.Greater(t, rec.OutputSize, int64(0))

	// Step 7: search finds it with highlighting
	searchResults, err := store.Search("integration", 10)
	require.NoError(t, err)
	require.Len(t, searchResults, 1)
	assert.Equal(t, rec.ID, searchResults[0].ID)
	assert.Contains(t, searchResults[0].Snippet, "<mark>")

	// Step 8: retrieval by ID
	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Subject, got.Subject)
	assert.Equal(t, []string{"sample-attachments/readme.txt"}, got.AttachmentList())

	// Step 9: the recorded output path resolves inside the output directory
	resolved, err := store.ResolveOutputPath(got.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, outPath, resolved)

	// Step 10: a second run skips the already converted message
	result2, err := conv.ConvertDir(context.Background(), sourceDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result2.Converted, "Should not convert duplicates")
	assert.Equal(t, 1, result2.Skipped)

	stats, err = store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalConversions, "Count should remain same after re-run")

	// Step 11: both runs are recorded as batches
	batches, err := store.ListBatches(10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, history.ModeDir, batches[0].Mode)
	assert.Equal(t, 1, batches[0].Skipped)
	assert.True(t, batches[0].FinishedAt.Valid)
}

// TestWorkflow_MultipleMessages tests batch conversion and history queries
// across several messages.
func TestWorkflow_MultipleMessages(t *testing.T) {
	conv, store, _ := newTestPipeline(t)

	sourceDir := t.TempDir()
	messages := []struct {
		filename string
		content  string
	}{
		{
			filename: "email1.eml",
			content: `From: sender1@test.com
To: recipient@test.com
Subject: First Email
Date: Mon, 1 Jan 2024 10:00:00 +0000
Content-Type: text/plain; charset=utf-8

This is the first test email.
`,
		},
		{
			filename: "email2.eml",
			content: `From: sender2@test.com
To: recipient@test.com
Subject: Second Email
Date: Mon, 1 Jan 2024 11:00:00 +0000
Content-Type: text/plain; charset=utf-8

This is the second test email.
`,
		},
		{
			filename: "email3.eml",
			content: `From: sender3@test.com
To: recipient@test.com
Subject: Third Email
Date: Mon, 1 Jan 2024 12:00:00 +0000
Content-Type: text/plain; charset=utf-8

This is the third test email.
`,
		},
	}

	for _, m := range messages {
		path := filepath.Join(sourceDir, m.filename)
		require.NoError(t, os.WriteFile(path, []byte(m.content), 0644))
	}

	var lastDone, lastTotal int
	result, err := conv.ConvertDir(context.Background(), sourceDir, func(done, total int, path string) {
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Converted, "Should convert 3 messages")
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, lastDone, "Progress should reach the end")
	assert.Equal(t, 3, lastTotal)

	// Pagination
	page1, err := store.List(2, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 2, "First page should have 2 conversions")

	page2, err := store.List(2, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 1, "Second page should have 1 conversion")

	// Search narrows to one subject
	results, err := store.Search("first", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "First Email", results[0].Subject)

	// All three senders are distinct
	senders, err := store.UniqueSenders(10)
	require.NoError(t, err)
	assert.Len(t, senders, 3)
}

// TestWorkflow_ProblemRecovery tests that a degraded message still converts,
// with the recovery notes recorded in history.
func TestWorkflow_ProblemRecovery(t *testing.T) {
	conv, store, cfg := newTestPipeline(t)

	// A broken base64 attachment must not stop the conversion.
	degraded := `From: sender@test.com
To: recipient@test.com
Subject: Degraded Message
Content-Type: multipart/mixed; boundary="mix"

--mix
Content-Type: text/plain; charset=utf-8

Body survives.
--mix
Content-Type: application/octet-stream
Content-Disposition: attachment; filename="blob.bin"
Content-Transfer-Encoding: base64

!!!not-base64!!!
--mix--
`
	sourceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "degraded.eml"), []byte(degraded), 0644))

	result, err := conv.ConvertDir(context.Background(), sourceDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Converted, "Degraded message should still convert")
	assert.Equal(t, 0, result.Failed)

	doc, err := os.ReadFile(filepath.Join(cfg.OutputDir, "degraded.html"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Body survives")

	conversions, err := store.List(10, 0)
	require.NoError(t, err)
	require.Len(t, conversions, 1)
	assert.Equal(t, history.StatusConverted, conversions[0].Status)

	problems := conversions[0].ProblemList()
	require.NotEmpty(t, problems, "Recovery should be recorded")
	assert.Contains(t, problems[0], "decode failed")
}

// TestWorkflow_ErrorRecovery tests that one failing conversion does not stop
// the batch and is recorded as failed.
func TestWorkflow_ErrorRecovery(t *testing.T) {
	conv, store, cfg := newTestPipeline(t)

	valid := `From: sender@test.com
To: recipient@test.com
Subject: Valid Email
Date: Mon, 1 Jan 2024 10:00:00 +0000
Content-Type: text/plain; charset=utf-8

This is a valid email.
`
	sourceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "valid.eml"), []byte(valid), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(sourceDir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "sub", "blocked.eml"), []byte(valid), 0644))

	// A file squatting on the mirrored output subdirectory makes that one
	// conversion fail to write.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputDir, "sub"), []byte("in the way"), 0644))

	result, err := conv.ConvertDir(context.Background(), sourceDir, nil)
	require.NoError(t, err, "Batch should complete despite the failure")

	assert.Equal(t, 2, result.TotalFound)
	assert.Equal(t, 1, result.Converted, "Valid message should convert")
	assert.Equal(t, 1, result.Failed, "Blocked message should fail")

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 1, stats.Failed)

	conversions, err := store.List(10, 0)
	require.NoError(t, err)
	for _, c := range conversions {
		if c.Status == history.StatusFailed {
			assert.NotEmpty(t, c.Error, "Failure reason should be recorded")
		}
	}
}
