package history

import (
	"fmt"
	"strings"
)

// SearchResult is a conversion with a match snippet
type SearchResult struct {
	Conversion
	Snippet string
}

// Search performs a full-text search over subject, sender and source path
// using FTS5. An empty query returns the most recent conversions instead.
func (s *Store) Search(query string, limit int) ([]*SearchResult, error) {
	if query == "" {
		conversions, err := s.List(limit, 0)
		if err != nil {
			return nil, err
		}

		results := make([]*SearchResult, len(conversions))
		for i, c := range conversions {
			results[i] = &SearchResult{
				Conversion: *c,
				Snippet:    truncateText(c.Subject, 200),
			}
		}
		return results, nil
	}

	// Each term becomes a quoted prefix phrase, so addresses and paths
	// survive the FTS5 query parser: alice@example.com -> "alice@example.com"*
	terms := strings.Fields(query)
	fuzzyTerms := make([]string, len(terms))
	for i, term := range terms {
		term = strings.ReplaceAll(term, `"`, `""`)
		fuzzyTerms[i] = `"` + term + `"*`
	}
	fuzzyQuery := strings.Join(fuzzyTerms, " ")

	// The -1 column index lets snippet() pick whichever column matched
	rows, err := s.Query(`
		SELECT
			c.id, c.source_path, c.source_sha256, c.output_path, c.subject, c.sender,
			c.message_date, c.status, c.error, c.problems, c.attachment_paths,
			c.duration_ms, c.attachment_count, c.output_size, c.batch_id, c.created_at,
			snippet(conversions_fts, -1, '<mark>', '</mark>', '...', 32) as snippet
		FROM conversions c
		JOIN conversions_fts ON c.id = conversions_fts.rowid
		WHERE conversions_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, fuzzyQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search conversions: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		result := &SearchResult{}
		err := rows.Scan(
			&result.ID, &result.SourcePath, &result.SourceSHA256, &result.OutputPath, &result.Subject, &result.Sender,
			&result.MessageDate, &result.Status, &result.Error, &result.Problems, &result.AttachmentPaths,
			&result.DurationMS, &result.AttachmentCount, &result.OutputSize, &result.BatchID, &result.CreatedAt,
			&result.Snippet,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, result)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	return results, nil
}

// truncateText truncates text to maxLen characters
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
