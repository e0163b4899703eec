package history

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Conversion status values.
const (
	StatusConverted = "converted"
	StatusFailed    = "failed"
)

// NullTime handles both string and time.Time values coming back from SQLite
type NullTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner for NullTime
func (nt *NullTime) Scan(value interface{}) error {
	if value == nil {
		nt.Time, nt.Valid = time.Time{}, false
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		nt.Time, nt.Valid = v, true
		return nil
	case string:
		// Computed columns and rows written by other tools come back as
		// strings in one of the usual SQLite spellings
		formats := []string{
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05.999999999 -0700 -0700", // Go's time.String() with duplicate zone
			"2006-01-02 15:04:05 -0700 -0700",
			"2006-01-02 15:04:05.999999999 -0700 MST",
			"2006-01-02 15:04:05 -0700 MST",
			"2006-01-02 15:04:05.999999999 -0700",
			"2006-01-02 15:04:05 -0700",
			"2006-01-02 15:04:05.999999999",
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05Z",
		}

		var t time.Time
		var err error
		for _, format := range formats {
			t, err = time.Parse(format, v)
			if err == nil {
				nt.Time, nt.Valid = t, true
				return nil
			}
		}

		return fmt.Errorf("failed to parse time string %q: %w", v, err)
	default:
		return fmt.Errorf("unsupported Scan type for NullTime: %T", value)
	}
}

// Value implements driver.Valuer for NullTime
func (nt NullTime) Value() (driver.Value, error) {
	if !nt.Valid {
		return nil, nil
	}
	return nt.Time, nil
}

// Conversion is one recorded conversion attempt
type Conversion struct {
	ID              int64
	SourcePath      string
	SourceSHA256    string
	OutputPath      string // relative to the store's output directory
	Subject         string
	Sender          string
	MessageDate     NullTime
	Status          string // StatusConverted or StatusFailed
	Error           string
	Problems        string // newline-separated recovery notes
	AttachmentPaths string // newline-separated relative paths
	DurationMS      int64
	AttachmentCount int
	OutputSize      int64
	BatchID         sql.NullInt64
	CreatedAt       NullTime
}

// ProblemList splits the recorded problems into a slice
func (c *Conversion) ProblemList() []string {
	return splitLines(c.Problems)
}

// AttachmentList splits the recorded attachment paths into a slice
func (c *Conversion) AttachmentList() []string {
	return splitLines(c.AttachmentPaths)
}

func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, "\n")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// Record inserts a finished conversion and returns its ID
func (s *Store) Record(c *Conversion) (int64, error) {
	result, err := s.Exec(`
		INSERT INTO conversions (
			source_path, source_sha256, output_path, subject, sender,
			message_date, status, error, problems, attachment_paths,
			duration_ms, attachment_count, output_size, batch_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.SourcePath, c.SourceSHA256, c.OutputPath, c.Subject, c.Sender,
		c.MessageDate, c.Status, c.Error, c.Problems, c.AttachmentPaths,
		c.DurationMS, c.AttachmentCount, c.OutputSize, c.BatchID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record conversion: %w", err)
	}

	return result.LastInsertId()
}

// Get retrieves a conversion by its ID, or nil when no such row exists
func (s *Store) Get(id int64) (*Conversion, error) {
	c := &Conversion{}
	err := s.QueryRow(`
		SELECT id, source_path, source_sha256, output_path, subject, sender,
		       message_date, status, error, problems, attachment_paths,
		       duration_ms, attachment_count, output_size, batch_id, created_at
		FROM conversions WHERE id = ?
	`, id).Scan(
		&c.ID, &c.SourcePath, &c.SourceSHA256, &c.OutputPath, &c.Subject, &c.Sender,
		&c.MessageDate, &c.Status, &c.Error, &c.Problems, &c.AttachmentPaths,
		&c.DurationMS, &c.AttachmentCount, &c.OutputSize, &c.BatchID, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion: %w", err)
	}
	return c, nil
}

// List retrieves the most recent conversions with pagination
func (s *Store) List(limit, offset int) ([]*Conversion, error) {
	rows, err := s.Query(`
		SELECT id, source_path, source_sha256, output_path, subject, sender,
		       message_date, status, error, problems, attachment_paths,
		       duration_ms, attachment_count, output_size, batch_id, created_at
		FROM conversions
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	defer rows.Close()

	return scanConversions(rows)
}

func scanConversions(rows *sql.Rows) ([]*Conversion, error) {
	var conversions []*Conversion
	for rows.Next() {
		c := &Conversion{}
		err := rows.Scan(
			&c.ID, &c.SourcePath, &c.SourceSHA256, &c.OutputPath, &c.Subject, &c.Sender,
			&c.MessageDate, &c.Status, &c.Error, &c.Problems, &c.AttachmentPaths,
			&c.DurationMS, &c.AttachmentCount, &c.OutputSize, &c.BatchID, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		conversions = append(conversions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversions: %w", err)
	}

	return conversions, nil
}

// Count returns the total number of recorded conversions
func (s *Store) Count() (int, error) {
	var count int
	err := s.QueryRow("SELECT COUNT(*) FROM conversions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversions: %w", err)
	}
	return count, nil
}

// SourceExists reports whether a source with the given content hash has
// already been converted successfully. Failed attempts do not count, so a
// rerun picks them up again.
func (s *Store) SourceExists(sha256Hex string) (bool, error) {
	var exists bool
	err := s.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM conversions WHERE source_sha256 = ? AND status = ?)",
		sha256Hex, StatusConverted,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source existence: %w", err)
	}
	return exists, nil
}

// UniqueSenders retrieves distinct sender addresses ordered by how many
// conversions each produced
func (s *Store) UniqueSenders(limit int) ([]string, error) {
	rows, err := s.Query(`
		SELECT sender, COUNT(*) as conversion_count
		FROM conversions
		WHERE sender != ''
		GROUP BY sender
		ORDER BY conversion_count DESC, sender ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique senders: %w", err)
	}
	defer rows.Close()

	var senders []string
	for rows.Next() {
		var sender string
		var count int
		if err := rows.Scan(&sender, &count); err != nil {
			return nil, fmt.Errorf("failed to scan sender: %w", err)
		}
		senders = append(senders, sender)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating senders: %w", err)
	}

	return senders, nil
}

// Stats holds history statistics
type Stats struct {
	TotalConversions int
	Converted        int
	Failed           int
	TotalOutputSize  int64
	LastConversion   time.Time
}

// GetStats returns current history statistics
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := s.QueryRow("SELECT COUNT(*) FROM conversions").Scan(&stats.TotalConversions)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}

	err = s.QueryRow("SELECT COUNT(*) FROM conversions WHERE status = ?", StatusConverted).Scan(&stats.Converted)
	if err != nil {
		return nil, fmt.Errorf("failed to count converted: %w", err)
	}

	err = s.QueryRow("SELECT COUNT(*) FROM conversions WHERE status = ?", StatusFailed).Scan(&stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to count failed: %w", err)
	}

	err = s.QueryRow("SELECT COALESCE(SUM(output_size), 0) FROM conversions WHERE status = ?", StatusConverted).Scan(&stats.TotalOutputSize)
	if err != nil {
		return nil, fmt.Errorf("failed to sum output size: %w", err)
	}

	var last NullTime
	err = s.QueryRow("SELECT MAX(created_at) FROM conversions").Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last conversion time: %w", err)
	}
	if last.Valid {
		stats.LastConversion = last.Time
	}

	return stats, nil
}
