package history

import (
	"database/sql"
	"fmt"
)

// Batch modes.
const (
	ModeDir  = "dir"
	ModeMbox = "mbox"
)

// Batch is one directory or mbox conversion run
type Batch struct {
	ID         int64
	RootPath   string
	Mode       string // ModeDir or ModeMbox
	TotalFound int
	Converted  int
	Skipped    int
	Failed     int
	StartedAt  NullTime
	FinishedAt NullTime
}

// CreateBatch opens a new batch record and returns its ID
func (s *Store) CreateBatch(rootPath, mode string) (int64, error) {
	result, err := s.Exec(
		"INSERT INTO batches (root_path, mode) VALUES (?, ?)",
		rootPath, mode,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create batch: %w", err)
	}

	return result.LastInsertId()
}

// FinishBatch stores the final counts and stamps the batch as finished
func (s *Store) FinishBatch(id int64, totalFound, converted, skipped, failed int) error {
	result, err := s.Exec(`
		UPDATE batches
		SET total_found = ?, converted = ?, skipped = ?, failed = ?,
		    finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, totalFound, converted, skipped, failed, id)
	if err != nil {
		return fmt.Errorf("failed to finish batch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("batch not found")
	}

	return nil
}

// GetBatch retrieves a batch by its ID, or nil when no such row exists
func (s *Store) GetBatch(id int64) (*Batch, error) {
	b := &Batch{}
	err := s.QueryRow(`
		SELECT id, root_path, mode, total_found, converted, skipped, failed,
		       started_at, finished_at
		FROM batches WHERE id = ?
	`, id).Scan(
		&b.ID, &b.RootPath, &b.Mode, &b.TotalFound, &b.Converted, &b.Skipped, &b.Failed,
		&b.StartedAt, &b.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return b, nil
}

// ListBatches retrieves the most recent batches
func (s *Store) ListBatches(limit int) ([]*Batch, error) {
	rows, err := s.Query(`
		SELECT id, root_path, mode, total_found, converted, skipped, failed,
		       started_at, finished_at
		FROM batches
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		b := &Batch{}
		err := rows.Scan(
			&b.ID, &b.RootPath, &b.Mode, &b.TotalFound, &b.Converted, &b.Skipped, &b.Failed,
			&b.StartedAt, &b.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	return batches, nil
}
