package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrPathTraversal is returned when a stored output path would resolve
// outside the store's output directory.
var ErrPathTraversal = errors.New("path traversal detected")

// Store records finished conversions in a SQLite database.
type Store struct {
	*sql.DB
	outputDir string
}

// Open opens a connection to the SQLite history database and initializes the
// schema. Relative output paths recorded in the store resolve against outputDir.
func Open(dbPath, outputDir string) (*Store, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The _time_format=sqlite parameter tells the driver to parse RFC3339 timestamps
	dsn := dbPath + "?_time_format=sqlite"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1) // SQLite works best with single connection
	sqlDB.SetMaxIdleConns(1)

	store := &Store{DB: sqlDB, outputDir: outputDir}

	if err := store.initSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all tables, indexes, and triggers
func (s *Store) initSchema() error {
	_, err := s.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.DB.Close()
}

// ResolveOutputPath resolves a stored relative path against the output
// directory. Absolute paths and paths that climb out of the directory are
// rejected, so a tampered database row cannot point the download handler at
// arbitrary files.
func (s *Store) ResolveOutputPath(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: absolute path %q", ErrPathTraversal, relPath)
	}

	cleaned := filepath.Clean(relPath)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, relPath)
	}

	return filepath.Join(s.outputDir, cleaned), nil
}
