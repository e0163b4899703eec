package scanner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one candidate input found during a scan
type Entry struct {
	Path string // relative to the scan root, forward slashes
	Size int64
}

// Result holds everything one recursive scan found
type Result struct {
	Messages  []Entry // .eml files
	Mailboxes []Entry // .mbox files
}

// Scanner scans directories for convertible mail files
type Scanner struct {
	rootPath string
	logger   *slog.Logger
}

// New creates a new scanner for the given root path
func New(rootPath string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		rootPath: rootPath,
		logger:   logger,
	}
}

// Scan recursively collects .eml and .mbox files and returns paths relative
// to the root. Unreadable entries below the root are logged and skipped so
// one bad directory does not abort the walk.
func (s *Scanner) Scan() (*Result, error) {
	result := &Result{}

	// Get absolute path of root for reliable relative path calculation
	absRoot, err := filepath.Abs(s.rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute root path: %w", err)
	}

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// A missing or unreadable root is fatal, anything deeper is skipped
			if path == absRoot {
				return err
			}
			s.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".eml" && ext != ".mbox" {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}

		// Normalize to forward slashes so stored paths stay portable
		entry := Entry{Path: filepath.ToSlash(relPath), Size: info.Size()}
		if ext == ".eml" {
			result.Messages = append(result.Messages, entry)
		} else {
			result.Mailboxes = append(result.Mailboxes, entry)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	return result, nil
}
