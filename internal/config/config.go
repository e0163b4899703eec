package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// Output settings
	OutputDir  string `yaml:"output_dir"`
	HTMLOutput bool   `yaml:"html_output"`

	// Rendering settings
	HideHeaders     bool     `yaml:"hide_headers"`
	WkhtmltopdfPath string   `yaml:"wkhtmltopdf_path"`
	ExtraArgs       []string `yaml:"extra_args"`

	// Attachment settings
	ExtractFiles  bool   `yaml:"extract_files"`
	AttachmentDir string `yaml:"attachment_dir"`

	// Parsing settings
	DefaultCharset string `yaml:"default_charset"`
	DetectCharset  bool   `yaml:"detect_charset"`
	MaxDepth       int    `yaml:"max_depth"`

	// Batch settings
	Workers int `yaml:"workers"`

	// History database settings
	HistoryPath string `yaml:"history_path"`

	// Server settings
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// Default returns default configuration
func Default() *Config {
	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	// Use ~/.eml2pdf for data directory
	dataDir := filepath.Join(homeDir, ".eml2pdf")

	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	return &Config{
		OutputDir:      ".",
		DefaultCharset: "utf-8",
		DetectCharset:  true,
		MaxDepth:       100,
		Workers:        workers,
		HistoryPath:    filepath.Join(dataDir, "history.db"),
		Host:           "localhost",
		Port:           "8080",
	}
}

// Load returns the default configuration overlaid with the YAML file at
// path. An empty path means defaults only; a missing file is an error so
// that a typo in --config does not silently run with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail in confusing places
// much later.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.DefaultCharset == "" {
		return fmt.Errorf("default charset must not be empty")
	}
	if c.Port != "" {
		port, err := strconv.Atoi(c.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", c.Port)
		}
	}
	return nil
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// URL returns the full server URL
func (c *Config) URL() string {
	return "http://" + c.Address()
}
