package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultBin is the binary looked up on PATH when no explicit path is
// configured.
const DefaultBin = "wkhtmltopdf"

// ErrBinaryNotFound is returned by Probe when the configured binary cannot
// be located. Callers fall back to HTML output when they see it.
var ErrBinaryNotFound = errors.New("wkhtmltopdf binary not found")

// Renderer shells out to wkhtmltopdf to turn an assembled HTML document into
// a PDF. The zero value uses DefaultBin with no extra arguments.
type Renderer struct {
	// Bin is the wkhtmltopdf binary, a bare name resolved on PATH or an
	// absolute path.
	Bin string

	// ExtraArgs are appended verbatim after the fixed argument set, before
	// the input and output paths.
	ExtraArgs []string
}

// New returns a Renderer for the given binary; an empty bin means DefaultBin.
func New(bin string, extraArgs []string) *Renderer {
	return &Renderer{Bin: bin, ExtraArgs: extraArgs}
}

func (r *Renderer) bin() string {
	if r.Bin != "" {
		return r.Bin
	}
	return DefaultBin
}

// Probe checks that the renderer binary is available before any conversion
// work starts.
func (r *Renderer) Probe() error {
	if _, err := exec.LookPath(r.bin()); err != nil {
		return fmt.Errorf("%w: %q", ErrBinaryNotFound, r.bin())
	}
	return nil
}

// RenderPDF writes the document beside the output as an intermediate
// "<stem>.html", renders it, and removes the intermediate again. The A4
// viewport matches 300 dpi; the document is always UTF-8 by the time it
// gets here.
func (r *Renderer) RenderPDF(ctx context.Context, html []byte, outputPath string) error {
	htmlPath := stem(outputPath) + ".html"
	if err := os.WriteFile(htmlPath, html, 0644); err != nil {
		return fmt.Errorf("failed to write intermediate html: %w", err)
	}
	defer os.Remove(htmlPath)

	cmd := exec.CommandContext(ctx, r.bin(), r.buildArgs(htmlPath, outputPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("wkhtmltopdf failed: %w: %s", err, msg)
		}
		return fmt.Errorf("wkhtmltopdf failed: %w", err)
	}
	return nil
}

func (r *Renderer) buildArgs(htmlPath, outputPath string) []string {
	args := []string{
		"--viewport-size", "2480x3508",
		"--image-quality", "100",
		"--encoding", "UTF-8",
	}
	args = append(args, r.ExtraArgs...)
	return append(args, htmlPath, outputPath)
}

func stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
