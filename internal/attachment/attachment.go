package attachment

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/emltools/eml2pdf/internal/mimetree"
)

// fallbackName is used when sanitizing leaves nothing usable of a filename.
const fallbackName = "attachment.bin"

// File is one attachment ready to be written out.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Collect turns classified attachment nodes into files. Payloads are
// transfer-decoded; when decoding fails the raw bytes are kept, matching the
// classification that already flagged the part. Unnamed parts get a
// generated "nameless-" name with an extension guessed from the media type.
func Collect(nodes []*mimetree.Node) []File {
	files := make([]File, 0, len(nodes))
	for _, n := range nodes {
		data, err := n.DecodedBody()
		if err != nil {
			data = n.Raw
		}
		files = append(files, File{
			Name:     nameFor(n),
			MIMEType: n.MediaType(),
			Data:     data,
		})
	}
	return files
}

func nameFor(n *mimetree.Node) string {
	if n.Filename != "" {
		return Sanitize(n.Filename)
	}
	return "nameless-" + uuid.New().String()[:8] + extensionFor(n.MediaType())
}

// extensionFor guesses a file extension for a media type, "" when the
// platform's MIME tables know nothing about it.
func extensionFor(mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// Sanitize makes a mail-supplied filename safe to create: path components
// and control characters are stripped, quotes removed, length capped, and an
// empty result replaced with a fixed fallback. Mail gets to suggest a name,
// never a location.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)

	name = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 || r == '"' || r == '\'' {
			return -1
		}
		return r
	}, name)

	if len(name) > 255 {
		name = name[:255]
	}
	if name == "" || name == "." || name == ".." {
		return fallbackName
	}
	return name
}

// Write stores the files under dir, creating the directory when needed.
// Conflicting names get " (n)" inserted before the extension, counting both
// names written in this call and files already on disk. Returns the paths
// written, in input order.
func Write(dir string, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachments directory: %w", err)
	}

	used := make(map[string]bool, len(files))
	paths := make([]string, 0, len(files))
	for _, f := range files {
		name := uniqueName(dir, used, Sanitize(f.Name))
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, f.Data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write attachment %q: %w", name, err)
		}
		used[name] = true
		paths = append(paths, path)
	}
	return paths, nil
}

func uniqueName(dir string, used map[string]bool, name string) string {
	if !taken(dir, used, name) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if !taken(dir, used, candidate) {
			return candidate
		}
	}
}

func taken(dir string, used map[string]bool, name string) bool {
	if used[name] {
		return true
	}
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
