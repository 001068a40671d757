// -----------------------------------------------------------------------
// Vault Writer - Atomic markdown file output for the knowledge base
// -----------------------------------------------------------------------

package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
)

const maxFilenameLen = 100

// Writer renders papers into an Obsidian-style vault: one markdown file
// per paper under papers/, a README.md index, and a one-time viewer
// configuration.
type Writer struct {
	path   string
	logger arbor.ILogger
}

// NewWriter creates the vault directory layout.
func NewWriter(cfg *common.VaultConfig, logger arbor.ILogger) (*Writer, error) {
	if err := os.MkdirAll(filepath.Join(cfg.Path, "papers"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}
	return &Writer{path: cfg.Path, logger: logger}, nil
}

// Path returns the vault root.
func (w *Writer) Path() string {
	return w.path
}

// PaperFilename returns the vault-relative filename for a paper id.
func PaperFilename(paperID string) string {
	return SanitizeFilename(paperID) + ".md"
}

// SanitizeFilename replaces filesystem-hostile characters with
// underscores and caps the length.
func SanitizeFilename(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, name)

	if len(sanitized) > maxFilenameLen {
		sanitized = sanitized[:maxFilenameLen]
	}
	return sanitized
}

// writeAtomic writes content via a tempfile in the target directory and
// renames it into place, so readers never observe a partial file.
func (w *Writer) writeAtomic(relPath string, content []byte) error {
	target := filepath.Join(w.path, relPath)

	tmp, err := os.CreateTemp(filepath.Dir(target), ".refnet-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", relPath, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s: %w", relPath, err)
	}
	return nil
}
