package localfs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Scratch holds temporarily downloaded attachments and media files.
// Everything under its base path is disposable between runs.
type Scratch struct {
	basePath string
}

func New(basePath string) (*Scratch, error) {
	if basePath == "" {
		basePath = "./data/downloads"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch dir: %w", err)
	}
	return &Scratch{basePath: abs}, nil
}

// Create opens a new scratch file and returns it with its full path.
func (s *Scratch) Create(key string) (*os.File, string, error) {
	path := filepath.Join(s.basePath, filepath.Base(key))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create scratch file: %w", err)
	}
	return f, path, nil
}

// Remove deletes a scratch file. Paths outside the scratch directory
// (local file:// test fixtures) are left untouched.
func (s *Scratch) Remove(path string) {
	if path == "" || !s.Contains(path) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("scratch_remove_failed", "path", path, "error", err)
	}
}

func (s *Scratch) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, s.basePath+string(os.PathSeparator))
}
