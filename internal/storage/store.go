// Package storage reads and writes whole documents as text. Writes are
// atomic: the new text goes to a temporary file in the same directory which
// is then renamed over the original, so readers never see a partial page.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// ErrNotExist is returned by Read when the document file is missing
var ErrNotExist = errors.New("storage: document does not exist")

const defaultMode fs.FileMode = 0o644

// Store is a filesystem document store. The zero value is ready to use.
type Store struct {
	// Root, when set, resolves relative paths against it
	Root string
}

// New creates a store rooted at dir
func New(dir string) *Store {
	return &Store{Root: dir}
}

// Read returns the full text of the document at path
func (s *Store) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	if err != nil {
		return "", fmt.Errorf("storage: read %s: %w", path, err)
	}
	return string(data), nil
}

// Write replaces the document at path with text, byte for byte. An existing
// file keeps its permissions; a new one is created 0644.
func (s *Store) Write(ctx context.Context, path, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.resolve(path)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}

	err := renameio.WriteFile(target, []byte(text), defaultMode,
		renameio.WithTempDir(dir),
		renameio.WithExistingPermissions(),
	)
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a document file is present at path
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(s.resolve(path))
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) resolve(path string) string {
	if s.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.Root, path)
}
