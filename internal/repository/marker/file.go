package marker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Repository defines persistence operations for the version marker.
type Repository interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, version string) error
}

// FileRepository persists the version marker as a one-line text file at the
// install location. The marker records the last successfully installed
// version, which may differ from the running process's version when a
// restart failed.
type FileRepository struct {
	// path is the filesystem location of the marker file.
	path string
	// mu protects concurrent access to the marker file.
	mu sync.Mutex
}

// ErrNotFound is returned when no marker has been written yet (first install).
var ErrNotFound = errors.New("version marker not found")

// filePermissions keeps the marker world-readable, like the rest of the install.
const filePermissions = 0o644

// NewFileRepository creates a repository that reads/writes the marker at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the marker from disk.
func (r *FileRepository) Load(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("read version marker: %w", err)
	}

	return strings.TrimSpace(string(contents)), nil
}

// Save writes the marker to disk, overwriting any previous value.
func (r *FileRepository) Save(_ context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := []byte(strings.TrimSpace(version) + "\n")
	if err := os.WriteFile(r.path, data, filePermissions); err != nil {
		return fmt.Errorf("write version marker: %w", err)
	}

	return nil
}
