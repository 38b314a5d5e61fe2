// Package workspace provides an isolated scratch directory per job and
// guarantees its removal.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/Prospector/internal/model"

	"github.com/google/uuid"
)

// Manager creates and tears down per-job scratch directories. Root
// empty means the OS temp directory.
type Manager struct {
	Root string
}

// Acquire creates a fresh, empty directory for the job and returns its
// path.
func (m Manager) Acquire(id uuid.UUID) (string, error) {
	root := m.Root
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", &model.WorkspaceError{Op: "acquire", Path: root, Err: err}
		}
	}
	dir, err := os.MkdirTemp(root, "scan-"+id.String()+"-")
	if err != nil {
		return "", &model.WorkspaceError{Op: "acquire", Path: root, Err: err}
	}
	return dir, nil
}

// Release removes the directory tree. It tolerates partial trees, e.g.
// read-only object files a failed clone left behind: on the first
// failure every entry is made writable and removal is retried once.
func (m Manager) Release(path string) error {
	if err := os.RemoveAll(path); err == nil {
		return nil
	}

	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = os.Chmod(p, 0o700)
		} else {
			_ = os.Chmod(p, 0o600)
		}
		return nil
	})
	if err := os.RemoveAll(path); err != nil {
		return &model.WorkspaceError{Op: "release", Path: path, Err: err}
	}
	return nil
}
