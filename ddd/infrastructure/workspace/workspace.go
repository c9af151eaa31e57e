// Package workspace manages the per-job scratch directories the encoder
// reads from and writes into.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"media-service/pkg/logger"
)

const dirPrefix = "job-"

// Workspace is a job-scoped directory, job-<uuid>, under a temp root.
// Release removes it and everything below it; calling Release again is a no-op.
type Workspace struct {
	id   string
	path string

	once       sync.Once
	releaseErr error
}

// Acquire creates a fresh workspace under root. An empty root uses os.TempDir().
func Acquire(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}
	id := uuid.NewString()
	p := filepath.Join(root, dirPrefix+id)
	if err := os.Mkdir(p, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{id: id, path: p}, nil
}

func (w *Workspace) ID() string   { return w.id }
func (w *Workspace) Path() string { return w.path }

// Join resolves name inside the workspace. Names escaping the directory are rejected.
func (w *Workspace) Join(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid workspace file name %q", name)
	}
	return filepath.Join(w.path, clean), nil
}

// WriteFile writes data to name inside the workspace and returns its path.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	p, err := w.Join(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return p, nil
}

// ReadFile reads name from the workspace.
func (w *Workspace) ReadFile(name string) ([]byte, error) {
	p, err := w.Join(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// Exists reports whether name is a regular file inside the workspace.
func (w *Workspace) Exists(name string) bool {
	p, err := w.Join(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Release removes the directory tree. Failures are logged and returned, never retried.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.releaseErr = err
			logger.Warnf("failed to clean workspace path=%s error=%s", w.path, err.Error())
		}
	})
	return w.releaseErr
}
