// Package workspace owns the machine-local data directory of a project and
// the lock that keeps two runway processes from syncing it at once.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/runway-sync/runway/internal/config"
	"github.com/runway-sync/runway/internal/utils"
)

const (
	lockFile    = "runway.lock"
	localDBFile = "local.db"
	gitignore   = ".gitignore"
)

var ErrWorkspaceLocked = errors.New("workspace locked by another runway process")

type Workspace struct {
	Root      string
	DataDir   string
	StatePath string

	flock *flock.Flock
}

func NewWorkspace(cfg *config.Config) (*Workspace, error) {
	root, err := utils.ResolvePath(cfg.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", cfg.Root(), err)
	}
	return &Workspace{
		Root:      root,
		DataDir:   cfg.DataDir(),
		StatePath: cfg.StatePath(),
		flock:     flock.New(filepath.Join(cfg.DataDir(), lockFile)),
	}, nil
}

// LocalDBPath is the SQLite journal of local records and pending uploads.
func (w *Workspace) LocalDBPath() string {
	return filepath.Join(w.DataDir, localDBFile)
}

func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.DataDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.DataDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	// only the process holding the lock removes the file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}
	return os.Remove(w.flock.Path())
}

// Setup locks the workspace and prepares the data directory.
func (w *Workspace) Setup() error {
	if err := w.Lock(); err != nil {
		return err
	}

	ignorePath := filepath.Join(w.DataDir, gitignore)
	if !utils.FileExists(ignorePath) {
		if err := os.WriteFile(ignorePath, []byte("*\n"), 0o644); err != nil {
			slog.Warn("failed to write data dir .gitignore", "path", ignorePath, "error", err)
		}
	}

	slog.Debug("workspace", "root", w.Root, "data", w.DataDir)
	return nil
}
