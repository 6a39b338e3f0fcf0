package target

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/runway-sync/runway/internal/config"
	"github.com/runway-sync/runway/internal/state"
	"github.com/runway-sync/runway/internal/utils"
)

// LocalScheme prefixes identifiers of files in the local cache.
const LocalScheme = "rbxasset://"

// LocalAdapter copies assets into a content-addressed cache directory under
// the project root. Assets with identical bytes share one cache file.
type LocalAdapter struct {
	root   string
	relDir string // slash separated, relative to root
}

func NewLocalAdapter(root, projectName string) *LocalAdapter {
	return &LocalAdapter{
		root:   root,
		relDir: path.Join(config.DataDirName, projectName),
	}
}

// Dir is the absolute cache directory.
func (a *LocalAdapter) Dir() string {
	return filepath.Join(a.root, filepath.FromSlash(a.relDir))
}

func (a *LocalAdapter) SyncOne(_ context.Context, in *Input, _ *state.Record) (*state.Record, error) {
	name := in.Fingerprint.String() + in.Ident.Ext()
	rel := path.Join(a.relDir, name)
	dst := filepath.Join(a.root, filepath.FromSlash(rel))

	if utils.FileExists(dst) {
		slog.Debug("local cache hit", "path", in.Ident, "file", rel)
	} else if err := utils.WriteFileAtomic(dst, in.Data, 0o644); err != nil {
		return nil, wrap(ErrIO, fmt.Errorf("write '%s': %w", rel, err))
	}

	return &state.Record{
		Fingerprint: in.Fingerprint,
		ID:          LocalScheme + rel,
		LocalPath:   rel,
		SyncedAt:    now(),
	}, nil
}

// Verify reports whether the cache file of rec is still present.
func (a *LocalAdapter) Verify(rec *state.Record) bool {
	if rec.LocalPath == "" {
		return false
	}
	return utils.FileExists(filepath.Join(a.root, filepath.FromSlash(rec.LocalPath)))
}
