package target

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/runway-sync/runway/internal/utils"
)

// LinkContent links the cache directory into each Studio content folder at
// the same relative path, so rbxasset:// identifiers resolve inside Studio.
// Links that already exist are left alone.
func (a *LocalAdapter) LinkContent(contentDirs []string) error {
	cacheDir := a.Dir()
	if err := utils.EnsureDir(cacheDir); err != nil {
		return fmt.Errorf("create '%s': %w", cacheDir, err)
	}

	for _, content := range contentDirs {
		link := filepath.Join(content, filepath.FromSlash(a.relDir))
		if _, err := os.Lstat(link); err == nil {
			slog.Debug("studio link exists", "link", link)
			continue
		}
		if err := utils.EnsureParent(link); err != nil {
			return fmt.Errorf("create '%s': %w", filepath.Dir(link), err)
		}
		if err := symlinkDir(cacheDir, link); err != nil {
			return fmt.Errorf("link '%s': %w", link, err)
		}
		slog.Info("linked studio content folder", "link", link, "cache", cacheDir)
	}
	return nil
}

// versionContentFolders lists <version>/content for every install under a
// Roblox versions directory.
func versionContentFolders(versionsDir string) ([]string, error) {
	entries, err := os.ReadDir(versionsDir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(versionsDir, entry.Name(), "content"))
		}
	}
	return dirs, nil
}
