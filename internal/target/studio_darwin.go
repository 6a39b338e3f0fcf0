package target

import (
	"os"
	"path/filepath"

	"github.com/runway-sync/runway/internal/utils"
)

const studioContentPath = "RobloxStudio.app/Contents/Resources/content"

func StudioContentFolders() ([]string, error) {
	apps := []string{"/Applications"}
	if home, err := os.UserHomeDir(); err == nil {
		apps = append(apps, filepath.Join(home, "Applications"))
	}

	var dirs []string
	for _, dir := range apps {
		content := filepath.Join(dir, filepath.FromSlash(studioContentPath))
		if utils.DirExists(content) {
			dirs = append(dirs, content)
		}
	}
	return dirs, nil
}

func symlinkDir(target, link string) error {
	return os.Symlink(target, link)
}
