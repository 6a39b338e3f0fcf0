package target

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// StudioContentFolders returns the content folder of every installed Studio version.
func StudioContentFolders() ([]string, error) {
	appData := os.Getenv("LOCALAPPDATA")
	if appData == "" {
		return nil, nil
	}
	return versionContentFolders(filepath.Join(appData, "Roblox", "Versions"))
}

// symlinkDir creates a junction, which unlike a symlink needs no elevation.
func symlinkDir(target, link string) error {
	out, err := exec.Command("cmd", "/c", "mklink", "/J", link, target).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mklink: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
