//go:build !windows && !darwin

package target

import "os"

// StudioContentFolders finds nothing where Studio does not run.
func StudioContentFolders() ([]string, error) {
	return nil, nil
}

func symlinkDir(target, link string) error {
	return os.Symlink(target, link)
}
