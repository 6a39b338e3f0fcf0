//go:build !linux && !darwin

package asset

import (
	"os"
	"time"
)

// fileIdentity falls back to the modification time where no change time is
// exposed.
func fileIdentity(info os.FileInfo) (ino uint64, ctime time.Time) {
	return 0, info.ModTime()
}
