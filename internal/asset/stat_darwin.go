package asset

import (
	"os"
	"syscall"
	"time"
)

func fileIdentity(info os.FileInfo) (ino uint64, ctime time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, info.ModTime()
	}
	return uint64(st.Ino), time.Unix(int64(st.Ctimespec.Sec), int64(st.Ctimespec.Nsec))
}
