//go:build linux

package filesystem

import (
	"os"
	"syscall"
	"time"
)

// ChangeTime returns the inode change time of info, falling back to the
// modification time when the platform stat data is unavailable.
func ChangeTime(info os.FileInfo) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return info.ModTime()
	}
	return time.Unix(st.Ctim.Unix())
}
