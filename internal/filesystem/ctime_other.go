//go:build !linux && !darwin && !freebsd && !netbsd && !windows

package filesystem

import (
	"os"
	"time"
)

// ChangeTime returns the modification time; this platform exposes no
// portable change time.
func ChangeTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
