//go:build windows

package filesystem

import (
	"os"
	"syscall"
	"time"
)

// ChangeTime returns the creation time of info on Windows, falling back to
// the modification time when the platform data is unavailable.
func ChangeTime(info os.FileInfo) time.Time {
	attrs, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok || attrs == nil {
		return info.ModTime()
	}
	return time.Unix(0, attrs.CreationTime.Nanoseconds())
}
