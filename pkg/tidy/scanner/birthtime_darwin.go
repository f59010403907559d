//go:build darwin

package scanner

import (
	"os"
	"syscall"
	"time"
)

// createTime returns the birth time from the stat structure.
func createTime(info os.FileInfo) (time.Time, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(stat.Birthtimespec.Sec, stat.Birthtimespec.Nsec), true
}
