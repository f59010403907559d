//go:build !darwin

package scanner

import (
	"os"
	"time"
)

// createTime is unavailable here; callers fall back to the mtime.
func createTime(os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
