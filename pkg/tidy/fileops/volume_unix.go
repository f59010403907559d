//go:build unix

package fileops

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func deviceOf(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return uint64(st.Dev), nil //nolint:unconvert // Dev is int32 on some platforms
}

func sameDevice(a, b string) (bool, error) {
	da, err := deviceOf(a)
	if err != nil {
		return false, err
	}
	db, err := deviceOf(b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}
