//go:build !unix

package fileops

import (
	"path/filepath"
	"strings"
)

func sameDevice(a, b string) (bool, error) {
	return strings.EqualFold(filepath.VolumeName(a), filepath.VolumeName(b)), nil
}
