//go:build darwin

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect uses runtime.NumCPU and the hw.memsize sysctl. Half of the total
// is assumed available since macOS keeps most free memory as file cache.
func Detect() (SystemResources, error) {
	res := SystemResources{CPUCores: runtime.NumCPU()}

	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return res, fmt.Errorf("sysctl hw.memsize: %w", err)
	}
	res.TotalRAM = int64(memsize)
	res.AvailableRAM = res.TotalRAM / 2
	return res, nil
}
