package manifest

import (
	"path/filepath"
	"time"
)

// Run directories are named RunDirPrefix followed by the start time in
// RunDirLayout, so lexical order is chronological order.
const (
	RunDirPrefix = "Processed_"
	RunDirLayout = "20060102_150405"
)

// RunDirName returns the run directory name for a run started at t.
func RunDirName(t time.Time) string {
	return RunDirPrefix + t.Format(RunDirLayout)
}

// ReportDir returns the REPORT directory of a run.
func ReportDir(runDir string) string {
	return filepath.Join(runDir, ReportDirName)
}

// PathFor returns the canonical manifest path of a run.
func PathFor(runDir string) string {
	return filepath.Join(ReportDir(runDir), FileName)
}

// RunDirOf returns the run directory that holds manifestPath.
func RunDirOf(manifestPath string) string {
	return filepath.Dir(filepath.Dir(manifestPath))
}
