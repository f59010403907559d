package planner

import (
	"path/filepath"
	"strings"

	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// Holding directories under the run directory.
const (
	ToDeleteDir   = "TO_DELETE"
	ThumbnailsDir = "THUMBNAILS"
	DuplicatesDir = "DUPLICATES"
	OtherDir      = "OTHER"
)

// relativeTo returns path relative to root, or its base name when path is
// not below root.
func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return rel
}

// yearMonth returns the YYYY and MM of a locked timestamp, or unknown for
// both when it cannot be parsed.
func yearMonth(ts, unknown string) (string, string) {
	t, ok := types.ParseTimestamp(ts)
	if !ok {
		return unknown, unknown
	}
	return t.Format("2006"), t.Format("01")
}

// ArchivePath returns <output>/<root>/<YYYY>/<MM>/<name> for r.
func ArchivePath(output, root, unknown string, r *types.FileRecord, name string) string {
	y, m := yearMonth(r.TimestampLocked, unknown)
	return filepath.Join(output, root, y, m, name)
}

// ScreenshotDir expands {YYYY} and {MM} in template under output.
func ScreenshotDir(output, template string, r *types.FileRecord) string {
	y, m := yearMonth(r.TimestampLocked, "unknown")
	rel := strings.NewReplacer("{YYYY}", y, "{MM}", m).Replace(template)
	return filepath.Join(output, filepath.FromSlash(rel))
}
