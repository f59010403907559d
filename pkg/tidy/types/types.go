// Package types provides core data types for phototidy.
// It includes the scanned file record, the planned action item and the
// enumerations shared by the dedup, planning and execution stages, along
// with utility functions for parsing and formatting sizes and timestamps.
package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// TimestampLayout is the layout of a locked timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// UnknownTimestamp is recorded when no usable timestamp could be found.
const UnknownTimestamp = "1970-01-01 00:00:00"

// FileType classifies a file by its extension.
type FileType string

// File types.
const (
	FileTypeImage FileType = "IMAGE"
	FileTypeVideo FileType = "VIDEO"
	FileTypeOther FileType = "OTHER"
)

// TimestampSource records where a locked timestamp came from.
type TimestampSource string

// Timestamp sources.
const (
	TimestampEXIF    TimestampSource = "exif"
	TimestampFS      TimestampSource = "created_time"
	TimestampUnknown TimestampSource = "unknown"
)

// Resolution is an image size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the pixel count.
func (r Resolution) Area() int64 {
	return int64(r.Width) * int64(r.Height)
}

// MaxDimension returns the larger of width and height.
func (r Resolution) MaxDimension() int {
	return max(r.Width, r.Height)
}

// FileRecord describes one scanned file.
// Records are mutated by the scan, classify and dedup stages only; after
// planning they are treated as read-only snapshots.
type FileRecord struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModTime is the last modification time of the file.
	ModTime time.Time `json:"mod_time"`

	// Ext is the lowercase extension including the dot.
	Ext string `json:"ext"`

	// Resolution is nil when the file could not be decoded as an image.
	Resolution *Resolution `json:"resolution,omitempty"`

	// TimestampLocked is the capture time in TimestampLayout.
	TimestampLocked string `json:"timestamp_locked"`

	// TimestampSource records whether the time came from EXIF or the filesystem.
	TimestampSource TimestampSource `json:"timestamp_source"`

	// Digests maps an algorithm name to its hex digest. Populated lazily.
	Digests map[string]string `json:"digests,omitempty"`

	// PHash is the perceptual fingerprint. Valid only when HasPHash is set.
	PHash    uint64 `json:"phash,omitempty"`
	HasPHash bool   `json:"-"`

	FileType FileType `json:"file_type"`

	IsThumbnail bool `json:"is_thumbnail"`

	IsScreenshot       bool   `json:"is_screenshot"`
	ScreenshotEvidence string `json:"screenshot_evidence,omitempty"`

	IsLivePair     bool    `json:"is_live_pair"`
	PairID         string  `json:"pair_id,omitempty"`
	PairConfidence float64 `json:"pair_confidence,omitempty"`
}

// Digest returns the digest for an algorithm, or "" if not computed.
func (f *FileRecord) Digest(algorithm string) string {
	if f.Digests == nil {
		return ""
	}
	return f.Digests[algorithm]
}

// SetDigest stores a digest value for an algorithm.
func (f *FileRecord) SetDigest(algorithm, value string) {
	if f.Digests == nil {
		f.Digests = make(map[string]string)
	}
	f.Digests[algorithm] = value
}

// Area returns the pixel area, or 0 when the resolution is unknown.
func (f *FileRecord) Area() int64 {
	if f.Resolution == nil {
		return 0
	}
	return f.Resolution.Area()
}

// Name returns the base name of the file.
func (f *FileRecord) Name() string {
	return filepath.Base(f.Path)
}

// LockedTime parses TimestampLocked. The second result is false when the
// timestamp is missing, unparseable or the unknown placeholder.
func (f *FileRecord) LockedTime() (time.Time, bool) {
	return ParseTimestamp(f.TimestampLocked)
}

// HumanSize returns the file size formatted as a human-readable string.
func (f *FileRecord) HumanSize() string {
	return FormatSize(f.Size)
}

// ActionKind is the filesystem operation an action performs.
type ActionKind string

// Action kinds.
const (
	ActionMove     ActionKind = "MOVE"
	ActionRename   ActionKind = "RENAME"
	ActionArchive  ActionKind = "ARCHIVE"
	ActionRollback ActionKind = "ROLLBACK"
)

// Valid reports whether k is a forward action the executor can perform.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionMove, ActionRename, ActionArchive:
		return true
	}
	return false
}

// Reason tags why an action was planned.
const (
	ReasonThumbnail        = "THUMBNAIL"
	ReasonDuplicateHash    = "DUPLICATE_HASH"
	ReasonDuplicatePHash   = "DUPLICATE_PHASH"
	ReasonScreenshot       = "SCREENSHOT"
	ReasonScreenshotRename = "SCREENSHOT_RENAME"
	ReasonOtherKeep        = "OTHER_KEEP"
	ReasonArchive          = "ARCHIVE"
	ReasonRename           = "RENAME"
	ReasonResume           = "RESUME"
	ReasonRollback         = "ROLLBACK"
)

// Action is one planned filesystem operation. Actions are created by the
// planner or rebuilt from a manifest and are never mutated afterwards.
type Action struct {
	Kind       ActionKind  `json:"action"`
	Reason     string      `json:"reason"`
	Src        string      `json:"src_path"`
	Dst        string      `json:"dst_path,omitempty"`
	NewName    string      `json:"new_name,omitempty"`
	RenameBase string      `json:"rename_base,omitempty"`

	// OpID is set only on actions rebuilt from a journal.
	OpID string `json:"op_id,omitempty"`

	Record *FileRecord `json:"-"`
}

func (a Action) String() string {
	return fmt.Sprintf("%s %s -> %s (%s)", a.Kind, a.Src, a.Dst, a.Reason)
}

// ParseTimestamp parses a timestamp in TimestampLayout. The unknown
// placeholder is reported as not ok.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == UnknownTimestamp {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp formats t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// Plain bytes and K, M, G, T suffixes (optionally followed by B or iB) are
// accepted and interpreted as binary units. Decimal values are truncated.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}

// FormatSpeed formats a throughput in bytes per second.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}
