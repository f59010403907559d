package scanner

import (
	"fmt"
	"image"
	"os"
	"time"

	// Decoders registered for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// resolution reads only the image header.
func resolution(path string) (*types.Resolution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	return &types.Resolution{Width: cfg.Width, Height: cfg.Height}, nil
}

// exifTime returns DateTimeOriginal, or DateTime when the former is absent.
func exifTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = f.Close() }()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	return x.DateTime()
}

// lockTimestamp picks EXIF, then the filesystem creation or modification
// time, then the unknown placeholder.
func lockTimestamp(exifAt time.Time, info os.FileInfo) (string, types.TimestampSource) {
	if !exifAt.IsZero() {
		return types.FormatTimestamp(exifAt), types.TimestampEXIF
	}
	if t, ok := createTime(info); ok && !t.IsZero() {
		return types.FormatTimestamp(t), types.TimestampFS
	}
	if t := info.ModTime(); !t.IsZero() && t.Unix() > 0 {
		return types.FormatTimestamp(t), types.TimestampFS
	}
	return types.UnknownTimestamp, types.TimestampUnknown
}
