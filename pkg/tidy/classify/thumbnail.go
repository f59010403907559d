// Package classify separates thumbnails from full-size files.
package classify

import (
	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// ThumbnailDetector applies the size and dimension rules.
type ThumbnailDetector struct {
	// MaxSizeBytes and MaxDimension together mark a small, low-res image.
	MaxSizeBytes int64
	MaxDimension int
	// MinDimension marks an image as a thumbnail on dimension alone.
	MinDimension int

	log *logging.Logger
}

// NewThumbnailDetector builds a detector from config. Sizes are in
// decimal kilobytes.
func NewThumbnailDetector(cfg config.ThumbnailConfig) *ThumbnailDetector {
	return &ThumbnailDetector{
		MaxSizeBytes: int64(cfg.MaxSizeKB) * 1000,
		MaxDimension: cfg.MaxDimensionPx,
		MinDimension: cfg.MinDimensionPx,
		log:          logging.Get("classify"),
	}
}

// IsThumbnail reports whether r looks like a thumbnail. A record without a
// known resolution is never one.
func (d *ThumbnailDetector) IsThumbnail(r *types.FileRecord) bool {
	if r.Resolution == nil {
		if r.FileType == types.FileTypeImage && d.log != nil {
			d.log.Debug("cannot determine resolution", "path", r.Path)
		}
		return false
	}
	dim := r.Resolution.MaxDimension()
	if dim <= d.MinDimension {
		return true
	}
	return r.Size <= d.MaxSizeBytes && dim <= d.MaxDimension
}

// Split partitions records, setting IsThumbnail on those it removes.
// Both slices preserve input order.
func (d *ThumbnailDetector) Split(records []*types.FileRecord) (keepers, thumbnails []*types.FileRecord) {
	for _, r := range records {
		if d.IsThumbnail(r) {
			r.IsThumbnail = true
			thumbnails = append(thumbnails, r)
			continue
		}
		keepers = append(keepers, r)
	}
	return keepers, thumbnails
}
