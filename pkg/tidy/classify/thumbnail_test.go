package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

func rec(path string, size int64, w, h int) *types.FileRecord {
	r := &types.FileRecord{Path: path, Size: size, FileType: types.FileTypeImage}
	if w > 0 {
		r.Resolution = &types.Resolution{Width: w, Height: h}
	}
	return r
}

func TestIsThumbnail(t *testing.T) {
	t.Parallel()

	d := NewThumbnailDetector(config.ThumbnailConfig{MaxSizeKB: 120, MaxDimensionPx: 640, MinDimensionPx: 320})

	tests := []struct {
		name string
		rec  *types.FileRecord
		want bool
	}{
		{"tiny dimensions, large file", rec("/a.jpg", 5_000_000, 300, 200), true},
		{"at min dimension", rec("/a.jpg", 5_000_000, 320, 100), true},
		{"small and low-res", rec("/a.jpg", 100_000, 640, 480), true},
		{"small at size limit", rec("/a.jpg", 120_000, 600, 400), true},
		{"small but high-res", rec("/a.jpg", 100_000, 1920, 1080), false},
		{"low-res but large file", rec("/a.jpg", 120_001, 640, 480), false},
		{"unknown resolution", rec("/a.jpg", 10, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, d.IsThumbnail(tt.rec))
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	d := NewThumbnailDetector(config.ThumbnailConfig{MaxSizeKB: 120, MaxDimensionPx: 640, MinDimensionPx: 320})
	full := rec("/full.jpg", 3_000_000, 4000, 3000)
	thumb := rec("/thumb.jpg", 8_000, 160, 120)
	video := &types.FileRecord{Path: "/clip.mp4", Size: 10, FileType: types.FileTypeVideo}

	keepers, thumbs := d.Split([]*types.FileRecord{full, thumb, video})
	assert.Equal(t, []*types.FileRecord{full, video}, keepers)
	assert.Equal(t, []*types.FileRecord{thumb}, thumbs)
	assert.True(t, thumb.IsThumbnail)
	assert.False(t, full.IsThumbnail)
}
