package scanner

import (
	"path/filepath"
	"strings"

	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".heic": true, ".heif": true,
	".tif": true, ".tiff": true, ".bmp": true, ".gif": true, ".webp": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".wmv": true, ".flv": true, ".m4v": true, ".3gp": true,
}

// Classify returns the file type for a path by its extension.
func Classify(path string) types.FileType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext]:
		return types.FileTypeImage
	case videoExts[ext]:
		return types.FileTypeVideo
	}
	return types.FileTypeOther
}
