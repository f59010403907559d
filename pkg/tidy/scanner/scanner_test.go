package scanner

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))))
	require.NoError(t, f.Close())
}

func writeText(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := map[string]types.FileType{
		"/a/IMG_1.JPG":  types.FileTypeImage,
		"/a/b.heic":     types.FileTypeImage,
		"/a/c.webp":     types.FileTypeImage,
		"/a/clip.MOV":   types.FileTypeVideo,
		"/a/clip.3gp":   types.FileTypeVideo,
		"/a/notes.txt":  types.FileTypeOther,
		"/a/no_ext":     types.FileTypeOther,
		"/a/archive.gz": types.FileTypeOther,
	}
	for path, want := range tests {
		assert.Equal(t, want, Classify(path), path)
	}
}

func TestScan_RecordsAndExclusions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writePNG(t, filepath.Join(root, "2024", "photo.png"), 40, 30)
	writeText(t, filepath.Join(root, "notes.TXT"), "hello")
	writeText(t, filepath.Join(root, "KEEP", "kept.jpg"), "x")
	writeText(t, filepath.Join(root, "Processed_20240101_000000", "REPORT", "manifest.jsonl"), "{}")
	writeText(t, filepath.Join(root, ".hidden", "h.jpg"), "x")
	require.NoError(t, os.Symlink(filepath.Join(root, "notes.TXT"), filepath.Join(root, "link.txt")))

	mtime := time.Date(2023, 5, 6, 7, 8, 9, 0, time.Local)
	require.NoError(t, os.Chtimes(filepath.Join(root, "notes.TXT"), mtime, mtime))

	s, err := New(DefaultOptions(), nil)
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, res.Files, 2)
	photo, notes := res.Files[0], res.Files[1]

	assert.Equal(t, filepath.Join(root, "2024", "photo.png"), photo.Path)
	assert.Equal(t, types.FileTypeImage, photo.FileType)
	require.NotNil(t, photo.Resolution)
	assert.Equal(t, types.Resolution{Width: 40, Height: 30}, *photo.Resolution)
	assert.Equal(t, ".png", photo.Ext)

	assert.Equal(t, types.FileTypeOther, notes.FileType)
	assert.Equal(t, ".txt", notes.Ext)
	assert.Nil(t, notes.Resolution)
	assert.Equal(t, int64(5), notes.Size)
	assert.Equal(t, types.TimestampFS, notes.TimestampSource)

	assert.Equal(t, int64(1), res.SymlinksSkipped)
	assert.Equal(t, int64(3), res.Excluded)
	assert.Equal(t, int64(1), res.DirsScanned)
	assert.Empty(t, res.Errors)
}

func TestScan_InvalidRoot(t *testing.T) {
	t.Parallel()

	s, err := New(DefaultOptions(), nil)
	require.NoError(t, err)

	_, err = s.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "f.txt")
	writeText(t, file, "x")
	_, err = s.Scan(context.Background(), file)
	require.ErrorIs(t, err, os.ErrInvalid)
}

func TestScan_Cancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeText(t, filepath.Join(root, "a.txt"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(DefaultOptions(), nil)
	require.NoError(t, err)
	_, err = s.Scan(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Exclude: []string{"[abc"}}, nil)
	require.Error(t, err)
}

func TestLockTimestamp(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.jpg")
	writeText(t, path, "x")
	at := time.Date(2021, 2, 3, 4, 5, 6, 0, time.Local)
	require.NoError(t, os.Chtimes(path, at, at))
	info, err := os.Stat(path)
	require.NoError(t, err)

	ts, src := lockTimestamp(time.Date(2020, 1, 2, 3, 4, 5, 0, time.Local), info)
	assert.Equal(t, "2020-01-02 03:04:05", ts)
	assert.Equal(t, types.TimestampEXIF, src)

	_, src = lockTimestamp(time.Time{}, info)
	assert.Equal(t, types.TimestampFS, src)
}
