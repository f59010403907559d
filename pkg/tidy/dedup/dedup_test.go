package dedup

import (
	"context"
	"crypto/md5" //nolint:gosec // test vector
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/phototidy/pkg/tidy/cache"
	"github.com/jamesainslie/phototidy/pkg/tidy/hashing"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

func writeFile(t *testing.T, dir, name string, data []byte) *types.FileRecord {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return &types.FileRecord{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Ext:      filepath.Ext(name),
		FileType: types.FileTypeImage,
	}
}

func fill(n int, b byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = b
	}
	return data
}

func countingSum(calls *atomic.Int32) sumFunc {
	return func(ctx context.Context, path string, algs []string, chunk int, m hashing.Meter) (map[string]string, error) {
		calls.Add(1)
		return hashing.Sum(ctx, path, algs, chunk, m)
	}
}

func TestKeeperLess(t *testing.T) {
	t.Parallel()

	big := &types.FileRecord{Path: "/z.jpg", Size: 10, Resolution: &types.Resolution{Width: 200, Height: 100}}
	small := &types.FileRecord{Path: "/a.jpg", Size: 99, Resolution: &types.Resolution{Width: 100, Height: 100}}
	heavy := &types.FileRecord{Path: "/b.jpg", Size: 50}
	light := &types.FileRecord{Path: "/a.jpg", Size: 40}
	tieA := &types.FileRecord{Path: "/a.jpg", Size: 40}
	tieB := &types.FileRecord{Path: "/b.jpg", Size: 40}

	assert.True(t, KeeperLess(big, small), "area wins")
	assert.True(t, KeeperLess(heavy, light), "size wins at equal area")
	assert.True(t, KeeperLess(tieA, tieB), "path breaks ties")
	assert.False(t, KeeperLess(tieB, tieA))
}

func TestSelectKeeper_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := &types.FileRecord{Path: "/p/a.jpg", Size: 5}
	b := &types.FileRecord{Path: "/p/b.jpg", Size: 5}
	c := &types.FileRecord{Path: "/p/c.jpg", Size: 5}

	for _, order := range [][]*types.FileRecord{{a, b, c}, {c, b, a}, {b, c, a}} {
		keeper, rest := SelectKeeper(order)
		assert.Same(t, a, keeper)
		assert.Len(t, rest, 2)
		assert.NotContains(t, rest, a)
	}
}

func TestExact_IdenticalFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := fill(1024, 'x')
	a := writeFile(t, dir, "a.jpg", data)
	b := writeFile(t, dir, "b.jpg", data)

	sha := sha256.Sum256(data)
	md := md5.Sum(data) //nolint:gosec // test vector
	wantSHA := hex.EncodeToString(sha[:])

	e := NewExact(ExactOptions{Algorithms: []string{"sha256", "md5"}, Workers: 2}, nil, nil)
	res, err := e.Run(context.Background(), []*types.FileRecord{b, a})
	require.NoError(t, err)

	require.Len(t, res.Keepers, 1)
	require.Len(t, res.Duplicates, 1)
	assert.Same(t, a, res.Keepers[0])
	assert.Same(t, b, res.Duplicates[0].Record)
	assert.Same(t, a, res.Duplicates[0].Keeper)
	assert.Equal(t, types.ReasonDuplicateHash, res.Duplicates[0].Reason)
	assert.Equal(t, wantSHA, b.Digest("sha256"))
	assert.Equal(t, hex.EncodeToString(md[:]), b.Digest("md5"))
	assert.Equal(t, 2, res.Hashed)
	require.Len(t, res.Groups, 1)
	assert.Contains(t, res.Groups[0].Key, "1024:sha256="+wantSHA)
}

func TestExact_AlgorithmNamesAnyCase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := fill(1024, 'y')
	a := writeFile(t, dir, "a.jpg", data)
	b := writeFile(t, dir, "b.jpg", data)

	e := NewExact(ExactOptions{Algorithms: []string{"SHA256", " Md5", "sha256"}}, nil, nil)
	res, err := e.Run(context.Background(), []*types.FileRecord{a, b})
	require.NoError(t, err)

	assert.Empty(t, res.Unreadable)
	require.Len(t, res.Duplicates, 1)
	assert.Same(t, b, res.Duplicates[0].Record)
	assert.NotEmpty(t, b.Digest("md5"))
	assert.NotEmpty(t, b.Digest("sha256"))
}

func TestExact_DistinctSizesNeverHashed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	records := []*types.FileRecord{
		writeFile(t, dir, "a.jpg", fill(10, 'a')),
		writeFile(t, dir, "b.jpg", fill(20, 'a')),
		writeFile(t, dir, "c.jpg", fill(30, 'a')),
	}

	var calls atomic.Int32
	e := NewExact(ExactOptions{Workers: 4}, nil, nil)
	e.sum = countingSum(&calls)

	res, err := e.Run(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, records, res.Keepers)
	assert.Empty(t, res.Duplicates)
	for _, r := range records {
		assert.Empty(t, r.Digests)
	}
}

func TestExact_SameSizeDifferentContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", fill(64, 'a'))
	b := writeFile(t, dir, "b.jpg", fill(64, 'b'))

	res, err := NewExact(ExactOptions{}, nil, nil).Run(context.Background(), []*types.FileRecord{a, b})
	require.NoError(t, err)
	assert.Equal(t, []*types.FileRecord{a, b}, res.Keepers)
	assert.Empty(t, res.Duplicates)
	assert.NotEmpty(t, a.Digest("sha256"))
}

func TestExact_OtherTypeSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", fill(8, 'a'))
	b := writeFile(t, dir, "b.txt", fill(8, 'a'))
	a.FileType, b.FileType = types.FileTypeOther, types.FileTypeOther

	var calls atomic.Int32
	e := NewExact(ExactOptions{}, nil, nil)
	e.sum = countingSum(&calls)

	res, err := e.Run(context.Background(), []*types.FileRecord{a, b})
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls.Load())
	assert.Len(t, res.Keepers, 2)
}

func TestExact_UnreadableKept(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", fill(16, 'a'))
	b := writeFile(t, dir, "b.jpg", fill(16, 'a'))
	c := writeFile(t, dir, "c.jpg", fill(16, 'a'))

	e := NewExact(ExactOptions{}, nil, nil)
	e.sum = func(ctx context.Context, path string, algs []string, chunk int, m hashing.Meter) (map[string]string, error) {
		if path == c.Path {
			return nil, errors.New("permission denied")
		}
		return hashing.Sum(ctx, path, algs, chunk, m)
	}

	res, err := e.Run(context.Background(), []*types.FileRecord{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []*types.FileRecord{a, c}, res.Keepers)
	assert.Equal(t, []*types.FileRecord{c}, res.Unreadable)
	assert.Equal(t, []*types.FileRecord{b}, res.DuplicateRecords())
}

func TestExact_Deterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var records []*types.FileRecord
	for _, name := range []string{"d.jpg", "b.jpg", "a.jpg", "c.jpg", "e.jpg"} {
		records = append(records, writeFile(t, dir, name, fill(128, 'q')))
	}

	for range 5 {
		res, err := NewExact(ExactOptions{Workers: 3}, nil, nil).Run(context.Background(), records)
		require.NoError(t, err)
		require.Len(t, res.Keepers, 1)
		assert.Equal(t, "a.jpg", res.Keepers[0].Name())
	}
}

func TestExact_Cancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", fill(16, 'a'))
	b := writeFile(t, dir, "b.jpg", fill(16, 'a'))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExact(ExactOptions{}, nil, nil).Run(ctx, []*types.FileRecord{a, b})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExact_UsesDigestCache(t *testing.T) {
	t.Parallel()

	store, err := cache.OpenInMemory()
	require.NoError(t, err)
	dc := cache.NewDigestCache(store)
	t.Cleanup(func() { _ = dc.Close() })

	dir := t.TempDir()
	records := []*types.FileRecord{
		writeFile(t, dir, "a.jpg", fill(32, 'z')),
		writeFile(t, dir, "b.jpg", fill(32, 'z')),
	}

	var calls atomic.Int32
	first := NewExact(ExactOptions{}, dc, nil)
	first.sum = countingSum(&calls)
	_, err = first.Run(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())

	fresh := []*types.FileRecord{
		{Path: records[0].Path, Size: 32, ModTime: records[0].ModTime, FileType: types.FileTypeImage},
		{Path: records[1].Path, Size: 32, ModTime: records[1].ModTime, FileType: types.FileTypeImage},
	}
	second := NewExact(ExactOptions{}, dc, nil)
	second.sum = countingSum(&calls)
	res, err := second.Run(context.Background(), fresh)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "second run served from cache")
	assert.Equal(t, 0, res.Hashed)
	assert.Len(t, res.Duplicates, 1)
}

func gradient(w, h int, invert bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8((x * 255) / w)
			if invert {
				v = 255 - v
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) *types.FileRecord {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	info, err := os.Stat(path)
	require.NoError(t, err)
	b := img.Bounds()
	return &types.FileRecord{
		Path:       path,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		FileType:   types.FileTypeImage,
		Resolution: &types.Resolution{Width: b.Dx(), Height: b.Dy()},
	}
}

func TestPHashImage_SimilarAndDifferent(t *testing.T) {
	t.Parallel()

	a := PHashImage(gradient(256, 256, false))
	b := PHashImage(gradient(128, 128, false))
	c := PHashImage(gradient(256, 256, true))

	assert.LessOrEqual(t, Hamming(a, b), 4)
	assert.Greater(t, Hamming(a, c), MaxThreshold)
}

func TestHamming(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Hamming(0xff, 0xff))
	assert.Equal(t, 64, Hamming(0, ^uint64(0)))
	assert.Equal(t, 3, Hamming(0b1011, 0b0000))
}

func TestPerceptual_ClustersResizedCopy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	large := writePNG(t, dir, "large.png", gradient(256, 256, false))
	small := writePNG(t, dir, "small.png", gradient(64, 64, false))
	other := writePNG(t, dir, "other.png", gradient(256, 256, true))
	video := &types.FileRecord{Path: filepath.Join(dir, "clip.mp4"), FileType: types.FileTypeVideo}

	p := NewPerceptual(PerceptualOptions{Threshold: 8}, nil, nil)
	res, err := p.Run(context.Background(), []*types.FileRecord{small, video, large, other})
	require.NoError(t, err)

	assert.Equal(t, []*types.FileRecord{video, large, other}, res.Keepers)
	require.Len(t, res.Duplicates, 1)
	assert.Same(t, small, res.Duplicates[0].Record)
	assert.Same(t, large, res.Duplicates[0].Keeper)
	assert.Equal(t, types.ReasonDuplicatePHash, res.Duplicates[0].Reason)
	assert.True(t, large.HasPHash)
	assert.Equal(t, 3, res.Hashed)
}

func TestPerceptual_GreedyFirstMember(t *testing.T) {
	t.Parallel()

	// b is within threshold of a; c is within threshold of b but not of a.
	a := &types.FileRecord{Path: "/a.jpg", FileType: types.FileTypeImage, PHash: 0, HasPHash: true}
	b := &types.FileRecord{Path: "/b.jpg", FileType: types.FileTypeImage, PHash: 0b111, HasPHash: true}
	c := &types.FileRecord{Path: "/c.jpg", FileType: types.FileTypeImage, PHash: 0b111111, HasPHash: true}

	p := NewPerceptual(PerceptualOptions{Threshold: 3}, nil, nil)
	res, err := p.Run(context.Background(), []*types.FileRecord{a, b, c})
	require.NoError(t, err)

	assert.Equal(t, []*types.FileRecord{a, c}, res.Keepers)
	assert.Equal(t, []*types.FileRecord{b}, res.DuplicateRecords())
}

func TestPerceptual_UndecodableKept(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.jpg", []byte("not an image"))

	p := NewPerceptual(PerceptualOptions{Threshold: 8}, nil, nil)
	res, err := p.Run(context.Background(), []*types.FileRecord{broken})
	require.NoError(t, err)
	assert.Equal(t, []*types.FileRecord{broken}, res.Keepers)
	assert.Equal(t, []*types.FileRecord{broken}, res.Unreadable)
	assert.False(t, broken.HasPHash)
}

func TestPerceptual_ThresholdClamped(t *testing.T) {
	t.Parallel()

	p := NewPerceptual(PerceptualOptions{Threshold: 40}, nil, nil)
	assert.Equal(t, MaxThreshold, p.opts.Threshold)
}
