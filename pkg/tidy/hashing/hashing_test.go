package hashing

import (
	"context"
	"crypto/md5" //nolint:gosec // test vector
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMeter struct {
	total int64
	calls int
}

func (m *countingMeter) Add(n int64) {
	m.total += n
	m.calls++
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSum_MultipleAlgorithms(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("photo", 1000)
	path := writeFile(t, content)

	meter := &countingMeter{}
	got, err := Sum(context.Background(), path, []string{"sha256", "MD5"}, 1024, meter)
	require.NoError(t, err)

	wantSHA := sha256.Sum256([]byte(content))
	wantMD5 := md5.Sum([]byte(content)) //nolint:gosec // test vector
	assert.Equal(t, hex.EncodeToString(wantSHA[:]), got["sha256"])
	assert.Equal(t, hex.EncodeToString(wantMD5[:]), got["md5"])

	assert.Equal(t, int64(len(content)), meter.total)
	assert.Equal(t, 5, meter.calls)
}

func TestSum_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "x")
	_, err := Sum(context.Background(), path, []string{"crc32"}, 0, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = Sum(context.Background(), path, nil, 0, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestSum_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Sum(context.Background(), filepath.Join(t.TempDir(), "nope"), []string{"sha256"}, 0, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSum_Cancelled(t *testing.T) {
	t.Parallel()

	path := writeFile(t, strings.Repeat("a", 4096))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sum(ctx, path, []string{"sha256"}, 512, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupported(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"md5", "sha1", "sha256", "sha512"}, Supported())
	assert.True(t, IsSupported("SHA256"))
	assert.False(t, IsSupported("blake3"))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"sha256", "md5"}, Normalize([]string{"SHA256", " md5 ", "Sha256"}))
	assert.Empty(t, Normalize(nil))
}
