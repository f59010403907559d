// Package hashing computes content digests over chunked, cancellable reads.
package hashing

import (
	"context"
	"crypto/md5"  //nolint:gosec // content fingerprint, not a security boundary
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"slices"
	"strings"
)

// DefaultChunkSize is the read size used when none is given.
const DefaultChunkSize = 1024 * 1024

// ErrUnsupportedAlgorithm is returned for an unknown digest name.
var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

var constructors = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// Meter receives the number of bytes consumed after each chunk.
type Meter interface {
	Add(n int64)
}

// Supported returns the sorted list of algorithm names.
func Supported() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Normalize lowercases and trims algorithm names and drops repeats, keeping
// the first occurrence. Sum keys its result by the normalized names.
func Normalize(algorithms []string) []string {
	out := make([]string, 0, len(algorithms))
	for _, a := range algorithms {
		a = strings.ToLower(strings.TrimSpace(a))
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

// IsSupported reports whether name is a known algorithm.
func IsSupported(name string) bool {
	_, ok := constructors[strings.ToLower(name)]
	return ok
}

// Sum streams the file at path once, feeding every requested algorithm, and
// returns a map from algorithm name to lowercase hex digest.
//
// The context is checked before each chunk; a chunk already being read
// completes before cancellation is observed.
func Sum(ctx context.Context, path string, algorithms []string, chunkSize int, meter Meter) (map[string]string, error) {
	if len(algorithms) == 0 {
		return nil, fmt.Errorf("%w: no algorithms requested", ErrUnsupportedAlgorithm)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	hashers := make(map[string]hash.Hash, len(algorithms))
	writers := make([]io.Writer, 0, len(algorithms))
	for _, name := range algorithms {
		name = strings.ToLower(name)
		if _, dup := hashers[name]; dup {
			continue
		}
		ctor, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, name)
		}
		h := ctor()
		hashers[name] = h
		writers = append(writers, h)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sink := io.MultiWriter(writers...)
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, readErr := f.Read(buf)
		if n > 0 {
			if _, err := sink.Write(buf[:n]); err != nil {
				return nil, fmt.Errorf("failed to hash %s: %w", path, err)
			}
			if meter != nil {
				meter.Add(int64(n))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, readErr)
		}
	}

	digests := make(map[string]string, len(hashers))
	for name, h := range hashers {
		digests[name] = hex.EncodeToString(h.Sum(nil))
	}
	return digests, nil
}
