// Package fileops provides the filesystem primitives used by the executor
// and the rollback runner. Every primitive runs under a retry.Policy and
// returns a retry.Outcome, so transient network-share failures are retried
// and logical failures surface immediately.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/retry"
)

// Result statuses recorded after a successful operation.
const (
	Moved   = "MOVED"
	Copied  = "COPIED"
	Renamed = "RENAMED"
)

// Meter receives copied byte counts.
type Meter interface {
	Add(n int64)
}

// Options configures Ops.
type Options struct {
	Retry retry.Policy

	// Files larger than ChunkedThreshold are copied ChunkSize bytes at a
	// time with a cancellation check between chunks.
	ChunkedThreshold int64
	ChunkSize        int

	// AllowCrossVolume permits MOVE/ARCHIVE across volumes as a copy.
	AllowCrossVolume bool
}

// OptionsFromConfig derives Options from the loaded configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Retry: retry.Policy{
			MaxRetries: cfg.Retry.MaxRetries,
			Base:       cfg.Retry.Base(),
			Cap:        cfg.Retry.Cap(),
		},
		ChunkedThreshold: cfg.Copy.ChunkedThreshold(),
		ChunkSize:        cfg.Copy.ChunkSize(),
		AllowCrossVolume: cfg.Copy.AllowCrossVolume,
	}
}

// Result is the outcome of a move, copy or rename.
type Result struct {
	retry.Outcome

	// Status is Moved, Copied or Renamed on success.
	Status string
}

// Ops performs retried filesystem operations.
type Ops struct {
	opts Options

	rename     func(oldpath, newpath string) error
	copyFile   func(ctx context.Context, src, dst string, meter Meter) error
	mkdirAll   func(path string, perm os.FileMode) error
	stat       func(path string) (os.FileInfo, error)
	remove     func(path string) error
	sameVolume func(src, dst string) (bool, error)
}

// New returns Ops bound to the operating system.
func New(opts Options) *Ops {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1024 * 1024
	}
	o := &Ops{
		opts:     opts,
		rename:   os.Rename,
		mkdirAll: os.MkdirAll,
		stat:     os.Stat,
		remove:   os.Remove,
	}
	o.copyFile = o.copyContents
	o.sameVolume = SameVolume
	return o
}

// SafeStat stats path under the retry policy.
func (o *Ops) SafeStat(ctx context.Context, path string) (os.FileInfo, retry.Outcome) {
	var info os.FileInfo
	out := o.opts.Retry.Do(ctx, func() error {
		var err error
		info, err = o.stat(path)
		return err
	})
	return info, out
}

// SafeMkdirAll creates dir and its parents under the retry policy.
func (o *Ops) SafeMkdirAll(ctx context.Context, dir string) retry.Outcome {
	return o.opts.Retry.Do(ctx, func() error {
		return o.mkdirAll(dir, 0o755)
	})
}

// SafeCopy copies src to a dst that must not yet exist. Mode and
// modification time are preserved; a partial dst is removed on failure.
func (o *Ops) SafeCopy(ctx context.Context, src, dst string, meter Meter) retry.Outcome {
	return o.opts.Retry.Do(ctx, func() error {
		return o.copyFile(ctx, src, dst, meter)
	})
}

// SafeMove renames src to dst under the retry policy. dst must not exist.
func (o *Ops) SafeMove(ctx context.Context, src, dst string) retry.Outcome {
	return o.opts.Retry.Do(ctx, func() error {
		if o.exists(dst) {
			return ErrDestinationExists
		}
		return o.rename(src, dst)
	})
}

// MoveOrCopy performs a MOVE or ARCHIVE. dst must not exist; its parent is
// created on demand. Within a volume the file is renamed (Moved); across
// volumes it is copied and the source left in place (Copied).
func (o *Ops) MoveOrCopy(ctx context.Context, src, dst string, meter Meter) Result {
	same, res, ok := o.prepare(ctx, src, dst)
	if !ok {
		return res
	}

	if same {
		return result(o.SafeMove(ctx, src, dst), Moved)
	}
	if !o.opts.AllowCrossVolume {
		return failed(fmt.Errorf("%w: %s -> %s", ErrCrossVolumeBlocked, src, dst))
	}
	return result(o.SafeCopy(ctx, src, dst, meter), Copied)
}

// Rename renames src to dst within the same directory.
func (o *Ops) Rename(ctx context.Context, src, dst string) Result {
	if filepath.Clean(filepath.Dir(src)) != filepath.Clean(filepath.Dir(dst)) {
		return failed(fmt.Errorf("%w: %s -> %s", ErrCrossDirectoryRename, src, dst))
	}

	same, res, ok := o.prepare(ctx, src, dst)
	if !ok {
		return res
	}
	if !same {
		return failed(fmt.Errorf("%w: %s -> %s", ErrCrossVolumeRename, src, dst))
	}
	return result(o.SafeMove(ctx, src, dst), Renamed)
}

// Relocate moves src to dst even across volumes, removing src after a
// successful copy. It is used to undo work, where leaving the source
// behind would duplicate the file.
func (o *Ops) Relocate(ctx context.Context, src, dst string, meter Meter) Result {
	same, res, ok := o.prepare(ctx, src, dst)
	if !ok {
		return res
	}
	if same {
		return result(o.SafeMove(ctx, src, dst), Moved)
	}

	out := o.SafeCopy(ctx, src, dst, meter)
	if !out.Success {
		return Result{Outcome: out}
	}
	rm := o.opts.Retry.Do(ctx, func() error { return o.remove(src) })
	rm.RetryCount += out.RetryCount
	rm.Elapsed += out.Elapsed
	return result(rm, Moved)
}

// prepare checks the source, the destination and parent creation, and
// reports whether both sides share a volume. ok is false when res holds a
// failure.
func (o *Ops) prepare(ctx context.Context, src, dst string) (same bool, res Result, ok bool) {
	if _, out := o.SafeStat(ctx, src); !out.Success {
		if errors.Is(out.Err, fs.ErrNotExist) {
			out.Err = fmt.Errorf("%w: %s", ErrSourceMissing, src)
		}
		return false, Result{Outcome: out}, false
	}
	if o.exists(dst) {
		return false, failed(fmt.Errorf("%w: %s", ErrDestinationExists, dst)), false
	}
	if out := o.SafeMkdirAll(ctx, filepath.Dir(dst)); !out.Success {
		return false, Result{Outcome: out}, false
	}

	same, err := o.sameVolume(src, dst)
	if err != nil {
		return false, failed(err), false
	}
	return same, Result{}, true
}

func (o *Ops) exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (o *Ops) copyContents(ctx context.Context, src, dst string, meter Meter) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
		}
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if info.Size() > o.opts.ChunkedThreshold {
		err = copyChunked(ctx, out, in, o.opts.ChunkSize, meter)
	} else {
		var n int64
		n, err = io.Copy(out, in)
		if meter != nil && n > 0 {
			meter.Add(n)
		}
	}
	if err != nil {
		return err
	}

	if err := out.Sync(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func copyChunked(ctx context.Context, w io.Writer, r io.Reader, chunkSize int, meter Meter) error {
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if meter != nil {
				meter.Add(int64(n))
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// SameVolume reports whether src and the nearest existing ancestor of dst
// live on the same device.
func SameVolume(src, dst string) (bool, error) {
	probe := dst
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	return sameDevice(src, probe)
}

func result(out retry.Outcome, status string) Result {
	if !out.Success {
		return Result{Outcome: out}
	}
	return Result{Outcome: out, Status: status}
}

func failed(err error) Result {
	return Result{Outcome: retry.Outcome{Err: err}}
}
