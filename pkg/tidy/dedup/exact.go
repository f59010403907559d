package dedup

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/hashing"
	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// PhaseHash is the progress phase name used by the exact engine.
const PhaseHash = "hash"

// DigestCache stores digests keyed by path, size and mtime.
// *cache.DigestCache satisfies it.
type DigestCache interface {
	Digests(path string, size int64, mtime time.Time, algorithms []string) (map[string]string, bool)
	PutDigests(path string, size int64, mtime time.Time, digests map[string]string) error
}

// ExactOptions configures the exact engine.
type ExactOptions struct {
	Algorithms []string
	ChunkSize  int
	Workers    int
	Progress   progress.Thresholds
}

// ExactOptionsFromConfig projects the hash and progress settings.
func ExactOptionsFromConfig(cfg config.Config) ExactOptions {
	return ExactOptions{
		Algorithms: cfg.Hash.Algorithms,
		ChunkSize:  cfg.Hash.ChunkSize(),
		Workers:    cfg.Hash.ParallelWorkers,
		Progress:   progress.ThresholdsFromConfig(cfg.Progress),
	}
}

type sumFunc func(ctx context.Context, path string, algorithms []string, chunkSize int, meter hashing.Meter) (map[string]string, error)

// Exact groups files by size and content digest.
type Exact struct {
	opts    ExactOptions
	cache   DigestCache
	emitter *progress.Emitter
	log     *logging.Logger
	sum     sumFunc
}

// NewExact returns an exact engine. cache and em may be nil.
func NewExact(opts ExactOptions, cache DigestCache, em *progress.Emitter) *Exact {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = hashing.DefaultChunkSize
	}
	opts.Algorithms = hashing.Normalize(opts.Algorithms)
	if len(opts.Algorithms) == 0 {
		opts.Algorithms = slices.Clone(config.DefaultHashAlgorithms)
	}
	return &Exact{
		opts:    opts,
		cache:   cache,
		emitter: em,
		log:     logging.Get("dedup"),
		sum:     hashing.Sum,
	}
}

// Run deduplicates records. Files of type OTHER and files with a unique
// size are kept without being read. Digests are stored on each hashed
// record. Only cancellation returns an error; unreadable files are kept.
func (e *Exact) Run(ctx context.Context, records []*types.FileRecord) (*Result, error) {
	buckets := make(map[int64][]*types.FileRecord)
	for _, r := range records {
		if r.FileType == types.FileTypeOther {
			continue
		}
		buckets[r.Size] = append(buckets[r.Size], r)
	}

	sizes := make([]int64, 0, len(buckets))
	var totalBytes int64
	var totalItems int
	for size, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		sizes = append(sizes, size)
		totalBytes += size * int64(len(bucket))
		totalItems += len(bucket)
	}
	slices.Sort(sizes)

	done := e.emitter.Phase(PhaseHash, totalItems)
	tracker := progress.NewTracker(e.emitter, PhaseHash, totalBytes, totalItems, e.opts.Progress)
	stop := tracker.StartHeartbeat(ctx)
	defer stop()

	var (
		groups     [][]*types.FileRecord
		keys       []string
		hashed     int
		unreadable []*types.FileRecord
	)
	for _, size := range sizes {
		bucket := buckets[size]
		n, err := e.hashBucket(ctx, bucket, tracker)
		hashed += n
		if err != nil {
			done("cancelled")
			return nil, err
		}

		// Grouping runs after the whole bucket returned so worker
		// completion order cannot affect membership.
		index := make(map[string]int)
		for _, r := range bucket {
			key := digestKey(r, e.opts.Algorithms)
			if key == "" {
				unreadable = append(unreadable, r)
				continue
			}
			i, ok := index[key]
			if !ok {
				i = len(groups)
				index[key] = i
				groups = append(groups, nil)
				keys = append(keys, key)
			}
			groups[i] = append(groups[i], r)
		}
	}

	res := collect(records, groups, keys, types.ReasonDuplicateHash)
	res.Hashed = hashed
	res.Unreadable = unreadable
	e.log.Info("exact dedup complete",
		"files", len(records), "hashed", hashed, "groups", len(res.Groups),
		"duplicates", len(res.Duplicates), "unreadable", len(unreadable))
	done("ok")
	return res, nil
}

// hashBucket fills in digests for every record of one size bucket on a
// bounded pool. It returns the number of files read.
func (e *Exact) hashBucket(ctx context.Context, bucket []*types.FileRecord, tracker *progress.Tracker) (int, error) {
	results := make([]map[string]string, len(bucket))
	read := make([]bool, len(bucket))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, r := range bucket {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if e.cache != nil {
				if d, ok := e.cache.Digests(r.Path, r.Size, r.ModTime, e.opts.Algorithms); ok {
					results[i] = d
					tracker.Skip(r.Size)
					return nil
				}
			}

			read[i] = true
			d, err := e.sum(gctx, r.Path, e.opts.Algorithms, e.opts.ChunkSize, tracker)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				e.log.Warn("file unreadable, keeping it", "path", r.Path, "error", err)
				tracker.Done(r.Path, r.Size, "unreadable")
				return nil
			}
			results[i] = d
			tracker.Done(r.Path, r.Size, "hashed")

			if e.cache != nil {
				if err := e.cache.PutDigests(r.Path, r.Size, r.ModTime, d); err != nil {
					e.log.Warn("failed to cache digests", "path", r.Path, "error", err)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	n := 0
	for i, r := range bucket {
		if read[i] {
			n++
		}
		for alg, v := range results[i] {
			r.SetDigest(alg, v)
		}
	}
	if err != nil {
		return n, fmt.Errorf("hashing cancelled: %w", err)
	}
	return n, nil
}

// digestKey is size plus every configured digest the record has, in
// configured order. It is empty when the record has no digest at all.
func digestKey(r *types.FileRecord, algorithms []string) string {
	var b strings.Builder
	for _, alg := range algorithms {
		v := r.Digest(alg)
		if v == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(alg)
		b.WriteByte('=')
		b.WriteString(v)
	}
	if b.Len() == 0 {
		return ""
	}
	return fmt.Sprintf("%d%s", r.Size, b.String())
}
