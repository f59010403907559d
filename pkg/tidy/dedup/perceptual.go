package dedup

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// PhasePHash is the progress phase name used by the perceptual engine.
const PhasePHash = "phash"

// MaxThreshold is the largest accepted Hamming threshold.
const MaxThreshold = 16

// PHashCache stores perceptual hashes keyed by path, size and mtime.
type PHashCache interface {
	PHash(path string, size int64, mtime time.Time) (uint64, bool)
	PutPHash(path string, size int64, mtime time.Time, hash uint64) error
}

// PerceptualOptions configures the perceptual engine.
type PerceptualOptions struct {
	Threshold int
	Workers   int
	Progress  progress.Thresholds
}

// PerceptualOptionsFromConfig projects the phash settings.
func PerceptualOptionsFromConfig(cfg config.Config) PerceptualOptions {
	return PerceptualOptions{
		Threshold: cfg.PHash.Threshold,
		Workers:   cfg.Hash.ParallelWorkers,
		Progress:  progress.ThresholdsFromConfig(cfg.Progress),
	}
}

// Perceptual clusters visually similar images.
type Perceptual struct {
	opts        PerceptualOptions
	cache       PHashCache
	emitter     *progress.Emitter
	log         *logging.Logger
	fingerprint func(path string) (uint64, error)
}

// NewPerceptual returns a perceptual engine. cache and em may be nil.
func NewPerceptual(opts PerceptualOptions, cache PHashCache, em *progress.Emitter) *Perceptual {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	opts.Threshold = min(max(opts.Threshold, 0), MaxThreshold)
	return &Perceptual{
		opts:        opts,
		cache:       cache,
		emitter:     em,
		log:         logging.Get("dedup"),
		fingerprint: PHash,
	}
}

type cluster struct {
	rep     uint64
	members []*types.FileRecord
}

// Run clusters the image records and keeps one per cluster. Records that
// are not images, or cannot be decoded, are kept unconditionally.
//
// Clustering is greedy: records are visited in input order and each joins
// the first open cluster whose first member is within the threshold, so
// membership can depend on input order.
func (p *Perceptual) Run(ctx context.Context, records []*types.FileRecord) (*Result, error) {
	var images []*types.FileRecord
	for _, r := range records {
		if r.FileType == types.FileTypeImage {
			images = append(images, r)
		}
	}

	done := p.emitter.Phase(PhasePHash, len(images))
	tracker := progress.NewTracker(p.emitter, PhasePHash, 0, len(images), p.opts.Progress)
	stop := tracker.StartHeartbeat(ctx)
	defer stop()

	hashed, unreadable, err := p.fingerprintAll(ctx, images, tracker)
	if err != nil {
		done("cancelled")
		return nil, err
	}

	var clusters []*cluster
	for _, r := range images {
		if !r.HasPHash {
			continue
		}
		var joined bool
		for _, c := range clusters {
			if Hamming(r.PHash, c.rep) <= p.opts.Threshold {
				c.members = append(c.members, r)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, &cluster{rep: r.PHash, members: []*types.FileRecord{r}})
		}
	}

	groups := make([][]*types.FileRecord, len(clusters))
	keys := make([]string, len(clusters))
	for i, c := range clusters {
		groups[i] = c.members
		keys[i] = fmt.Sprintf("%016x", c.rep)
	}

	res := collect(records, groups, keys, types.ReasonDuplicatePHash)
	res.Hashed = hashed
	res.Unreadable = unreadable
	p.log.Info("perceptual dedup complete",
		"images", len(images), "fingerprinted", hashed, "clusters", len(clusters),
		"duplicates", len(res.Duplicates), "threshold", p.opts.Threshold)
	done("ok")
	return res, nil
}

func (p *Perceptual) fingerprintAll(ctx context.Context, images []*types.FileRecord, tracker *progress.Tracker) (int, []*types.FileRecord, error) {
	hashes := make([]uint64, len(images))
	ok := make([]bool, len(images))
	read := make([]bool, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, r := range images {
		if r.HasPHash {
			hashes[i], ok[i] = r.PHash, true
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if p.cache != nil {
				if h, hit := p.cache.PHash(r.Path, r.Size, r.ModTime); hit {
					hashes[i], ok[i] = h, true
					tracker.Skip(0)
					return nil
				}
			}

			read[i] = true
			h, err := p.fingerprint(r.Path)
			if err != nil {
				p.log.Debug("no fingerprint, keeping file", "path", r.Path, "error", err)
				tracker.Done(r.Path, r.Size, "unreadable")
				return nil
			}
			hashes[i], ok[i] = h, true
			tracker.Done(r.Path, r.Size, "hashed")

			if p.cache != nil {
				if err := p.cache.PutPHash(r.Path, r.Size, r.ModTime, h); err != nil {
					p.log.Warn("failed to cache phash", "path", r.Path, "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, fmt.Errorf("fingerprinting cancelled: %w", err)
	}

	var n int
	var unreadable []*types.FileRecord
	for i, r := range images {
		if read[i] {
			n++
		}
		if !ok[i] {
			unreadable = append(unreadable, r)
			continue
		}
		r.PHash, r.HasPHash = hashes[i], true
	}
	return n, unreadable, nil
}
