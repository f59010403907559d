// Package scanner walks a photo tree and builds file records: type by
// extension, pixel resolution, and a locked capture timestamp.
package scanner

import (
	"fmt"
	"runtime"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
)

// Options configures the scanner.
type Options struct {
	// Exclude holds glob patterns matched against the base name of every
	// directory and file below the root. A matching directory is pruned.
	Exclude []string

	// Workers is the number of fastwalk goroutines.
	Workers int

	// ReadMetadata enables resolution and EXIF extraction. When false only
	// stat information and the filesystem timestamp are recorded.
	ReadMetadata bool

	Progress progress.Thresholds
}

// DefaultOptions returns options with the default exclusions.
func DefaultOptions() Options {
	return Options{
		Exclude:      config.DefaultExclusions,
		Workers:      runtime.NumCPU(),
		ReadMetadata: true,
	}
}

// OptionsFromConfig projects the scan settings.
func OptionsFromConfig(cfg config.Config) Options {
	opts := DefaultOptions()
	opts.Exclude = cfg.Scan.Exclude
	opts.Progress = progress.ThresholdsFromConfig(cfg.Progress)
	return opts
}

// compile validates options and compiles the exclusion globs.
func (o *Options) compile() ([]glob.Glob, error) {
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}
	globs := make([]glob.Glob, 0, len(o.Exclude))
	for _, pattern := range o.Exclude {
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
