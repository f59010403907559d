package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/output"
	"github.com/jamesainslie/phototidy/pkg/tidy/pipeline"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/tuner"
)

var (
	flagOutput      string
	flagNoPHash     bool
	flagRename      bool
	flagWorkers     int
	flagAutoWorkers bool
)

var planCmd = &cobra.Command{
	Use:   "plan <source>",
	Short: "Plan a run without touching any file",
	Long: `Scan the source, detect thumbnails and duplicates and write the plan as a
manifest of PLANNED entries into a new run directory, together with
REPORT/summary.txt and REPORT/report.csv.

Execute the plan later with 'phototidy execute <run-dir>'.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanCmd,
}

func init() {
	addPlanFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}

// addPlanFlags registers the flags shared by plan and run.
func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagOutput, "output", "O", "", "output root for run directories (default: output_dir or the source)")
	cmd.Flags().BoolVar(&flagNoPHash, "no-phash", false, "skip perceptual duplicate detection")
	cmd.Flags().BoolVar(&flagRename, "rename", false, "plan IMG_/VID_ renames for kept files")
	cmd.Flags().IntVarP(&flagWorkers, "workers", "w", 0, "hashing workers (default: hash.parallel_workers)")
	cmd.Flags().BoolVar(&flagAutoWorkers, "auto-workers", false, "size hashing workers from CPU and memory")
}

// planConfig returns the loaded config with plan flag overrides applied.
func planConfig() config.Config {
	c := *cfg
	if flagNoPHash {
		c.PHash.Enabled = false
	}
	if flagRename {
		c.Rename.Enabled = true
	}
	switch {
	case flagAutoWorkers:
		res, err := tuner.Detect()
		if err != nil {
			printVerbose("resource detection failed: %v", err)
		}
		c.Hash.ParallelWorkers = tuner.CalculateWithOverride(res, flagWorkers).Hash
		printVerbose("hashing with %d workers (%d cores)", c.Hash.ParallelWorkers, res.CPUCores)
	case flagWorkers > 0:
		c.Hash.ParallelWorkers = flagWorkers
	}
	return c
}

func runPlanCmd(_ *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	run, elapsed, err := planRun(ctx, cancel, args[0], pipeline.ModeDryRun)
	if err != nil {
		return err
	}

	r := planResult(run, elapsed)
	if err := output.WriteReports(manifest.ReportDir(run.Dir), r); err != nil {
		return err
	}
	if err := render(r); err != nil {
		return err
	}
	if !run.Summary.NoChangesNeeded {
		printInfo("\nExecute with: phototidy execute %s", run.Dir)
	}
	return nil
}

// planRun scans source and writes a plan in mode.
func planRun(ctx context.Context, cancel context.CancelFunc, source, mode string) (*pipeline.Run, time.Duration, error) {
	expanded, err := config.ExpandPath(source)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to expand path: %w", err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot access source: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("source is not a directory: %s", expanded)
	}
	out, err := config.ExpandPath(flagOutput)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to expand path: %w", err)
	}

	dc := openDigestCache()
	if dc != nil {
		defer func() { _ = dc.Close() }()
	}

	start := time.Now()
	var run *pipeline.Run
	err = withProgress("Planning "+expanded, cancel, func(em *progress.Emitter) error {
		var perr error
		run, perr = pipeline.New(planConfig(), dc, em).Plan(ctx, expanded, out, mode)
		return perr
	})
	if err != nil {
		return nil, 0, err
	}
	if dc != nil {
		hits, misses := dc.Stats()
		printVerbose("digest cache: %d hits, %d misses", hits, misses)
	}
	return run, time.Since(start), nil
}
