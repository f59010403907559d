package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/executor"
	"github.com/jamesainslie/phototidy/pkg/tidy/fileops"
	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/output"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/resume"
)

var (
	// errRunIncomplete is returned when a run finished with failures or
	// was interrupted, so the process exits non-zero.
	errRunIncomplete = errors.New("run did not complete")

	flagResume bool
)

var executeCmd = &cobra.Command{
	Use:   "execute [run-dir | manifest | output-root]",
	Short: "Execute a planned run",
	Long: `Execute the pending entries of a run's manifest. Entries that already
succeeded are skipped, so executing the same run again is safe.

With --resume and no argument the newest run under the configured
output_dir (or -O) is resumed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecuteCmd,
}

func init() {
	executeCmd.Flags().BoolVar(&flagResume, "resume", false, "resume the newest interrupted run")
	executeCmd.Flags().StringVarP(&flagOutput, "output", "O", "", "output root to search for runs")
	rootCmd.AddCommand(executeCmd)
}

func runExecuteCmd(_ *cobra.Command, args []string) error {
	path, err := executeTarget(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return executeManifest(ctx, cancel, path)
}

// executeTarget resolves the manifest to execute from args and flags.
func executeTarget(args []string) (string, error) {
	if len(args) == 1 {
		p, err := config.ExpandPath(args[0])
		if err != nil {
			return "", err
		}
		return resume.Locate(p)
	}
	if !flagResume {
		return "", errors.New("a run directory is required unless --resume is given")
	}

	root := flagOutput
	if root == "" {
		root = cfg.OutputDir
	}
	if root == "" {
		root = "."
	}
	root, err := config.ExpandPath(root)
	if err != nil {
		return "", err
	}
	return resume.FindManifest(root)
}

// executeManifest runs the pending entries of the manifest at path and
// reports the outcome.
func executeManifest(ctx context.Context, cancel context.CancelFunc, path string) error {
	entries, err := resume.Plan(path)
	if err != nil {
		return err
	}
	runDir := manifest.RunDirOf(path)
	if len(entries) == 0 {
		printInfo("Nothing to do: every entry of %s already succeeded.", path)
		return nil
	}

	sizes := make(map[string]int64, len(entries))
	for _, e := range entries {
		sizes[e.OpID] = e.SizeBytes
	}
	actions := resume.BuildActions(entries)
	printVerbose("executing %d of %d pending entries from %s", len(actions), len(entries), path)

	ops := fileops.New(fileops.OptionsFromConfig(*cfg))
	th := progress.ThresholdsFromConfig(cfg.Progress)

	start := time.Now()
	var res *executor.Result
	err = withProgress("Executing "+filepath.Base(runDir), cancel, func(em *progress.Emitter) error {
		var xerr error
		res, xerr = executor.New(ops, em, th).Execute(ctx, actions, path)
		return xerr
	})
	if err != nil {
		return err
	}

	r := executeResult(res, runDir, path, sizes, time.Since(start))
	if err := output.WriteReports(manifest.ReportDir(runDir), r); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if err := render(r); err != nil {
		return err
	}
	if !res.OK() {
		return errRunIncomplete
	}
	return nil
}
