package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/fileops"
	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/output"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/resume"
	"github.com/jamesainslie/phototidy/pkg/tidy/rollback"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <run-dir | manifest>",
	Short: "Undo the changes of an executed run",
	Long: `Replay a run's manifest backwards and return every moved or renamed file
to where it came from. Copies are moved to ROLLBACK_TRASH, and files whose
original path is occupied again are parked in ROLLBACK_CONFLICTS.

Every outcome is appended to the manifest, so rolling back twice only
retries what failed the first time.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollbackCmd,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

func runRollbackCmd(_ *cobra.Command, args []string) error {
	target, err := config.ExpandPath(args[0])
	if err != nil {
		return err
	}
	path, err := resume.Locate(target)
	if err != nil {
		return err
	}
	runDir := manifest.RunDirOf(path)

	ctx, cancel := signalContext()
	defer cancel()

	ops := fileops.New(fileops.OptionsFromConfig(*cfg))
	th := progress.ThresholdsFromConfig(cfg.Progress)

	start := time.Now()
	var res *rollback.Result
	err = withProgress("Rolling back "+filepath.Base(runDir), cancel, func(em *progress.Emitter) error {
		var rerr error
		res, rerr = rollback.New(ops, em, th).Run(ctx, runDir)
		return rerr
	})
	if err != nil {
		return err
	}

	if len(res.Entries) == 0 && !res.Cancelled {
		printInfo("Nothing to roll back in %s.", runDir)
		return nil
	}

	r := rollbackResult(res, time.Since(start))
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
