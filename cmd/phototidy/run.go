package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/output"
	"github.com/jamesainslie/phototidy/pkg/tidy/pipeline"
)

var flagYes bool

var runCmd = &cobra.Command{
	Use:   "run <source>",
	Short: "Plan and execute in one step",
	Long: `Plan a run exactly like 'phototidy plan' and execute it immediately.
An interrupted run can be continued with 'phototidy execute --resume'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunCmd,
}

func init() {
	addPlanFlags(runCmd)
	runCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(runCmd)
}

func runRunCmd(_ *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	run, elapsed, err := planRun(ctx, cancel, args[0], pipeline.ModeExecute)
	if err != nil {
		return err
	}
	r := planResult(run, elapsed)
	if err := output.WriteReports(manifest.ReportDir(run.Dir), r); err != nil {
		return err
	}

	if run.Summary.NoChangesNeeded {
		return render(r)
	}
	if !flagYes {
		if err := render(r); err != nil {
			return err
		}
		if !confirm("Execute %d actions?", run.Summary.PlannedActions) {
			printInfo("Plan kept at %s", run.Dir)
			return nil
		}
	}
	return executeManifest(ctx, cancel, run.Manifest)
}
