package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/resume"
)

var runsCmd = &cobra.Command{
	Use:   "runs [output-root]",
	Short: "List runs and whether they can be resumed",
	Long: `List the Processed_* run directories under an output root, newest first.
Without an argument the configured output_dir is listed, or the current
directory when none is configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRunsCmd,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRunsCmd(_ *cobra.Command, args []string) error {
	root := cfg.OutputDir
	if len(args) == 1 {
		root = args[0]
	}
	if root == "" {
		root = "."
	}
	root, err := config.ExpandPath(root)
	if err != nil {
		return err
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	runs, err := resume.ListRuns(root)
	if err != nil {
		return err
	}
	return render(runsResult(root, runs))
}
