package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string

	flagFormat        string
	flagNoInteractive bool
	flagQuiet         bool
	flagVerbose       bool
	flagNoCache       bool

	rootCmd = &cobra.Command{
		Use:   "phototidy",
		Short: "Deduplicate and organize photo libraries safely",
		Long: `Phototidy finds thumbnails and duplicate photos, plans where every file
should go and moves them with a journal that makes each run resumable
and reversible.

Nothing is deleted: duplicates and thumbnails are moved into holding
folders inside a run directory for review.

Examples:
  phototidy plan ~/Pictures              # Dry run: write a plan and report
  phototidy run ~/Pictures -O /mnt/tidy  # Plan and execute in one go
  phototidy execute /mnt/tidy/Processed_20240101_120000
  phototidy execute --resume -O /mnt/tidy
  phototidy rollback /mnt/tidy/Processed_20240101_120000
  phototidy runs /mnt/tidy               # List earlier runs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initializeLogging,
		PersistentPostRun: func(*cobra.Command, []string) { closeLogging() },
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/phototidy/config.yaml)")
	pf.StringVarP(&flagFormat, "format", "f", "pretty", "output format (pretty, plain, json, jsonl, yaml, csv, tsv)")
	pf.BoolVarP(&flagNoInteractive, "no-interactive", "n", false, "disable the progress TUI")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "minimal output")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug output on stderr")
	pf.BoolVar(&flagNoCache, "no-cache", false, "bypass the digest cache")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if flagVerbose && !flagQuiet {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...any) {
	if !flagQuiet {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
