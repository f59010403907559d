package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Build-time variables set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var flagShortVersion bool

type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OSArch  string `json:"os_arch"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version, commit hash, and build date of phototidy. With -f json the same fields are printed as JSON.`,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&flagShortVersion, "short", false, "print the version number only")
	rootCmd.AddCommand(versionCmd)
}

func currentBuild() buildInfo {
	return buildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
		OSArch:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func runVersion(_ *cobra.Command, _ []string) error {
	info := currentBuild()
	switch {
	case flagShortVersion:
		fmt.Println(info.Version)
	case flagFormat == "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	default:
		fmt.Printf("phototidy %s\n", info.Version)
		fmt.Printf("  commit:  %s\n", info.Commit)
		fmt.Printf("  built:   %s\n", info.Date)
		fmt.Printf("  go:      %s\n", info.Go)
		fmt.Printf("  os/arch: %s\n", info.OSArch)
	}
	return nil
}
