package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage phototidy configuration settings.

Configuration is loaded from:
  1. --config <file> (if given)
  2. $XDG_CONFIG_HOME/phototidy/config.yaml
  3. ~/.config/phototidy/config.yaml

Environment variables override file settings using the PHOTOTIDY_ prefix:
  PHOTOTIDY_OUTPUT_DIR=/mnt/archive
  PHOTOTIDY_HASH_PARALLEL_WORKERS=8
  PHOTOTIDY_PHASH_THRESHOLD=6`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Print the configuration after defaults, the config file and environment overrides are merged.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the configuration file",
	Long: `Open the configuration file in your editor ($VISUAL, then $EDITOR, then vi).
A default file is written first when none exists.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configPath returns --config when given, else the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return config.ExpandPath(cfgFile)
	}
	return config.DefaultConfigPath()
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("# config file: %s\n", path)
	} else {
		fmt.Println("# config file: (none, using defaults)")
	}

	var overrides []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, config.EnvPrefix+"_") {
			overrides = append(overrides, kv)
		}
	}
	for _, kv := range overrides {
		fmt.Printf("# env: %s\n", kv)
	}

	body, err := config.Marshal(*cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(body)
	return err
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	printVerbose("Opening %s with %s", path, editor)

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	// Surface mistakes now rather than on the next run.
	if _, err := config.Load(path); err != nil {
		printError("the edited configuration does not load: %v", err)
	}
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	created, err := config.WriteDefault(path)
	if err != nil {
		return err
	}
	if !created {
		printInfo("Config file already exists: %s", path)
		printInfo("Use 'phototidy config edit' to modify it.")
		return nil
	}
	printInfo("Created default config file: %s", path)
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	fmt.Println(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		printVerbose("File does not exist (defaults apply)")
	}
	return nil
}
