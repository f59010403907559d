package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/phototidy/pkg/tidy/cache"
	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// cfg is the configuration loaded by initializeLogging.
var cfg *config.Config

// initializeLogging is the PersistentPreRunE hook. It loads the
// configuration, ensures the state and cache directories exist and
// initializes file logging.
func initializeLogging(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	for _, dir := range []string{config.StateDir(), config.CacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	lc := logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.Logging.Path,
		Rotation:     parseRotationConfig(cfg.Logging.Rotation),
		Components:   cfg.Logging.Components,
		ConsoleLevel: cfg.Logging.ConsoleLevel,
		Interactive:  useTUI(),
	}
	if flagVerbose {
		lc.ConsoleLevel = "debug"
	}
	if err := logging.Init(lc); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

func closeLogging() {
	_ = logging.Close()
}

// parseRotationConfig converts the config file's rotation settings. An
// empty or unparsable max_size falls back to the default.
func parseRotationConfig(c config.RotationConfig) logging.RotationConfig {
	rc := logging.RotationConfig{
		MaxSize:    logging.DefaultRotationConfig().MaxSize,
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		Daily:      c.Daily,
	}
	if c.MaxSize != "" {
		if size, err := types.ParseSize(c.MaxSize); err == nil && size > 0 {
			rc.MaxSize = size
		}
	}
	return rc
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openDigestCache opens the persistent digest cache. It returns nil when
// caching is disabled or the cache is unavailable, for example while
// another phototidy process holds it.
func openDigestCache() *cache.DigestCache {
	if flagNoCache || !cfg.Hash.Cache {
		return nil
	}
	store, err := cache.Open(config.DigestCachePath())
	if err != nil {
		logging.Get("cache").Warn("digest cache unavailable", "error", err)
		printVerbose("digest cache unavailable: %v", err)
		return nil
	}
	return cache.NewDigestCache(store)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// useTUI reports whether progress is shown with the interactive TUI.
func useTUI() bool {
	return !flagNoInteractive && !flagQuiet && flagFormat == "pretty" && isTerminal(os.Stdout) && isTerminal(os.Stdin)
}
