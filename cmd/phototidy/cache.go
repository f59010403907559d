package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/phototidy/pkg/tidy/cache"
	"github.com/jamesainslie/phototidy/pkg/tidy/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the digest cache",
	Long: `Commands for managing the digest cache.

The cache keeps content digests and perceptual hashes keyed by path, size
and modification time, so unchanged files are not hashed again. It lives
in the XDG cache directory (typically ~/.cache/phototidy/digests).`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [dir]",
	Short: "Show cache statistics",
	Long:  `Show the cache location, its size on disk and the number of cached files, optionally only those under dir.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [dir]",
	Short: "Clear cached digests",
	Long:  `Remove every cached entry, or only the entries for files under dir.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(config.DigestCachePath())
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// cacheScope turns an optional dir argument into an absolute prefix.
func cacheScope(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	p, err := config.ExpandPath(args[0])
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

func runCacheStats(_ *cobra.Command, args []string) error {
	path := config.DigestCachePath()
	fmt.Printf("Cache location: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("Cache: empty (no cache directory)")
		return nil
	}

	var size int64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to calculate cache size: %w", err)
	}
	fmt.Printf("Cache size: %s\n", humanize.IBytes(uint64(size)))

	scope, err := cacheScope(args)
	if err != nil {
		return err
	}
	store, err := cache.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	n, err := store.Count(scope)
	if err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}
	if scope != "" {
		fmt.Printf("Cached files under %s: %s\n", scope, humanize.Comma(int64(n)))
	} else {
		fmt.Printf("Cached files: %s\n", humanize.Comma(int64(n)))
	}
	return nil
}

func runCacheClear(_ *cobra.Command, args []string) error {
	path := config.DigestCachePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("Cache is already empty.")
		return nil
	}

	scope, err := cacheScope(args)
	if err != nil {
		return err
	}
	if scope == "" {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Cache cleared.")
		return nil
	}

	store, err := cache.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	n, err := store.DeletePrefix(scope)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Printf("Removed %s cached files under %s.\n", humanize.Comma(int64(n)), scope)
	return nil
}
