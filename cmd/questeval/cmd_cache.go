package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pgquest/questeval/internal/cache"
	"github.com/pgquest/questeval/internal/config"
)

var clearCacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
		Long: `Manage the quest result cache.

The cache stores execution results keyed by content fingerprint, so unchanged
quest files are not re-executed on repeated runs.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the result cache",
		Long: `Clear all cached quest results.

The next batch run will re-execute every quest from scratch.`,
		RunE: cacheClearE,
	}

	cmd.Flags().StringVar(&clearCacheDir, "cache-dir", config.DefaultCacheDir, "Cache directory to clear")

	return cmd
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	// Resolve to absolute path
	absDir, err := filepath.Abs(clearCacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	// A sqlite backend keeps its entries in a single database file inside
	// the cache directory. Clear whichever backend lives there.
	dbPath := filepath.Join(absDir, "results.db")
	if _, err := os.Stat(dbPath); err == nil {
		sqlCache, err := cache.NewSQLiteCache(dbPath, 0)
		if err != nil {
			return fmt.Errorf("opening sqlite cache: %w", err)
		}
		defer sqlCache.Close()
		if err := sqlCache.Clear(); err != nil {
			return fmt.Errorf("clearing sqlite cache: %w", err)
		}
	} else {
		c := cache.NewFileCache(absDir)
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
	}

	fmt.Printf("Cache cleared: %s\n", absDir)
	return nil
}
