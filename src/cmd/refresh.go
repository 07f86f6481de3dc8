package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pahkat/src/internal/config"
	"pahkat/src/internal/repo"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refetch every configured repository's index",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runRefresh())
	},
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete the on-disk download cache",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runClearCache())
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(clearCacheCmd)
}

func runRefresh() int {
	cfg, err := loadConfig(config.ReadWrite)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 4
	}

	cache := repo.New(cfg.CacheDir)
	if err := cache.Refresh(context.Background(), cfg.RepoURLs()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}

	snapshot := cache.Snapshot()
	total := 0
	for _, idx := range snapshot {
		total += len(idx.Packages)
	}
	fmt.Printf("refreshed %d repositories (%d packages)\n", len(snapshot), total)
	return 0
}

func runClearCache() int {
	cfg, err := loadConfig(config.ReadWrite)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 4
	}

	cache := repo.New(cfg.CacheDir)
	if err := cache.ClearCache(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}
	fmt.Println("cache cleared")
	return 0
}
