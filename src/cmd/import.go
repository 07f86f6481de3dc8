package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pahkat/src/internal/resolver"
)

var importCmd = &cobra.Command{
	Use:   "import <package> <file>",
	Short: "Seed the download cache from a local installer file instead of fetching it",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runImport(args[0], args[1]))
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// runImport resolves arg to the payload the engine would otherwise
// download, then hands the caller-supplied file to the prefix store's
// Import so a later install reuses it from the cache instead of
// fetching it over the network.
func runImport(arg, sourcePath string) int {
	ctx := context.Background()

	eng, err := newEngine(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 4
	}
	defer eng.Close()

	snapshot := eng.cache.Snapshot()

	key, err := eng.resolveKey(arg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	res, err := resolver.Resolve(key, key.Query, snapshot)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}

	path, err := eng.store.Import(res.Target.Payload, sourcePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}

	fmt.Printf("%s\t%s\n", key.PackageID, path)
	return 0
}
