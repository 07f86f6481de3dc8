package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <package>...",
	Short: "Report each package's install status against the currently resolvable release",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runStatus(args))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(args []string) int {
	ctx := context.Background()

	eng, err := newReadOnlyEngine(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 4
	}
	defer eng.Close()

	snapshot := eng.cache.Snapshot()
	exit := 0
	for _, arg := range args {
		key, err := eng.resolveKey(arg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			exit = 2
			continue
		}

		status, err := eng.store.Status(ctx, key, snapshot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", key.PackageID, err)
			exit = 2
			continue
		}
		fmt.Printf("%s\t%s\n", key.PackageID, status)
	}
	return exit
}
