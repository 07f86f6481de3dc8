package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pahkat/src/internal/transaction"
)

var installCmd = &cobra.Command{
	Use:   "install <package>...",
	Short: "Resolve, download, and install one or more packages into the prefix",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runTransaction(args, transaction.Install))
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <package>...",
	Short: "Uninstall one or more packages from the prefix",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runTransaction(args, transaction.Uninstall))
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}

// runTransaction is shared by install and uninstall: it builds an engine,
// resolves the given package arguments to keys, builds a Plan, drives it
// through a Transaction, and renders the event stream. Returns the
// process exit code.
func runTransaction(args []string, kind transaction.ActionKind) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 4
	}
	defer eng.Close()

	snapshot := eng.cache.Snapshot()

	actions := make([]transaction.Action, 0, len(args))
	for _, arg := range args {
		key, err := eng.resolveKey(arg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		actions = append(actions, transaction.Action{Kind: kind, Key: key})
	}

	plan, err := transaction.Build(actions, snapshot)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: could not build plan:", err)
		return 1
	}

	tx := transaction.New(plan, eng.store, eng.downloads, snapshot, transaction.DefaultParallelism)
	canceler, events := tx.Process(ctx)

	go func() {
		<-ctx.Done()
		canceler.Cancel()
	}()

	return renderEvents(events)
}

// renderEvents consumes a transaction's event stream, rendering download
// progress bars and step announcements, and returns the process exit
// code corresponding to the stream's terminal event.
func renderEvents(events <-chan transaction.Event) int {
	bars := map[string]*progressbar.ProgressBar{}

	barFor := func(key string, total int64) *progressbar.ProgressBar {
		if b, ok := bars[key]; ok {
			return b
		}
		b := progressbar.DefaultBytes(total, key)
		bars[key] = b
		return b
	}

	for ev := range events {
		switch ev.Kind {
		case transaction.TransactionStarted:
			fmt.Printf("planned %d step(s)\n", ev.Steps)
		case transaction.DownloadProgress:
			barFor(ev.Key.String(), ev.Total).Set64(ev.Current)
		case transaction.DownloadComplete:
			if b, ok := bars[ev.Key.String()]; ok {
				_ = b.Finish()
			}
		case transaction.InstallStarted:
			fmt.Printf("installing %s\n", ev.Key.PackageID)
		case transaction.UninstallStarted:
			fmt.Printf("uninstalling %s\n", ev.Key.PackageID)
		case transaction.TransactionProgress:
			fmt.Printf("[%d/%d] %s %s\n", ev.Done, ev.Steps, ev.Phase, ev.Key.PackageID)
		case transaction.TransactionComplete:
			fmt.Println("done")
			return 0
		case transaction.TransactionError:
			if errors.Is(ev.Reason, transaction.ErrCancelled) {
				fmt.Fprintln(os.Stderr, "cancelled")
				return 3
			}
			fmt.Fprintln(os.Stderr, "error:", ev.Reason)
			return 2
		}
	}
	return 0
}
