// Package cmd implements pahkat's CLI front-end: a thin cobra command
// tree that consumes the engine's public API only (internal/repo,
// internal/resolver, internal/transaction, internal/store) and renders
// its event stream to the terminal. Kept intentionally minimal: it
// exists to exercise the engine end to end, not as a product surface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pahkat/src/internal/config"
	"pahkat/src/internal/telemetry"
	"pahkat/src/internal/xdgdir"
)

var cfgFile string
var profileEnabled bool
var profileDir string
var prefixDir string
var cacheDir string

var rootCmd = &cobra.Command{
	Use:   "pahkat",
	Short: "pahkat manages package installs against a prefix via content-addressed caching",
	Long: `pahkat resolves package releases from one or more repository indexes,
downloads their payloads into a content-addressed cache, and applies
install/uninstall transactions against a prefix tracked in a local
sqlite ledger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !profileEnabled {
			return nil
		}
		dir := strings.TrimSpace(profileDir)
		if dir == "" {
			dir = filepath.Join(xdgdir.MustHome(), "profiles")
		}
		info, err := telemetry.Start(dir)
		if err != nil {
			return err
		}
		telemetry.Event(
			"command.start",
			"command", cmd.CommandPath(),
			"args_count", len(args),
			"config", viper.ConfigFileUsed(),
		)
		fmt.Printf("Profiling enabled.\nLogs: %s\nCPU: %s\nHeap: %s\n", info.LogPath, info.CPUPath, info.HeapPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if !profileEnabled {
			return
		}
		telemetry.Event("command.stop", "command", cmd.CommandPath())
		if _, err := telemetry.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush profiling artifacts: %v\n", err)
		}
	},
}

// Execute runs the command tree. Subcommands call os.Exit themselves
// with their own exit codes; a non-nil error here means cobra itself
// failed before dispatching (bad flags, unknown command), which maps to
// the configuration/IO bucket.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(4)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is pahkat's global config)")
	rootCmd.PersistentFlags().StringVar(&prefixDir, "prefix", "", "install prefix (default: <pahkat-home>/prefix)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "download cache directory (default: <pahkat-home>/cache)")
	rootCmd.PersistentFlags().BoolVar(&profileEnabled, "profile", false, "collect CPU/heap profiles and structured timing logs")
	rootCmd.PersistentFlags().StringVar(&profileDir, "profile-dir", "", "directory for profiling artifacts (default: <pahkat-home>/profiles)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigFile(xdgdir.ConfigFile())
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		// Config file found and read.
	}
}

// loadConfig resolves the engine configuration for a subcommand,
// honoring a --config override of the on-disk default location.
func loadConfig(permission config.Permission) (config.Config, error) {
	var cfg config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile, permission)
	} else {
		cfg, err = config.LoadOrCreate(xdgdir.MustHome(), permission)
	}
	if err != nil {
		return config.Config{}, err
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	return cfg, nil
}

func resolvedPrefixDir() string {
	if prefixDir != "" {
		return prefixDir
	}
	return xdgdir.DefaultPrefixDir()
}
