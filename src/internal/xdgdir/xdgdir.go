// Package xdgdir resolves the default directories pahkat uses when a
// caller does not supply an explicit prefix or cache directory: the
// per-user config home, the default download cache, and the default
// install prefix. Adapted from internal/xedir.
package xdgdir

import (
	"os"
	"path/filepath"
	"runtime"
)

// Home returns the per-user directory pahkat stores its own state under
// (configuration, default cache) — not to be confused with an install
// prefix, which is caller-supplied and may live anywhere.
func Home() (string, error) {
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "pahkat"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "AppData", "Local", "pahkat"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "pahkat"), nil
}

// MustHome returns Home, falling back to a relative "pahkat" directory if
// the user's home directory cannot be determined.
func MustHome() string {
	home, err := Home()
	if err != nil {
		return "pahkat"
	}
	return home
}

// ConfigFile returns the default path of the engine's configuration file.
func ConfigFile() string {
	return filepath.Join(MustHome(), "config.toml")
}

// DefaultCacheDir returns the default download-cache root.
func DefaultCacheDir() string {
	return filepath.Join(MustHome(), "cache")
}

// DefaultPrefixDir returns the default prefix directory used when a
// caller does not specify one explicitly.
func DefaultPrefixDir() string {
	return filepath.Join(MustHome(), "prefix")
}

// EnsureHome creates the per-user pahkat directory if it does not exist.
func EnsureHome() error {
	return os.MkdirAll(MustHome(), 0o755)
}
