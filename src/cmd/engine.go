package cmd

import (
	"context"
	"fmt"

	"pahkat/src/internal/config"
	"pahkat/src/internal/download"
	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/repo"
	"pahkat/src/internal/store"
)

// engine bundles the components every subcommand needs: the loaded
// config, a refreshed repo cache, the download manager, and the prefix
// store backing install/uninstall/status.
type engine struct {
	cfg       config.Config
	cache     *repo.Cache
	downloads *download.Manager
	store     *store.PrefixStore
}

// newEngine wires up the engine's components for a mutating subcommand
// (install, uninstall, import): config loaded ReadWrite,
// repo cache refreshed against the configured repositories.
func newEngine(ctx context.Context) (*engine, error) {
	return buildEngine(ctx, config.ReadWrite)
}

// newReadOnlyEngine is used by status, which never mutates config or
// the prefix store's ledger beyond what Status itself does.
func newReadOnlyEngine(ctx context.Context) (*engine, error) {
	return buildEngine(ctx, config.ReadOnly)
}

func buildEngine(ctx context.Context, permission config.Permission) (*engine, error) {
	cfg, err := loadConfig(permission)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cache := repo.New(cfg.CacheDir)
	if err := cache.Refresh(ctx, cfg.RepoURLs()); err != nil {
		return nil, fmt.Errorf("refresh repositories: %w", err)
	}

	downloads := download.New(cfg.CacheDir)

	prefixStore, err := store.Open(resolvedPrefixDir(), downloads)
	if err != nil {
		return nil, fmt.Errorf("open prefix store: %w", err)
	}

	return &engine{cfg: cfg, cache: cache, downloads: downloads, store: prefixStore}, nil
}

func (e *engine) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

// resolveKey parses a bare package id or a canonical package-key string
// into a pahkattype.PackageKey, searching the engine's current snapshot
// when given a bare id. Mirrors PackageStore::find_package_by_id being
// the CLI's shorthand entry point.
func (e *engine) resolveKey(arg string) (pahkattype.PackageKey, error) {
	if key, err := pahkattype.ParsePackageKey(arg); err == nil && key.RepositoryURL != "" {
		return e.withDefaultArch(key), nil
	}

	key, _, ok := repo.FindByID(arg, e.cache.Snapshot())
	if !ok {
		return pahkattype.PackageKey{}, fmt.Errorf("no package named %q found in configured repositories", arg)
	}
	return e.withDefaultArch(key), nil
}

// withDefaultArch fills in the host architecture from the loaded config
// when a key's query leaves it unset, so resolution defaults to the host
// arch instead of matching every architecture.
func (e *engine) withDefaultArch(key pahkattype.PackageKey) pahkattype.PackageKey {
	if key.Query.Arch == "" {
		key.Query.Arch = e.cfg.Arch
	}
	return key
}
