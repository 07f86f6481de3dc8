// Package store implements the package store: PrefixStore unpacks
// resolved tarball payloads into a prefix directory and records
// installed files in an embedded SQL ledger; SystemStore stubs the same
// contract for OS-native installers. Grounded on
// original_source/pahkat-client-core/src/package_store/prefix.rs.
package store

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ulikunitz/xz"
	"zombiezen.com/go/sqlite/sqlitex"

	"pahkat/src/internal/download"
	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/resolver"
	"pahkat/src/internal/telemetry"
)

// poolSize and idleTimeout mirror the r2d2 pool configuration in
// original_source/pahkat-client-core's prefix store (max_size(4),
// idle_timeout(10s)).
const (
	poolSize    = 4
	idleTimeout = 10 * time.Second
)

// Install/uninstall/status error taxonomy.
var (
	ErrPackageNotInCache = errors.New("store: payload not present in download cache")
	ErrWrongPayloadType  = errors.New("store: resolved target is not a TarballPackage")
	ErrUnsafePath        = errors.New("store: tarball entry escapes package directory")
	ErrDatabaseWrite     = errors.New("store: database write failed")
	ErrNotInstalled      = errors.New("store: package is not installed")
)

// PrefixStore is the user-level package store: extracted files live
// under <prefix>/pkg/<package-id>/, installed-file bookkeeping lives in
// <prefix>/packages.sqlite.
type PrefixStore struct {
	prefix    string
	pool      *sqlitex.Pool
	downloads *download.Manager

	closeIdle chan struct{}
}

// Open creates prefix if necessary and opens (creating if absent) its
// package database, applying the schema idempotently.
func Open(prefix string, downloads *download.Manager) (*PrefixStore, error) {
	prefix, err := filepath.Abs(prefix)
	if err != nil {
		return nil, fmt.Errorf("store: resolving prefix path: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(prefix, "pkg"), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating prefix directories: %w", err)
	}

	dbPath := filepath.Join(prefix, "packages.sqlite")
	pool, err := sqlitex.NewPool(dbPath, sqlitex.PoolOptions{PoolSize: poolSize})
	if err != nil {
		return nil, fmt.Errorf("store: opening package database: %w", err)
	}

	ctx := context.Background()
	conn, err := pool.Get(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: acquiring connection for schema init: %w", err)
	}
	err = sqlitex.ExecuteScript(conn, schemaSQL, nil)
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}

	s := &PrefixStore{
		prefix:    prefix,
		pool:      pool,
		downloads: downloads,
		closeIdle: make(chan struct{}),
	}
	go s.evictIdleConns()
	return s, nil
}

// Close stops the idle-connection evictor and closes the pool.
func (s *PrefixStore) Close() error {
	close(s.closeIdle)
	return s.pool.Close()
}

// evictIdleConns periodically returns a momentarily-taken connection to
// the pool, modeling the r2d2 idle_timeout(10s) setting: zombiezen's
// sqlitex.Pool has no native idle-eviction knob, so a spare connection is
// cycled through Get/Put on the configured interval to bound how long a
// single connection can sit unused inside the pool without being
// exercised (documented in DESIGN.md under internal/store).
func (s *PrefixStore) evictIdleConns() {
	ticker := time.NewTicker(idleTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-s.closeIdle:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			conn, err := s.pool.Get(ctx)
			cancel()
			if err == nil {
				s.pool.Put(conn)
			}
		}
	}
}

func (s *PrefixStore) packageDir(packageID string) string {
	return filepath.Join(s.prefix, "pkg", packageID)
}

// Install unpacks a resolved TarballPackage payload already present in
// the download cache into the prefix and records it in the ledger.
// Atomicity: extraction happens before the DB commit; a DB failure
// leaves extracted files in place (ErrDatabaseWrite, no automatic file
// rollback).
func (s *PrefixStore) Install(ctx context.Context, key pahkattype.PackageKey, res resolver.Result) (pahkattype.PackageStatus, error) {
	done := telemetry.StartSpan("store.install", "key", key.String())

	tarball := res.Target.Payload.TarballPackage
	if res.Target.Payload.Kind != pahkattype.KindTarballPackage || tarball == nil {
		done("status", "error", "error", "wrong payload type")
		return 0, ErrWrongPayloadType
	}

	cachedPath := s.downloads.Path(tarball.SHA256)
	if _, err := os.Stat(cachedPath); err != nil {
		done("status", "error", "error", "not in cache")
		return 0, fmt.Errorf("%w: %s", ErrPackageNotInCache, key)
	}

	pkgDir := s.packageDir(res.Descriptor.ID)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		done("status", "error", "error", err.Error())
		return 0, fmt.Errorf("store: creating package directory: %w", err)
	}

	files, err := unpackTarball(cachedPath, pkgDir)
	if err != nil {
		done("status", "error", "error", err.Error())
		return 0, err
	}

	deps := make([]string, 0, len(res.Target.Dependencies))
	for id := range res.Target.Dependencies {
		deps = append(deps, id)
	}
	sort.Strings(deps)
	sort.Strings(files)

	conn, err := s.pool.Get(ctx)
	if err != nil {
		done("status", "error", "error", err.Error())
		return 0, fmt.Errorf("store: acquiring connection: %w", err)
	}
	defer s.pool.Put(conn)

	rec := &record{url: key.String(), version: res.Release.Version, files: files, dependencies: deps}
	if err := replace(conn, rec); err != nil {
		done("status", "error", "error", err.Error())
		return 0, fmt.Errorf("%w: %v", ErrDatabaseWrite, err)
	}

	done("status", "ok", "files", len(files))
	return pahkattype.UpToDate, nil
}

// unpackTarball xz-decompresses tarPath and extracts every entry under
// destRoot, rejecting entries that would escape it. It returns the
// relative paths successfully unpacked.
func unpackTarball(tarPath, destRoot string) ([]string, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, fmt.Errorf("store: opening cached payload: %w", err)
	}
	defer f.Close()

	xzReader, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("store: initializing xz decompressor: %w", err)
	}

	tr := tar.NewReader(xzReader)
	var files []string

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return files, fmt.Errorf("store: reading tar entry: %w", err)
		}

		relPath, err := safeJoin(destRoot, hdr.Name)
		if err != nil {
			return files, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(relPath.abs, 0o755); err != nil {
				return files, fmt.Errorf("store: creating directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(relPath.abs), 0o755); err != nil {
				return files, fmt.Errorf("store: creating parent directory: %w", err)
			}
			out, err := os.OpenFile(relPath.abs, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode&0o777))
			if err != nil {
				return files, fmt.Errorf("store: creating file: %w", err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return files, fmt.Errorf("store: writing file: %w", err)
			}
			out.Close()
			files = append(files, relPath.rel)
		default:
			// Symlinks and other entry kinds are skipped; the ledger only
			// tracks regular files.
			continue
		}
	}

	return files, nil
}

type joined struct {
	abs string
	rel string
}

// safeJoin resolves name under root, rejecting paths that escape it via
// ".." segments or an absolute path (ErrUnsafePath).
func safeJoin(root, name string) (joined, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return joined{}, fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	abs := filepath.Join(root, cleaned)
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return joined{}, fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return joined{abs: abs, rel: rel}, nil
}

// Uninstall removes every recorded file for key's installed record
// (skipping any already missing), then any now-empty directory that
// directly contains a recorded file, then the ledger row, in that order.
func (s *PrefixStore) Uninstall(ctx context.Context, key pahkattype.PackageKey) (pahkattype.PackageStatus, error) {
	done := telemetry.StartSpan("store.uninstall", "key", key.String())

	conn, err := s.pool.Get(ctx)
	if err != nil {
		done("status", "error", "error", err.Error())
		return 0, fmt.Errorf("store: acquiring connection: %w", err)
	}
	defer s.pool.Put(conn)

	rec, err := findByURL(conn, key.String())
	if err != nil {
		done("status", "error", "error", err.Error())
		return 0, err
	}
	if rec == nil {
		done("status", "not_installed")
		return 0, ErrNotInstalled
	}

	pkgDir := s.packageDir(key.PackageID)

	for i := len(rec.files) - 1; i >= 0; i-- {
		path := filepath.Join(pkgDir, rec.files[i])
		info, err := os.Lstat(path)
		if err != nil {
			continue // missing files are skipped silently
		}
		if info.Mode().IsRegular() {
			_ = os.Remove(path)
		}
	}

	dirs := make(map[string]struct{})
	for _, f := range rec.files {
		dirs[filepath.Dir(filepath.Join(pkgDir, f))] = struct{}{}
	}
	sortedDirs := make([]string, 0, len(dirs))
	for d := range dirs {
		sortedDirs = append(sortedDirs, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(sortedDirs)))
	for _, dir := range sortedDirs {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}

	if err := remove(conn, rec); err != nil {
		done("status", "error", "error", err.Error())
		return 0, fmt.Errorf("%w: %v", ErrDatabaseWrite, err)
	}

	done("status", "ok")
	return pahkattype.NotInstalled, nil
}

// Status compares the installed version (if any) against the version the
// resolver currently selects for key within snapshot.
func (s *PrefixStore) Status(ctx context.Context, key pahkattype.PackageKey, snapshot map[string]*pahkattype.Index) (pahkattype.PackageStatus, error) {
	conn, err := s.pool.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: acquiring connection: %w", err)
	}
	defer s.pool.Put(conn)

	rec, err := findByURL(conn, key.String())
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return pahkattype.NotInstalled, nil
	}

	query := key.Query.AndPayloads(pahkattype.KindTarballPackage)
	res, err := resolver.Resolve(key, query, snapshot)
	if err != nil {
		return 0, err
	}

	return compareVersions(rec.version, res.Release.Version), nil
}

// AllStatuses calls Status for every descriptor declared by
// repoURL, never failing as a whole: a per-package resolution error is
// recorded in the result map rather than aborting the iteration.
func (s *PrefixStore) AllStatuses(ctx context.Context, repoURL string, snapshot map[string]*pahkattype.Index) map[string]StatusOrError {
	idx, ok := snapshot[repoURL]
	if !ok {
		return nil
	}

	out := make(map[string]StatusOrError, len(idx.Packages))
	for id := range idx.Packages {
		key := pahkattype.PackageKey{RepositoryURL: repoURL, PackageID: id}
		status, err := s.Status(ctx, key, snapshot)
		out[id] = StatusOrError{Status: status, Err: err}
	}
	return out
}

// StatusOrError is one entry of AllStatuses's result map.
type StatusOrError struct {
	Status pahkattype.PackageStatus
	Err    error
}

// Import ingests a local installer file into the download cache after
// hash verification, letting a caller seed the cache without a network
// fetch.
func (s *PrefixStore) Import(payload pahkattype.Payload, sourcePath string) (string, error) {
	return s.downloads.Import(payload, sourcePath)
}

// compareVersions implements the status rule: a resolved version
// newer than the installed one means RequiresUpdate; a resolved version
// older than the installed one means VersionSkipped (the installed
// package was pinned past what the channel currently resolves to);
// semver-equal versions mean UpToDate. If either version fails to parse
// as semver, the raw strings are compared instead: identical strings
// mean UpToDate, any difference means RequiresUpdate.
func compareVersions(installed, resolved string) pahkattype.PackageStatus {
	vi, erri := semver.NewVersion(installed)
	vr, errr := semver.NewVersion(resolved)
	if erri != nil || errr != nil {
		if installed == resolved {
			return pahkattype.UpToDate
		}
		return pahkattype.RequiresUpdate
	}

	switch vi.Compare(vr) {
	case 0:
		return pahkattype.UpToDate
	case -1:
		return pahkattype.RequiresUpdate
	default:
		return pahkattype.VersionSkipped
	}
}
