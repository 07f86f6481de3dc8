// Package repo implements the repo cache: it loads, caches, and
// refreshes repository indexes from URLs, handing out consistent
// snapshots to readers while a single refresh call owns the write side.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/telemetry"
)

// defaultRefreshConcurrency bounds how many repositories are fetched in
// parallel during Refresh.
const defaultRefreshConcurrency = 4

// Cache holds the mapping from repository URL to its loaded index, behind
// a read/write snapshot discipline: readers take an immutable view of
// the current map, writers build a new map and swap it in under the
// write lock.
type Cache struct {
	mu       sync.RWMutex
	indexes  map[string]*pahkattype.Index
	cacheDir string
}

// New constructs an empty Cache rooted at cacheDir (used by ClearCache).
func New(cacheDir string) *Cache {
	return &Cache{
		indexes:  map[string]*pahkattype.Index{},
		cacheDir: cacheDir,
	}
}

// Snapshot returns a consistent, immutable view of the cache for the
// duration of one operation. The returned map itself is never mutated by
// the cache after being handed out; Refresh always swaps in a new map.
func (c *Cache) Snapshot() map[string]*pahkattype.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes
}

// Refresh fetches index.toml and the per-package index.toml subresources
// for every URL in repoURLs and atomically swaps in the resulting map. A
// single repository's failure leaves its previous entry untouched and
// logs a warning; overall refresh still succeeds. Refresh is idempotent:
// calling it twice with unchanged remote content produces an equivalent
// snapshot.
func (c *Cache) Refresh(ctx context.Context, repoURLs []string) error {
	done := telemetry.StartSpan("repo.refresh", "repos", len(repoURLs))
	defer done()

	c.mu.RLock()
	previous := c.indexes
	c.mu.RUnlock()

	next := make(map[string]*pahkattype.Index, len(repoURLs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultRefreshConcurrency)

	for _, url := range repoURLs {
		url := url
		g.Go(func() error {
			repoDone := telemetry.StartSpan("repo.refresh.one", "url", url)
			idx, err := fetchIndex(gctx, url)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				telemetry.Warn("repo: refresh failed, keeping previous index", "url", url, "error", err.Error())
				repoDone("status", "error", "error", err.Error())
				if prev, ok := previous[url]; ok {
					next[url] = prev
				}
				return nil
			}
			next[url] = idx
			repoDone("status", "ok", "packages", len(idx.Packages))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		done("status", "error", "error", err.Error())
		return err
	}

	c.mu.Lock()
	c.indexes = next
	c.mu.Unlock()

	done("status", "ok")
	return nil
}

// ClearCache deletes the on-disk download cache rooted at the cache
// directory. The in-memory index map is unaffected.
func (c *Cache) ClearCache() error {
	done := telemetry.StartSpan("repo.clear_cache", "cache_dir", c.cacheDir)
	err := os.RemoveAll(filepath.Join(c.cacheDir, "downloads"))
	if err != nil {
		done("status", "error", "error", err.Error())
		return err
	}
	done("status", "ok")
	return nil
}
