package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/BurntSushi/toml"

	"pahkat/src/internal/pahkattype"
)

// httpClient is overridable in tests.
var httpClient = http.DefaultClient

type packagesIndexFile struct {
	Packages []string `toml:"packages"`
}

// fetchTOML GETs url and decodes its body as TOML into v.
func fetchTOML(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("repo: building request for %s: %w", url, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("repo: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("repo: fetching %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("repo: reading %s: %w", url, err)
	}

	if err := toml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("repo: parsing %s: %w", url, err)
	}
	return nil
}

// fetchIndex loads a single repository's full index: its index.toml, the
// package-id list, and every package's index.toml.
func fetchIndex(ctx context.Context, baseURL string) (*pahkattype.Index, error) {
	idx := &pahkattype.Index{}
	if err := fetchTOML(ctx, joinURL(baseURL, "index.toml"), idx); err != nil {
		return nil, err
	}
	if idx.BaseURL == "" {
		idx.BaseURL = baseURL
	}

	var pkgList packagesIndexFile
	if err := fetchTOML(ctx, joinURL(baseURL, "packages/index.toml"), &pkgList); err != nil {
		return nil, err
	}

	idx.Packages = make(map[string]*pahkattype.Descriptor, len(pkgList.Packages))
	for _, id := range pkgList.Packages {
		desc := &pahkattype.Descriptor{}
		descURL := joinURL(baseURL, path.Join("packages", id, "index.toml"))
		if err := fetchTOML(ctx, descURL, desc); err != nil {
			return nil, fmt.Errorf("repo: loading package %q: %w", id, err)
		}
		if desc.ID == "" {
			desc.ID = id
		}
		for _, rel := range desc.Release {
			if !idx.HasChannel(rel.Channel) {
				return nil, fmt.Errorf("repo: package %q release %q declares unknown channel %q", id, rel.Version, rel.Channel)
			}
		}
		idx.Packages[id] = desc
	}

	return idx, nil
}

func joinURL(base, elem string) string {
	if len(base) > 0 && base[len(base)-1] == '/' {
		return base + elem
	}
	return base + "/" + elem
}
