// Package resolver implements the release resolver: a pure function
// that picks the right release, target, and payload for a package key
// given platform, architecture, channel, and payload-kind constraints.
package resolver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/platform"
)

// Resolution errors, forming the "Resolution" bucket of the error
// taxonomy.
var (
	ErrNoRepository     = errors.New("resolver: no repository for key")
	ErrNoPackage        = errors.New("resolver: no package for key")
	ErrNoMatchingPayload = errors.New("resolver: no matching release/target/payload")
)

// Result is the concrete (target, release, descriptor) triple resolve
// selects for a key.
type Result struct {
	Target     pahkattype.Target
	Release    pahkattype.Release
	Descriptor pahkattype.Descriptor
}

// Resolve implements the six-step release-selection algorithm: filter by
// channel, sort by semver descending, then match the first release whose
// target satisfies platform/arch/payload-kind constraints. It is
// deterministic in (key, query, snapshot): the same inputs always
// produce the same result or the same error.
func Resolve(key pahkattype.PackageKey, query pahkattype.ReleaseQuery, snapshot map[string]*pahkattype.Index) (Result, error) {
	idx, ok := snapshot[key.RepositoryURL]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoRepository, key.RepositoryURL)
	}

	desc, ok := idx.Packages[key.PackageID]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoPackage, key.PackageID)
	}

	wantPlatform := query.Platform
	if wantPlatform == "" {
		wantPlatform = platform.Host()
	}
	wantArch := query.Arch
	if wantArch == "" {
		wantArch = platform.HostArch()
	}

	releases := filterByChannel(desc.Release, query.Channel)
	sortByVersionDescending(releases)

	for _, release := range releases {
		for _, target := range release.Target {
			if target.Platform != wantPlatform {
				continue
			}
			if wantArch != "" && target.Arch != "" && target.Arch != wantArch {
				continue
			}
			if !query.AllowsPayload(target.Payload.Kind) {
				continue
			}
			return Result{Target: target, Release: release, Descriptor: *desc}, nil
		}
	}

	return Result{}, fmt.Errorf("%w: %s", ErrNoMatchingPayload, key.PackageID)
}

// filterByChannel implements step 3: keep releases matching the query's
// channel, or stable releases (no channel tag) when the query leaves it
// unset.
func filterByChannel(releases []pahkattype.Release, wantChannel string) []pahkattype.Release {
	out := make([]pahkattype.Release, 0, len(releases))
	for _, r := range releases {
		if wantChannel == "" {
			if r.IsStable() {
				out = append(out, r)
			}
			continue
		}
		if r.Channel == wantChannel {
			out = append(out, r)
		}
	}
	return out
}

// sortByVersionDescending implements step 4: sort surviving releases by
// semver, descending. Releases whose version string fails to parse as
// semver sort last, in their original relative order.
func sortByVersionDescending(releases []pahkattype.Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		vi, erri := semver.NewVersion(releases[i].Version)
		vj, errj := semver.NewVersion(releases[j].Version)
		if erri != nil || errj != nil {
			return erri == nil && errj != nil
		}
		return vi.GreaterThan(vj)
	})
}
