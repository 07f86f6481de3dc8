package resolver

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/platform"
)

func testSnapshot() map[string]*pahkattype.Index {
	desc := &pahkattype.Descriptor{
		ID: "hello",
		Release: []pahkattype.Release{
			{
				Version: "1.0.0",
				Target: []pahkattype.Target{
					{Platform: platform.Host(), Payload: pahkattype.Payload{
						Kind:           pahkattype.KindTarballPackage,
						TarballPackage: &pahkattype.TarballPackage{URL: "https://example.com/hello-1.0.0.txz", Size: 10, SHA256: "aaa"},
					}},
				},
			},
			{
				Version: "1.1.0-beta",
				Channel: "beta",
				Target: []pahkattype.Target{
					{Platform: platform.Host(), Payload: pahkattype.Payload{
						Kind:           pahkattype.KindTarballPackage,
						TarballPackage: &pahkattype.TarballPackage{URL: "https://example.com/hello-1.1.0-beta.txz", Size: 20, SHA256: "bbb"},
					}},
				},
			},
		},
	}
	return map[string]*pahkattype.Index{
		"https://example.com/repo": {
			BaseURL:  "https://example.com/repo",
			Channels: []string{"beta"},
			Packages: map[string]*pahkattype.Descriptor{"hello": desc},
		},
	}
}

func TestResolveDefaultChannelPicksStable(t *testing.T) {
	snap := testSnapshot()
	key := pahkattype.PackageKey{RepositoryURL: "https://example.com/repo", PackageID: "hello"}

	res, err := Resolve(key, pahkattype.ReleaseQuery{}, snap)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := Result{
		Target:     snap["https://example.com/repo"].Packages["hello"].Release[0].Target[0],
		Release:    snap["https://example.com/repo"].Packages["hello"].Release[0],
		Descriptor: *snap["https://example.com/repo"].Packages["hello"],
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Resolve result mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveBetaChannelPicksBeta(t *testing.T) {
	snap := testSnapshot()
	key := pahkattype.PackageKey{RepositoryURL: "https://example.com/repo", PackageID: "hello"}

	res, err := Resolve(key, pahkattype.ReleaseQuery{Channel: "beta"}, snap)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Release.Version != "1.1.0-beta" {
		t.Errorf("Release.Version = %q, want 1.1.0-beta", res.Release.Version)
	}
}

func TestResolveNoRepository(t *testing.T) {
	key := pahkattype.PackageKey{RepositoryURL: "https://nowhere.example", PackageID: "hello"}
	_, err := Resolve(key, pahkattype.ReleaseQuery{}, testSnapshot())
	if !errors.Is(err, ErrNoRepository) {
		t.Errorf("err = %v, want ErrNoRepository", err)
	}
}

func TestResolveNoPackage(t *testing.T) {
	key := pahkattype.PackageKey{RepositoryURL: "https://example.com/repo", PackageID: "missing"}
	_, err := Resolve(key, pahkattype.ReleaseQuery{}, testSnapshot())
	if !errors.Is(err, ErrNoPackage) {
		t.Errorf("err = %v, want ErrNoPackage", err)
	}
}

func TestResolveNoMatchingPayload(t *testing.T) {
	key := pahkattype.PackageKey{RepositoryURL: "https://example.com/repo", PackageID: "hello"}
	_, err := Resolve(key, pahkattype.ReleaseQuery{Platform: "no-such-platform"}, testSnapshot())
	if !errors.Is(err, ErrNoMatchingPayload) {
		t.Errorf("err = %v, want ErrNoMatchingPayload", err)
	}
}

func TestResolveDefaultsToHostArch(t *testing.T) {
	otherArch := "not-" + platform.HostArch()
	desc := &pahkattype.Descriptor{
		ID: "multiarch",
		Release: []pahkattype.Release{
			{
				Version: "1.0.0",
				Target: []pahkattype.Target{
					{Platform: platform.Host(), Arch: otherArch, Payload: pahkattype.Payload{
						Kind:           pahkattype.KindTarballPackage,
						TarballPackage: &pahkattype.TarballPackage{URL: "https://example.com/multiarch-other.txz", Size: 10, SHA256: "aaa"},
					}},
					{Platform: platform.Host(), Arch: platform.HostArch(), Payload: pahkattype.Payload{
						Kind:           pahkattype.KindTarballPackage,
						TarballPackage: &pahkattype.TarballPackage{URL: "https://example.com/multiarch-host.txz", Size: 10, SHA256: "bbb"},
					}},
				},
			},
		},
	}
	snap := map[string]*pahkattype.Index{
		"https://example.com/repo": {
			BaseURL:  "https://example.com/repo",
			Packages: map[string]*pahkattype.Descriptor{"multiarch": desc},
		},
	}
	key := pahkattype.PackageKey{RepositoryURL: "https://example.com/repo", PackageID: "multiarch"}

	res, err := Resolve(key, pahkattype.ReleaseQuery{}, snap)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Target.Arch != platform.HostArch() {
		t.Errorf("Target.Arch = %q, want host arch %q (query left Arch unset)", res.Target.Arch, platform.HostArch())
	}
}

func TestResolveNoMatchingArch(t *testing.T) {
	otherArch := "not-" + platform.HostArch()
	desc := &pahkattype.Descriptor{
		ID: "onlyother",
		Release: []pahkattype.Release{
			{
				Version: "1.0.0",
				Target: []pahkattype.Target{
					{Platform: platform.Host(), Arch: otherArch, Payload: pahkattype.Payload{
						Kind:           pahkattype.KindTarballPackage,
						TarballPackage: &pahkattype.TarballPackage{URL: "https://example.com/onlyother.txz", Size: 10, SHA256: "aaa"},
					}},
				},
			},
		},
	}
	snap := map[string]*pahkattype.Index{
		"https://example.com/repo": {
			BaseURL:  "https://example.com/repo",
			Packages: map[string]*pahkattype.Descriptor{"onlyother": desc},
		},
	}
	key := pahkattype.PackageKey{RepositoryURL: "https://example.com/repo", PackageID: "onlyother"}

	_, err := Resolve(key, pahkattype.ReleaseQuery{}, snap)
	if !errors.Is(err, ErrNoMatchingPayload) {
		t.Errorf("err = %v, want ErrNoMatchingPayload (host-arch default should not match a differing arch target)", err)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	snap := testSnapshot()
	key := pahkattype.PackageKey{RepositoryURL: "https://example.com/repo", PackageID: "hello"}
	query := pahkattype.ReleaseQuery{}

	first, err := Resolve(key, query, snap)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Resolve(key, query, snap)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if again.Release.Version != first.Release.Version {
			t.Fatalf("non-deterministic resolution: %q != %q", again.Release.Version, first.Release.Version)
		}
	}
}
