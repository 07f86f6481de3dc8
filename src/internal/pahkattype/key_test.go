package pahkattype

import "testing"

func TestPackageKeyRoundTrip(t *testing.T) {
	cases := []PackageKey{
		{RepositoryURL: "https://example.com/repo", PackageID: "hello"},
		{
			RepositoryURL: "https://example.com/repo",
			PackageID:     "hello",
			Query: ReleaseQuery{
				Platform: "windows",
				Arch:     "x86_64",
				Channel:  "beta",
			},
		},
		{
			RepositoryURL: "https://example.com/repo",
			PackageID:     "hello",
			Query: ReleaseQuery{
				PayloadKinds: []string{"TarballPackage", "WindowsExecutable"},
			},
		},
	}

	for _, k := range cases {
		s1 := k.String()
		parsed, err := ParsePackageKey(s1)
		if err != nil {
			t.Fatalf("ParsePackageKey(%q): %v", s1, err)
		}
		s2 := parsed.String()
		if s1 != s2 {
			t.Errorf("round-trip mismatch: %q != %q", s1, s2)
		}
	}
}

func TestPackageKeyOmitsUnsetQueryKeys(t *testing.T) {
	k := PackageKey{RepositoryURL: "https://example.com/repo", PackageID: "hello"}
	if got, want := k.String(), "https://example.com/repo#hello"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParsePackageKeyMissingHash(t *testing.T) {
	if _, err := ParsePackageKey("not-a-key"); err == nil {
		t.Fatal("expected error for key without '#'")
	}
}
