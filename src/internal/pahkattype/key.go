package pahkattype

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// PackageKey is the triple of (repository URL, package identifier, query)
// that identifies a package reference. Keys are value objects, compared
// and hashed via their canonical string form (the struct itself is not
// comparable with ==, since its query holds a slice), which is also used
// verbatim as the prefix store's database primary lookup.
type PackageKey struct {
	RepositoryURL string
	PackageID     string
	Query         ReleaseQuery
}

// String renders the canonical form:
//
//	<repo-url>#<package-id>?platform=…&arch=…&channel=…&payload=…
//
// Query keys are omitted when unset, and parameters are emitted in a fixed
// order so the form round-trips through ParsePackageKey.
func (k PackageKey) String() string {
	var b strings.Builder
	b.WriteString(k.RepositoryURL)
	b.WriteByte('#')
	b.WriteString(k.PackageID)

	params := url.Values{}
	if k.Query.Platform != "" {
		params.Set("platform", k.Query.Platform)
	}
	if k.Query.Arch != "" {
		params.Set("arch", k.Query.Arch)
	}
	if k.Query.Channel != "" {
		params.Set("channel", k.Query.Channel)
	}
	if len(k.Query.PayloadKinds) > 0 {
		kinds := append([]string(nil), k.Query.PayloadKinds...)
		sort.Strings(kinds)
		params.Set("payload", strings.Join(kinds, ","))
	}

	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(encodeOrdered(params))
	}

	return b.String()
}

// encodeOrdered renders params in the fixed platform/arch/channel/payload
// order rather than url.Values.Encode's alphabetical order, so that the
// canonical form round-trips through ParsePackageKey exactly.
func encodeOrdered(params url.Values) string {
	order := []string{"platform", "arch", "channel", "payload"}
	var parts []string
	for _, key := range order {
		if v := params.Get(key); v != "" {
			parts = append(parts, key+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

// ParsePackageKey parses the canonical form produced by String.
func ParsePackageKey(s string) (PackageKey, error) {
	hashIdx := strings.IndexByte(s, '#')
	if hashIdx < 0 {
		return PackageKey{}, fmt.Errorf("pahkattype: invalid package key %q: missing '#'", s)
	}

	repoURL := s[:hashIdx]
	rest := s[hashIdx+1:]

	packageID := rest
	var rawQuery string
	if qIdx := strings.IndexByte(rest, '?'); qIdx >= 0 {
		packageID = rest[:qIdx]
		rawQuery = rest[qIdx+1:]
	}

	key := PackageKey{RepositoryURL: repoURL, PackageID: packageID}
	if rawQuery == "" {
		return key, nil
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return PackageKey{}, fmt.Errorf("pahkattype: invalid package key %q: %w", s, err)
	}

	key.Query.Platform = values.Get("platform")
	key.Query.Arch = values.Get("arch")
	key.Query.Channel = values.Get("channel")
	if p := values.Get("payload"); p != "" {
		key.Query.PayloadKinds = strings.Split(p, ",")
	}

	return key, nil
}
