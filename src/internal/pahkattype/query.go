package pahkattype

// ReleaseQuery carries the optional platform, architecture, channel, and
// payload-kind filters applied during release resolution. A zero-value
// ReleaseQuery matches the host platform/arch and stable channel, and
// accepts any payload kind.
type ReleaseQuery struct {
	Platform     string
	Arch         string
	Channel      string
	PayloadKinds []string
}

// AllowsPayload reports whether kind passes the query's payload-kind
// filter. An empty PayloadKinds set allows every kind.
func (q ReleaseQuery) AllowsPayload(kind string) bool {
	if len(q.PayloadKinds) == 0 {
		return true
	}
	for _, k := range q.PayloadKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// AndPayloads returns a copy of q restricted to the given payload kinds,
// mirroring ReleaseQuery::and_payloads in the original Rust sources.
func (q ReleaseQuery) AndPayloads(kinds ...string) ReleaseQuery {
	q.PayloadKinds = append([]string(nil), kinds...)
	return q
}

// FromKey derives a ReleaseQuery from a PackageKey's own query fields,
// mirroring ReleaseQuery::from(&PackageKey) in the original sources.
func FromKey(key PackageKey) ReleaseQuery {
	return key.Query
}
