package pahkattype

// Agent describes the tool that produced a repository index, mirroring
// pahkat_types::repo::Agent in the original Rust sources.
type Agent struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	URL     string `toml:"url"`
}

// Index is the immutable, per-URL repository snapshot held by the repo
// cache. It is replaced wholesale on refresh, never mutated in place.
type Index struct {
	BaseURL        string                 `toml:"base_url"`
	Agent          Agent                  `toml:"agent"`
	Channels       []string               `toml:"channels"`
	DefaultChannel string                 `toml:"default_channel"`
	Packages       map[string]*Descriptor `toml:"-"`
}

// HasChannel reports whether name is one of the repository's declared
// channels, used during refresh to validate release channel tags.
func (idx *Index) HasChannel(name string) bool {
	if name == "" {
		return true
	}
	for _, c := range idx.Channels {
		if c == name {
			return true
		}
	}
	return false
}
