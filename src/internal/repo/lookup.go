package repo

import "pahkat/src/internal/pahkattype"

// FindByKey looks up the descriptor a PackageKey refers to within a
// snapshot, without applying any release/target resolution.
func FindByKey(key pahkattype.PackageKey, snapshot map[string]*pahkattype.Index) (*pahkattype.Descriptor, bool) {
	idx, ok := snapshot[key.RepositoryURL]
	if !ok {
		return nil, false
	}
	desc, ok := idx.Packages[key.PackageID]
	return desc, ok
}

// FindByID searches every repository in the snapshot for a package
// identifier, returning the first match along with the key that
// addresses it. Mirrors PackageStore::find_package_by_id in the
// original Rust sources.
func FindByID(id string, snapshot map[string]*pahkattype.Index) (pahkattype.PackageKey, *pahkattype.Descriptor, bool) {
	for repoURL, idx := range snapshot {
		if desc, ok := idx.Packages[id]; ok {
			return pahkattype.PackageKey{RepositoryURL: repoURL, PackageID: id}, desc, true
		}
	}
	return pahkattype.PackageKey{}, nil, false
}

// PackageIDs returns every package identifier declared by the repository
// at repoURL, in map iteration order.
func PackageIDs(repoURL string, snapshot map[string]*pahkattype.Index) []string {
	idx, ok := snapshot[repoURL]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(idx.Packages))
	for id := range idx.Packages {
		ids = append(ids, id)
	}
	return ids
}
