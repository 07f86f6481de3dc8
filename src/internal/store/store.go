package store

import (
	"context"

	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/resolver"
)

// Store is the contract the transaction engine drives: install/uninstall
// a resolved target and report installed-vs-resolvable status. PrefixStore
// and SystemStore both satisfy it.
type Store interface {
	Install(ctx context.Context, key pahkattype.PackageKey, res resolver.Result) (pahkattype.PackageStatus, error)
	Uninstall(ctx context.Context, key pahkattype.PackageKey) (pahkattype.PackageStatus, error)
	Status(ctx context.Context, key pahkattype.PackageKey, snapshot map[string]*pahkattype.Index) (pahkattype.PackageStatus, error)
}

var (
	_ Store = (*PrefixStore)(nil)
	_ Store = (*SystemStore)(nil)
)
