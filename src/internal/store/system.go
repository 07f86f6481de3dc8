package store

import (
	"context"
	"errors"

	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/resolver"
)

// ErrSystemStoreUnsupported is returned by every SystemStore operation.
// Invoking a platform's native installer (msiexec, installer.pkg, a
// distribution's package manager) is out of scope; SystemStore exists
// only so callers that branch on payload kind have a store to call into
// without a nil-interface panic.
var ErrSystemStoreUnsupported = errors.New("store: system store is not implemented on this platform")

// SystemStore would delegate WindowsExecutable/MacOSPackage payloads to
// the host's native installer. It is left unimplemented, and the
// transaction engine does not route those payload kinds to it: they go
// to the same store as every other target, where PrefixStore.Install
// rejects them with ErrWrongPayloadType.
type SystemStore struct{}

func NewSystemStore() *SystemStore { return &SystemStore{} }

func (s *SystemStore) Install(ctx context.Context, key pahkattype.PackageKey, res resolver.Result) (pahkattype.PackageStatus, error) {
	return 0, ErrSystemStoreUnsupported
}

func (s *SystemStore) Uninstall(ctx context.Context, key pahkattype.PackageKey) (pahkattype.PackageStatus, error) {
	return 0, ErrSystemStoreUnsupported
}

func (s *SystemStore) Status(ctx context.Context, key pahkattype.PackageKey, snapshot map[string]*pahkattype.Index) (pahkattype.PackageStatus, error) {
	return 0, ErrSystemStoreUnsupported
}
