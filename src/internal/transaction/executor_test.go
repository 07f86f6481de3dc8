package transaction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"pahkat/src/internal/download"
	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/resolver"
)

func hashOfBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

type fakeStore struct {
	mu        sync.Mutex
	installed map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{installed: map[string]bool{}}
}

func (f *fakeStore) Install(ctx context.Context, key pahkattype.PackageKey, res resolver.Result) (pahkattype.PackageStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed[key.String()] = true
	return pahkattype.UpToDate, nil
}

func (f *fakeStore) Uninstall(ctx context.Context, key pahkattype.PackageKey) (pahkattype.PackageStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.installed, key.String())
	return pahkattype.NotInstalled, nil
}

func (f *fakeStore) Status(ctx context.Context, key pahkattype.PackageKey, snapshot map[string]*pahkattype.Index) (pahkattype.PackageStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.installed[key.String()] {
		return pahkattype.UpToDate, nil
	}
	return pahkattype.NotInstalled, nil
}

func TestTransactionProcessEmitsOrderedEvents(t *testing.T) {
	payload := []byte("payload bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	desc := descriptor("hello", nil)
	desc.Release[0].Target[0].Payload.TarballPackage.URL = srv.URL
	desc.Release[0].Target[0].Payload.TarballPackage.SHA256 = hashOfBytes(payload)
	desc.Release[0].Target[0].Payload.TarballPackage.Size = int64(len(payload))

	snap := snapshotWith(desc)
	plan, err := Build([]Action{{Kind: Install, Key: key("hello")}}, snap)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fs := newFakeStore()
	dl := download.New(t.TempDir())
	tx := New(plan, fs, dl, snap, 1)

	_, events := tx.Process(context.Background())

	var kinds []EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}

	if len(kinds) == 0 || kinds[0] != TransactionStarted {
		t.Fatalf("first event = %v, want TransactionStarted", kinds)
	}
	if kinds[len(kinds)-1] != TransactionComplete {
		t.Fatalf("last event = %v, want TransactionComplete", kinds)
	}

	mustContainInOrder(t, kinds, []EventKind{DownloadComplete, InstallStarted, TransactionProgress})

	if !fs.installed[key("hello").String()] {
		t.Error("expected hello to be recorded installed")
	}
}

func TestTransactionCancelBeforeInstallStarted(t *testing.T) {
	block := make(chan struct{})
	payload := []byte("payload bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.Write(payload)
	}))
	defer srv.Close()

	desc := descriptor("hello", nil)
	desc.Release[0].Target[0].Payload.TarballPackage.URL = srv.URL
	desc.Release[0].Target[0].Payload.TarballPackage.SHA256 = hashOfBytes(payload)
	desc.Release[0].Target[0].Payload.TarballPackage.Size = int64(len(payload))

	snap := snapshotWith(desc)
	plan, err := Build([]Action{{Kind: Install, Key: key("hello")}}, snap)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fs := newFakeStore()
	dl := download.New(t.TempDir())
	tx := New(plan, fs, dl, snap, 1)

	canceler, events := tx.Process(context.Background())
	canceler.Cancel()
	close(block)

	var sawInstallStarted bool
	var last Event
	for ev := range events {
		if ev.Kind == InstallStarted {
			sawInstallStarted = true
		}
		last = ev
	}

	if sawInstallStarted {
		t.Error("expected no InstallStarted event after cancellation")
	}
	if last.Kind != TransactionError {
		t.Errorf("last event = %v, want TransactionError", last.Kind)
	}
	if fs.installed[key("hello").String()] {
		t.Error("expected hello not to be recorded installed after cancellation")
	}
}

func mustContainInOrder(t *testing.T, got []EventKind, want []EventKind) {
	t.Helper()
	idx := 0
	for _, k := range got {
		if idx < len(want) && k == want[idx] {
			idx++
		}
	}
	if idx != len(want) {
		t.Errorf("events %v did not contain %v in order", got, want)
	}
}
