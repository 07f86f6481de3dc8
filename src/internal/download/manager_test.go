package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"pahkat/src/internal/pahkattype"
)

func hashOf(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func TestDownloadVerifiesHashAndCaches(t *testing.T) {
	payload := []byte("hello world, this is a test payload")
	hash := hashOf(payload)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	m := New(t.TempDir())

	var gotCur, gotTotal int64
	path, err := m.Download(context.Background(), srv.URL, hash, int64(len(payload)), func(cur, total int64) bool {
		gotCur, gotTotal = cur, total
		return true
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if gotCur != int64(len(payload)) || gotTotal != int64(len(payload)) {
		t.Errorf("final progress = (%d, %d), want (%d, %d)", gotCur, gotTotal, len(payload), len(payload))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading cached file: %v", err)
	}
	if string(data) != string(payload) {
		t.Error("cached file content mismatch")
	}

	// Second call should be a cache hit and not need the server again.
	srv.Close()
	path2, err := m.Download(context.Background(), srv.URL, hash, int64(len(payload)), nil)
	if err != nil {
		t.Fatalf("cached Download: %v", err)
	}
	if path2 != path {
		t.Errorf("path2 = %q, want %q", path2, path)
	}
}

func TestDownloadSizeMismatchLeavesNoFile(t *testing.T) {
	payload := []byte("short payload")
	declaredSize := int64(len(payload)) + 1024 // server sends less than declared

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	m := New(cacheDir)

	_, err := m.Download(context.Background(), srv.URL, hashOf(payload), declaredSize, nil)
	if !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("err = %v, want ErrSizeMismatch", err)
	}

	var remaining []string
	filepath.Walk(cacheDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			remaining = append(remaining, path)
		}
		return nil
	})
	if len(remaining) != 0 {
		t.Errorf("expected no leftover files, found %v", remaining)
	}
}

func TestDownloadHashMismatch(t *testing.T) {
	payload := []byte("payload with wrong hash")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	m := New(t.TempDir())
	_, err := m.Download(context.Background(), srv.URL, "0000000000000000000000000000000000000000000000000000000000000000", int64(len(payload)), nil)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("err = %v, want ErrHashMismatch", err)
	}
}

func TestImportHardlinksIntoCacheByHash(t *testing.T) {
	payload := []byte("local installer file contents")
	hash := hashOf(payload)

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "local-installer.bin")
	if err := os.WriteFile(srcPath, payload, 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}

	m := New(t.TempDir())
	pl := pahkattype.Payload{
		Kind:           pahkattype.KindTarballPackage,
		TarballPackage: &pahkattype.TarballPackage{URL: "https://example.com/local-installer.bin", Size: int64(len(payload)), SHA256: hash},
	}

	path, err := m.Import(pl, srcPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if path != m.Path(hash) {
		t.Errorf("Import path = %q, want %q", path, m.Path(hash))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading imported file: %v", err)
	}
	if string(data) != string(payload) {
		t.Error("imported file content mismatch")
	}

	// A subsequent Download of the same hash should be a cache hit.
	path2, err := m.Download(context.Background(), "http://unused.invalid", hash, int64(len(payload)), nil)
	if err != nil {
		t.Fatalf("Download after Import: %v", err)
	}
	if path2 != path {
		t.Errorf("Download after Import path = %q, want %q", path2, path)
	}
}

func TestImportHashMismatchLeavesCacheEmpty(t *testing.T) {
	payload := []byte("tampered installer file")

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "tampered.bin")
	if err := os.WriteFile(srcPath, payload, 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}

	cacheDir := t.TempDir()
	m := New(cacheDir)
	pl := pahkattype.Payload{
		Kind:           pahkattype.KindTarballPackage,
		TarballPackage: &pahkattype.TarballPackage{URL: "https://example.com/tampered.bin", Size: int64(len(payload)), SHA256: "0000000000000000000000000000000000000000000000000000000000000000"},
	}

	if _, err := m.Import(pl, srcPath); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("err = %v, want ErrHashMismatch", err)
	}

	var remaining []string
	filepath.Walk(cacheDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			remaining = append(remaining, path)
		}
		return nil
	})
	if len(remaining) != 0 {
		t.Errorf("expected no imported file on hash mismatch, found %v", remaining)
	}
}

func TestDownloadConcurrentCallersShareTransfer(t *testing.T) {
	payload := []byte("shared payload for dedup test")
	hash := hashOf(payload)

	var serverHits int
	var hitsMu sync.Mutex
	start := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsMu.Lock()
		serverHits++
		hitsMu.Unlock()
		<-start
		w.Write(payload)
	}))
	defer srv.Close()

	m := New(t.TempDir())

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Download(context.Background(), srv.URL, hash, int64(len(payload)), nil)
			errs[i] = err
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}

	hitsMu.Lock()
	defer hitsMu.Unlock()
	if serverHits != 1 {
		t.Errorf("serverHits = %d, want 1 (concurrent callers should share one transfer)", serverHits)
	}
}
