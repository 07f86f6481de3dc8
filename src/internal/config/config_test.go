package config

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOrCreate(dir, ReadWrite)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if cfg.CacheDir == "" {
		t.Error("expected non-empty CacheDir default")
	}
	if cfg.Platform == "" || cfg.Arch == "" {
		t.Error("expected host platform/arch defaults to be populated")
	}

	reloaded, err := Load(filepath.Join(dir, FileName), ReadWrite)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.CacheDir != cfg.CacheDir {
		t.Errorf("CacheDir = %q, want %q", reloaded.CacheDir, cfg.CacheDir)
	}
}

func TestReadOnlyRejectsMutation(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadOrCreate(dir, ReadWrite); err != nil {
		t.Fatalf("seed LoadOrCreate: %v", err)
	}

	cfg, err := LoadOrCreate(dir, ReadOnly)
	if err != nil {
		t.Fatalf("LoadOrCreate(ReadOnly): %v", err)
	}

	if err := cfg.SetRepoChannel("https://example.com/repo", "beta"); err != ErrConfigReadOnly {
		t.Errorf("SetRepoChannel error = %v, want ErrConfigReadOnly", err)
	}
	if err := cfg.Save(); err != ErrConfigReadOnly {
		t.Errorf("Save error = %v, want ErrConfigReadOnly", err)
	}
}
