// Package config holds the pahkat engine's persisted configuration:
// repository URL list with per-repo channel overrides, the cache
// directory, the store's permission mode, and the host platform/arch
// used as resolver defaults. Persistence follows internal/project.Config's
// shape: TOML on disk, read by Load/LoadOrCreate and written by Save.
// A Config is a plain value: it has no lock of its own and is not
// swapped in atomically the way the repo cache's snapshots are.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"pahkat/src/internal/platform"
)

// FileName is the configuration file's name within the config directory.
const FileName = "config.toml"

// Permission gates mutating store/config operations.
type Permission int

const (
	ReadWrite Permission = iota
	ReadOnly
)

// ErrConfigReadOnly is returned by mutating operations when the config
// was loaded with ReadOnly permission.
var ErrConfigReadOnly = errConfigReadOnly{}

type errConfigReadOnly struct{}

func (errConfigReadOnly) Error() string { return "config: read-only, mutation rejected" }

// RepoConfig is the per-repository override set, keyed by repository URL
// in Config.Repos.
type RepoConfig struct {
	Channel string `toml:"channel"`
}

// Config is the engine's persisted configuration.
type Config struct {
	Repos      map[string]RepoConfig `toml:"repos"`
	CacheDir   string                `toml:"cache_dir"`
	Platform   string                `toml:"platform"`
	Arch       string                `toml:"arch"`

	permission Permission
	path       string
}

// NewDefault builds a Config rooted at configDir with host-detected
// platform/arch, mirroring project.NewDefault.
func NewDefault(configDir string) Config {
	return Config{
		Repos:    map[string]RepoConfig{},
		CacheDir: filepath.Join(configDir, "cache"),
		Platform: platform.Host(),
		Arch:     platform.HostArch(),
	}
}

// LoadOrCreate loads the config file under configDir, creating it with
// defaults if absent, following project.LoadOrCreate's shape.
func LoadOrCreate(configDir string, permission Permission) (Config, error) {
	path := filepath.Join(configDir, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := NewDefault(configDir)
		cfg.path = path
		cfg.permission = permission
		if permission == ReadOnly {
			return cfg, nil
		}
		if err := cfg.Save(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	return Load(path, permission)
}

// Load reads a config file at path.
func Load(path string, permission Permission) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Repos == nil {
		cfg.Repos = map[string]RepoConfig{}
	}
	if cfg.Platform == "" {
		cfg.Platform = platform.Host()
	}
	if cfg.Arch == "" {
		cfg.Arch = platform.HostArch()
	}
	cfg.path = path
	cfg.permission = permission
	return cfg, nil
}

// Save persists the config to its on-disk path, rejecting the write if
// the config was loaded ReadOnly.
func (c Config) Save() error {
	if c.permission == ReadOnly {
		return ErrConfigReadOnly
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(c.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// SetRepoChannel sets a per-repository channel override, rejecting the
// mutation under ReadOnly permission.
func (c *Config) SetRepoChannel(repoURL, channel string) error {
	if c.permission == ReadOnly {
		return ErrConfigReadOnly
	}
	if c.Repos == nil {
		c.Repos = map[string]RepoConfig{}
	}
	c.Repos[repoURL] = RepoConfig{Channel: channel}
	return nil
}

// RepoURLs returns the configured repository URLs in map iteration
// order, which is not guaranteed to be stable between calls.
func (c Config) RepoURLs() []string {
	urls := make([]string, 0, len(c.Repos))
	for u := range c.Repos {
		urls = append(urls, u)
	}
	return urls
}

// Permission returns the config's loaded permission mode.
func (c Config) Permission() Permission {
	return c.permission
}

// Path returns the on-disk path this config was loaded from or will be
// saved to.
func (c Config) Path() string {
	return c.path
}
