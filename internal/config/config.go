// Package config loads lyricsync's configuration from a TOML file with an
// environment-variable overlay, following the same koanf-based layering the
// rest of the ecosystem uses.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all tunables for the acquisition pipeline.
type Config struct {
	DatabasePath   string `koanf:"database_path"`
	LocalCatalog   string `koanf:"local_catalog_path"`
	RemoteBaseURL  string `koanf:"remote_base_url"`
	SharedCacheURL string `koanf:"shared_cache_url"`

	SkipSynced     bool `koanf:"skip_tracks_with_synced_lyrics"`
	SkipPlain      bool `koanf:"skip_tracks_with_plain_lyrics"`
	TryEmbed       bool `koanf:"try_embed_lyrics"`
	ShowLineCount  bool `koanf:"show_line_count"`
	ForceTUI       bool `koanf:"force_tui"`
	DockerMode     bool `koanf:"docker_mode"`

	Watch WatchConfig `koanf:"watch"`
	Cache CacheConfig `koanf:"cache"`

	Parallel  int `koanf:"parallel"`
	RPS       int `koanf:"remote_rps"`
	Extensions []string `koanf:"extensions"`
}

// WatchConfig holds filesystem-watcher tunables.
type WatchConfig struct {
	DebounceSeconds int `koanf:"debounce_seconds"`
	BatchSize       int `koanf:"batch_size"`
	QueueCapacity   int `koanf:"queue_capacity"`
}

// CacheConfig holds file-cache tier tunables.
type CacheConfig struct {
	MaxBytes     int64 `koanf:"max_bytes"`
	HitTTLDays   int   `koanf:"hit_ttl_days"`
	MissTTLHours int   `koanf:"miss_ttl_hours"`
}

const appName = "lyricsync"

// Load reads config.toml from the standard search paths (last wins), then
// overlays any recognized LYRICSYNC_* environment variable, then fills
// defaults for anything still unset.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load, but when explicitPath is non-empty it is
// loaded after the standard search paths (highest file-layer precedence),
// for the CLI's --config flag.
func LoadFrom(explicitPath string) (*Config, error) {
	k := koanf.New(".")

	paths := configPaths()
	if strings.TrimSpace(explicitPath) != "" {
		paths = append(paths, explicitPath)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("LYRICSYNC_", ".", envKey), nil); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if cfg.DatabasePath != "" {
		cfg.DatabasePath = expandPath(cfg.DatabasePath)
	}
	if cfg.LocalCatalog != "" {
		cfg.LocalCatalog = expandPath(cfg.LocalCatalog)
	}

	return cfg, nil
}

// envKey maps LYRICSYNC_REMOTE_BASE_URL -> remote_base_url, and
// LYRICSYNC_WATCH_BATCH_SIZE -> watch.batch_size so nested struct fields are
// reachable from a flat environment namespace.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "LYRICSYNC_"))
	switch {
	case strings.HasPrefix(s, "watch_"):
		return "watch." + strings.TrimPrefix(s, "watch_")
	case strings.HasPrefix(s, "cache_"):
		return "cache." + strings.TrimPrefix(s, "cache_")
	default:
		return s
	}
}

func configPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}
	paths = append(paths, "config.toml")
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func applyDefaults(cfg *Config) {
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join("~", ".local", "share", appName, "library.db")
	}
	if cfg.RemoteBaseURL == "" {
		cfg.RemoteBaseURL = "https://lrclib.net/api"
	}
	if cfg.Parallel <= 0 || cfg.Parallel > 100 {
		cfg.Parallel = 4
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 4
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{"mp3", "m4a", "flac", "ogg", "opus", "wav"}
	}

	if cfg.Watch.DebounceSeconds <= 0 {
		cfg.Watch.DebounceSeconds = 10
	}
	if cfg.Watch.BatchSize <= 0 {
		cfg.Watch.BatchSize = 50
	}
	if cfg.Watch.QueueCapacity <= 0 {
		cfg.Watch.QueueCapacity = 10_000
	}

	if cfg.Cache.MaxBytes <= 0 {
		cfg.Cache.MaxBytes = 256 * 1024 * 1024
	}
	if cfg.Cache.HitTTLDays <= 0 {
		cfg.Cache.HitTTLDays = 7
	}
	if cfg.Cache.MissTTLHours <= 0 {
		cfg.Cache.MissTTLHours = 24
	}
}
