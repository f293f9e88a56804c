package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/corvidae/lyricsync/internal/cache"
	"github.com/corvidae/lyricsync/internal/catalog"
	"github.com/corvidae/lyricsync/internal/config"
	"github.com/corvidae/lyricsync/internal/events"
	"github.com/corvidae/lyricsync/internal/index"
	"github.com/corvidae/lyricsync/internal/remote"
	"github.com/corvidae/lyricsync/internal/resolver"
)

// newEmitter picks the UI collaborator implementation the --json/--quiet/
// --verbose flags call for.
func newEmitter(app *AppContext) events.Emitter {
	if app.Opts.JSON {
		return events.NewJSONEmitter(app.IO.Out)
	}
	return events.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, app.Opts.Quiet, app.Opts.Verbose)
}

func loadConfig(app *AppContext) (*config.Config, error) {
	return config.LoadFrom(strings.TrimSpace(app.Opts.ConfigPath))
}

// openStore opens the Index Store at cfg's configured path.
func openStore(cfg *config.Config) (*index.Store, error) {
	return index.Open(cfg.DatabasePath)
}

// buildCache assembles the two-tier Cache described by cfg: an always-on
// file tier and an optional shared-KV tier.
func buildCache(cfg *config.Config) (*cache.Cache, error) {
	cacheDir := filepath.Join(filepath.Dir(cfg.DatabasePath), "cache")
	file, err := cache.NewFile(cacheDir, cfg.Cache.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("open file cache: %w", err)
	}

	var shared *cache.SharedCache
	if cfg.SharedCacheURL != "" {
		shared, err = cache.NewShared(cfg.SharedCacheURL)
		if err != nil {
			return nil, fmt.Errorf("connect shared cache: %w", err)
		}
	}

	return cache.New(shared, file), nil
}

// buildResolver wires the Cache, optional Local Catalog, and Remote Client
// behind a single Resolver, per §4.7.
func buildResolver(cfg *config.Config) (*resolver.Resolver, error) {
	c, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(cfg.LocalCatalog)
	if err != nil {
		return nil, fmt.Errorf("open local catalog: %w", err)
	}

	return &resolver.Resolver{
		Cache:   c,
		Catalog: cat,
		Remote:  remote.New(cfg.RemoteBaseURL, cfg.RPS),
	}, nil
}
