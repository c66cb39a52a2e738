package cmd

import (
	"log/slog"
	"time"

	"github.com/lepinkainen/consearch/internal/cache"
	"github.com/lepinkainen/consearch/internal/config"
	"github.com/lepinkainen/consearch/internal/datastore"
	"github.com/lepinkainen/consearch/internal/index"
	"github.com/lepinkainen/consearch/internal/resolve"
	"github.com/lepinkainen/consearch/internal/resolve/sources"
	"github.com/lepinkainen/consearch/internal/service"
)

// app bundles the wired resolution service with the handles the commands
// need to close afterwards.
type app struct {
	svc        *service.Service
	cacheStore cache.Store
	records    *datastore.SQLiteStore
}

// newApp constructs the full resolution stack from the current config. A
// broken cache or record database degrades to in-memory / no persistence
// instead of refusing to run.
func newApp() *app {
	cfg := config.Load()

	var cacheStore cache.Store
	if sqliteStore, err := cache.NewSQLiteStore(cfg.CacheDBFile); err != nil {
		slog.Warn("Cache database unavailable, using in-memory cache", "error", err)
		cacheStore = cache.NewMemoryStore()
	} else {
		cacheStore = sqliteStore
	}
	guard := cache.NewGuard(cacheStore, cfg.CacheTTL, cfg.NegativeCacheTTL)

	records, err := datastore.NewSQLiteStore(cfg.DatastoreFile)
	if err != nil {
		slog.Warn("Record database unavailable, resolving without persistence", "error", err)
		records = nil
	}

	chain := resolve.NewChain(sources.DefaultRegistry(cfg), resolve.ChainConfig{
		MaxFanOut:      cfg.MaxFanOut,
		CooldownWindow: cfg.CooldownWindow,
		Timeouts:       sourceTimeouts(cfg),
	})

	var store datastore.Store
	if records != nil {
		store = records
	}
	svc := service.New(chain, guard, cacheStore, service.Options{
		Store:   store,
		Indexer: index.LogIndexer{},
	})

	return &app{svc: svc, cacheStore: cacheStore, records: records}
}

func (a *app) close() {
	if err := a.cacheStore.Close(); err != nil {
		slog.Warn("Failed to close cache store", "error", err)
	}
	if a.records != nil {
		if err := a.records.Close(); err != nil {
			slog.Warn("Failed to close record store", "error", err)
		}
	}
}

func sourceTimeouts(cfg *config.Settings) map[resolve.SourceName]time.Duration {
	timeouts := make(map[resolve.SourceName]time.Duration, len(cfg.Sources))
	for name, src := range cfg.Sources {
		if src.Timeout > 0 {
			timeouts[resolve.SourceName(name)] = src.Timeout
		}
	}
	return timeouts
}

func kindFromFlag(kind string) resolve.Kind {
	if kind == "paper" {
		return resolve.KindPaper
	}
	return resolve.KindBook
}
