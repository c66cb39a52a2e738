package cmd

import (
	"fmt"
	"log/slog"

	"github.com/lepinkainen/consearch/internal/cache"
	"github.com/lepinkainen/consearch/internal/config"
)

// CacheCmd represents the cache command and its subcommands
type CacheCmd struct {
	Clear CacheClearCmd `cmd:"" help:"Delete every cached resolution"`
}

// CacheClearCmd represents the cache clear command
type CacheClearCmd struct{}

func (c *CacheClearCmd) Run() error {
	cfg := config.Load()

	store, err := cache.NewSQLiteStore(cfg.CacheDBFile)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close cache store", "error", err)
		}
	}()

	deleted, err := store.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Printf("Cleared %d cached entries\n", deleted)
	return nil
}
