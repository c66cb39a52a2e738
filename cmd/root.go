// Package cmd implements the consearch command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/consearch/internal/config"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

// CLI represents the complete command structure for the consearch application
type CLI struct {
	// Global flags
	Verbose bool `help:"Enable debug logging"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file" default:"./cache.db"`
	CacheTTL    string `help:"Cache time-to-live for found records (e.g., 24h)" default:"24h"`

	// Datastore flags
	DatastoreDB string `help:"Path to record SQLite database file" default:"./consearch.db"`

	Resolve ResolveCmd `cmd:"" help:"Resolve an identifier or title to a canonical record"`
	Search  SearchCmd  `cmd:"" help:"Search sources with a free-text query"`
	Cache   CacheCmd   `cmd:"" help:"Manage the resolution cache"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initConfig()

	// Create CLI instance
	var cli CLI

	// Parse command line with Kong
	ctx := kong.Parse(&cli,
		kong.Name("consearch"),
		kong.Description("Resolve ISBNs, DOIs, arXiv ids, PMIDs and titles into canonical metadata records."),
		kong.UsageOnError(),
	)

	initLogging(cli.Verbose)

	// Update global config based on parsed flags
	updateGlobalConfig(&cli)

	// Execute the selected command
	err := ctx.Run()
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	// Bind specific environment variables to config keys
	if err := viper.BindEnv("sources.isbndb.api_key", "ISBNDB_API_KEY"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}
	if err := viper.BindEnv("sources.semanticscholar.api_key", "SEMANTIC_SCHOLAR_API_KEY"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
		// No config file is fine, defaults and flags cover everything.
	}
}

func updateGlobalConfig(cli *CLI) {
	// Update cache config
	viper.Set("cache.dbfile", cli.CacheDBFile)
	viper.Set("cache.ttl", cli.CacheTTL)

	// Update datastore config
	viper.Set("datastore.dbfile", cli.DatastoreDB)
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}
