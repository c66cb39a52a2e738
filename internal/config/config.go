// Package config loads resolver and cache settings from viper. Core
// components never read the environment themselves; everything they need
// arrives through these structs at construction time.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Source holds the per-provider settings the registry uses to decide
// whether and how to construct a resolver.
type Source struct {
	Enabled           bool
	APIKey            string
	BaseURL           string
	Priority          int
	Authoritative     bool
	RequestsPerSecond int
	Timeout           time.Duration
}

// Settings is the full runtime configuration.
type Settings struct {
	Sources map[string]Source

	MaxFanOut      int
	CooldownWindow time.Duration

	CacheDBFile      string
	CacheTTL         time.Duration
	NegativeCacheTTL time.Duration

	DatastoreFile string
}

// SetDefaults registers default values for every known key. Call once
// before Load, typically from the CLI entry point.
func SetDefaults() {
	viper.SetDefault("max_fanout", 4)
	viper.SetDefault("cooldown_window", "5m")

	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.negative_ttl", "1h")

	viper.SetDefault("datastore.dbfile", "./consearch.db")

	// Book sources. ISBNdb is the authoritative ISBN source but needs an
	// API key; without one the registry leaves it out entirely.
	viper.SetDefault("sources.isbndb.enabled", true)
	viper.SetDefault("sources.isbndb.priority", 0)
	viper.SetDefault("sources.isbndb.authoritative", true)
	viper.SetDefault("sources.isbndb.requests_per_second", 1)
	viper.SetDefault("sources.isbndb.timeout", "10s")

	viper.SetDefault("sources.openlibrary.enabled", true)
	viper.SetDefault("sources.openlibrary.priority", 1)
	viper.SetDefault("sources.openlibrary.requests_per_second", 1)
	viper.SetDefault("sources.openlibrary.timeout", "10s")

	viper.SetDefault("sources.googlebooks.enabled", true)
	viper.SetDefault("sources.googlebooks.priority", 2)
	viper.SetDefault("sources.googlebooks.requests_per_second", 2)
	viper.SetDefault("sources.googlebooks.timeout", "10s")

	// Paper sources. Crossref is authoritative for DOIs and free to use;
	// the api_key field carries the polite-pool contact email.
	viper.SetDefault("sources.crossref.enabled", true)
	viper.SetDefault("sources.crossref.priority", 0)
	viper.SetDefault("sources.crossref.authoritative", true)
	viper.SetDefault("sources.crossref.requests_per_second", 2)
	viper.SetDefault("sources.crossref.timeout", "15s")

	viper.SetDefault("sources.semanticscholar.enabled", true)
	viper.SetDefault("sources.semanticscholar.priority", 1)
	viper.SetDefault("sources.semanticscholar.requests_per_second", 1)
	viper.SetDefault("sources.semanticscholar.timeout", "10s")
}

// Load reads the current viper state into a Settings struct.
func Load() *Settings {
	names := []string{"isbndb", "openlibrary", "googlebooks", "crossref", "semanticscholar"}

	sources := make(map[string]Source, len(names))
	for _, name := range names {
		prefix := "sources." + name + "."
		sources[name] = Source{
			Enabled:           viper.GetBool(prefix + "enabled"),
			APIKey:            viper.GetString(prefix + "api_key"),
			BaseURL:           viper.GetString(prefix + "base_url"),
			Priority:          viper.GetInt(prefix + "priority"),
			Authoritative:     viper.GetBool(prefix + "authoritative"),
			RequestsPerSecond: viper.GetInt(prefix + "requests_per_second"),
			Timeout:           viper.GetDuration(prefix + "timeout"),
		}
	}

	return &Settings{
		Sources:          sources,
		MaxFanOut:        viper.GetInt("max_fanout"),
		CooldownWindow:   viper.GetDuration("cooldown_window"),
		CacheDBFile:      viper.GetString("cache.dbfile"),
		CacheTTL:         viper.GetDuration("cache.ttl"),
		NegativeCacheTTL: viper.GetDuration("cache.negative_ttl"),
		DatastoreFile:    viper.GetString("datastore.dbfile"),
	}
}
