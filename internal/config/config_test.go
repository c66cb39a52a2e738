package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/consearch/internal/testutil"
)

func TestLoadDefaults(t *testing.T) {
	testutil.ResetConfig(t)
	SetDefaults()

	cfg := Load()

	assert.Equal(t, 4, cfg.MaxFanOut)
	assert.Equal(t, 5*time.Minute, cfg.CooldownWindow)
	assert.Equal(t, "./cache.db", cfg.CacheDBFile)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, time.Hour, cfg.NegativeCacheTTL)
	assert.Equal(t, "./consearch.db", cfg.DatastoreFile)

	require.Contains(t, cfg.Sources, "isbndb")
	isbndb := cfg.Sources["isbndb"]
	assert.True(t, isbndb.Enabled)
	assert.True(t, isbndb.Authoritative)
	assert.Equal(t, 0, isbndb.Priority)
	assert.Empty(t, isbndb.APIKey, "no key ships by default")

	require.Contains(t, cfg.Sources, "openlibrary")
	assert.Equal(t, 1, cfg.Sources["openlibrary"].Priority)
	assert.False(t, cfg.Sources["openlibrary"].Authoritative)

	require.Contains(t, cfg.Sources, "crossref")
	assert.True(t, cfg.Sources["crossref"].Authoritative)
	assert.Equal(t, 15*time.Second, cfg.Sources["crossref"].Timeout)
}

func TestLoadOverrides(t *testing.T) {
	testutil.ResetConfig(t)
	SetDefaults()

	testutil.SetViperValue(t, "max_fanout", 2)
	testutil.SetViperValue(t, "sources.isbndb.api_key", "secret")
	testutil.SetViperValue(t, "sources.openlibrary.enabled", false)
	testutil.SetViperValue(t, "cache.ttl", "72h")

	cfg := Load()

	assert.Equal(t, 2, cfg.MaxFanOut)
	assert.Equal(t, "secret", cfg.Sources["isbndb"].APIKey)
	assert.False(t, cfg.Sources["openlibrary"].Enabled)
	assert.Equal(t, 72*time.Hour, cfg.CacheTTL)
}

func TestLoadCoversEverySource(t *testing.T) {
	testutil.ResetConfig(t)
	SetDefaults()

	cfg := Load()
	for _, name := range []string{"isbndb", "openlibrary", "googlebooks", "crossref", "semanticscholar"} {
		assert.Contains(t, cfg.Sources, name)
	}
	assert.True(t, viper.IsSet("sources.semanticscholar.priority"))
}
