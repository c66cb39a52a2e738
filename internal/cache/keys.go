package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/lepinkainen/consearch/internal/identifier"
	"github.com/lepinkainen/consearch/internal/resolve"
)

const keyPrefix = "consearch"

// ResolutionKey builds the cache key for one resolution. The normalized
// identifier value is the only input-derived part, so equivalent raw
// inputs ("978-0-13-409341-3" and "9780134093413") share an entry.
func ResolutionKey(kind resolve.Kind, t identifier.Type, normalized string) string {
	return fmt.Sprintf("%s:resolve:%s:%s:%s", keyPrefix, kind, t, normalized)
}

// SearchKey builds the cache key for a free-text search. The query is
// hashed for a bounded key length.
func SearchKey(kind resolve.Kind, query string, limit int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d", query, limit))
	return fmt.Sprintf("%s:search:%s:%s", keyPrefix, kind, hex.EncodeToString(sum[:6]))
}
