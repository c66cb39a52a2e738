package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lepinkainen/consearch/internal/resolve"
)

const (
	// DefaultTTL is how long Found outcomes live in the cache.
	DefaultTTL = 24 * time.Hour
	// DefaultNegativeTTL is the shorter lifetime for NotFound and Failed
	// outcomes; missing works get re-checked sooner than found ones.
	DefaultNegativeTTL = time.Hour
)

// ResolveFunc runs one uncached chain execution.
type ResolveFunc func(ctx context.Context) resolve.Outcome

// Guard wraps chain execution with a read-through cache and collapses
// concurrent duplicate requests for the same key into a single upstream
// execution. If the cache backend is unavailable the guard degrades to
// pass-through: resolution availability beats cache consistency.
type Guard struct {
	store       Store
	group       singleflight.Group
	ttl         time.Duration
	negativeTTL time.Duration
}

// NewGuard creates a guard over the given store. Non-positive TTLs get
// the defaults.
func NewGuard(store Store, ttl, negativeTTL time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if negativeTTL <= 0 {
		negativeTTL = DefaultNegativeTTL
	}
	return &Guard{store: store, ttl: ttl, negativeTTL: negativeTTL}
}

// cachedOutcome is the serialized form of a resolution outcome.
type cachedOutcome struct {
	Status    string          `json:"status"`
	Record    *resolve.Record `json:"record,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

const (
	errKindAllUnavailable = "all_sources_unavailable"
	errKindNoEligible     = "no_eligible_resolver"
)

// Do returns the cached outcome for key, or runs fn at most once across
// all concurrent callers of the same key, caches its outcome, and
// releases every waiter with the same result.
func (g *Guard) Do(ctx context.Context, key string, fn ResolveFunc) resolve.Outcome {
	data, hit, err := g.store.Get(key)
	if err != nil {
		// Backend down: no caching, no collapsing, but resolution
		// still proceeds.
		slog.Warn("Cache backend unavailable, resolving directly", "error", err)
		return fn(ctx)
	}
	if hit {
		if outcome, ok := decodeOutcome(data); ok {
			slog.Debug("Cache hit", "key", key)
			return outcome
		}
		slog.Warn("Failed to decode cached outcome, re-resolving", "key", key)
	}

	shared, _, _ := g.group.Do(key, func() (any, error) {
		slog.Debug("Cache miss, executing chain", "key", key)
		outcome := fn(ctx)
		g.put(key, outcome)
		return outcome, nil
	})

	return shared.(resolve.Outcome)
}

// Invalidate drops one key so the next request re-executes the chain.
func (g *Guard) Invalidate(key string) error {
	return g.store.Delete(key)
}

func (g *Guard) put(key string, outcome resolve.Outcome) {
	entry := cachedOutcome{Status: outcome.Status.String(), Record: outcome.Record}
	ttl := g.negativeTTL

	switch outcome.Status {
	case resolve.OutcomeFound:
		ttl = g.ttl
	case resolve.OutcomeFailed:
		if errors.Is(outcome.Err, resolve.ErrNoEligibleResolver) {
			entry.ErrorKind = errKindNoEligible
		} else {
			entry.ErrorKind = errKindAllUnavailable
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("Failed to marshal outcome for caching", "key", key, "error", err)
		return
	}
	// Caching failure never fails the resolution.
	if err := g.store.Set(key, string(data), ttl); err != nil {
		slog.Warn("Failed to cache outcome", "key", key, "error", err)
	}
}

func decodeOutcome(data string) (resolve.Outcome, bool) {
	var entry cachedOutcome
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return resolve.Outcome{}, false
	}

	switch entry.Status {
	case resolve.OutcomeFound.String():
		if entry.Record == nil {
			return resolve.Outcome{}, false
		}
		return resolve.Found(entry.Record), true
	case resolve.OutcomeNotFound.String():
		return resolve.NoRecord(), true
	case resolve.OutcomeFailed.String():
		if entry.ErrorKind == errKindNoEligible {
			return resolve.Failed(resolve.ErrNoEligibleResolver), true
		}
		return resolve.Failed(resolve.ErrAllSourcesUnavailable), true
	default:
		return resolve.Outcome{}, false
	}
}
