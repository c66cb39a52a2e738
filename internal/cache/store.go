// Package cache provides the resolution cache: a pluggable TTL store and
// a guard that collapses concurrent duplicate resolutions into a single
// upstream execution.
package cache

import (
	"errors"
	"time"
)

// ErrBackendUnavailable is returned by stores whose backing service
// cannot be reached. The guard reacts by degrading to pass-through.
var ErrBackendUnavailable = errors.New("cache backend unavailable")

// Store is the TTL key/value capability the guard is defined against.
// A distributed cache or the in-process map both satisfy it.
type Store interface {
	// Get returns the live value for key. The bool reports whether a
	// non-expired entry exists; expired entries are evicted lazily.
	Get(key string) (string, bool, error)

	// Set stores value under key with the given time-to-live,
	// overwriting any previous entry.
	Set(key, value string, ttl time.Duration) error

	// Delete removes one entry.
	Delete(key string) error

	// Clear removes every entry and reports how many were dropped.
	Clear() (int64, error)

	// Close releases backend resources.
	Close() error
}
