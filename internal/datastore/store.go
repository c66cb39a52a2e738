// Package datastore persists resolved canonical records locally. The
// resolution core treats it as an opaque capability: store a record, look
// one up by identifier. Schema is an implementation detail of this
// package.
package datastore

import (
	"context"

	"github.com/lepinkainen/consearch/internal/resolve"
)

// Store is the persistence capability the resolution service consumes.
type Store interface {
	// SaveRecord persists a canonical record and returns its id.
	// Saving the same work again overwrites the previous row.
	SaveRecord(ctx context.Context, rec *resolve.Record) (int64, error)

	// LookupByIdentifier returns the stored record carrying the given
	// identifier scheme/value, or nil when none exists.
	LookupByIdentifier(ctx context.Context, scheme, value string) (*resolve.Record, error)

	// Close releases the underlying connection.
	Close() error
}
