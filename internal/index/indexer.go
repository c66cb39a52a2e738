// Package index defines the search-index notification the resolution
// service emits after a successful resolution. Indexing is fire and
// forget: a failure here never fails the resolution.
package index

import (
	"context"
	"log/slog"

	"github.com/lepinkainen/consearch/internal/resolve"
)

// Indexer receives newly resolved canonical records.
type Indexer interface {
	Index(ctx context.Context, rec *resolve.Record)
}

// LogIndexer records index notifications in the log. Stands in until a
// real search backend is wired up.
type LogIndexer struct{}

var _ Indexer = (*LogIndexer)(nil)

// Index logs the notification.
func (LogIndexer) Index(_ context.Context, rec *resolve.Record) {
	slog.Debug("Index notification", "kind", rec.Kind.String(), "title", rec.Title)
}

// NoopIndexer drops index notifications.
type NoopIndexer struct{}

var _ Indexer = (*NoopIndexer)(nil)

// Index does nothing.
func (NoopIndexer) Index(_ context.Context, _ *resolve.Record) {}
