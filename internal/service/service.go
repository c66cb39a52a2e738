// Package service wires the resolution core to its collaborators: the
// cache guard in front of the chain, the record datastore, and the
// search-index notifier.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/lepinkainen/consearch/internal/cache"
	"github.com/lepinkainen/consearch/internal/datastore"
	"github.com/lepinkainen/consearch/internal/identifier"
	"github.com/lepinkainen/consearch/internal/index"
	"github.com/lepinkainen/consearch/internal/resolve"
)

// Service resolves raw input into canonical records.
type Service struct {
	chain       *resolve.Chain
	guard       *cache.Guard
	searchCache cache.Store
	store       datastore.Store
	indexer     index.Indexer
	merger      resolve.Merger
}

// Options carries the optional collaborators. Store and Indexer may be
// nil; resolution works without persistence.
type Options struct {
	Store   datastore.Store
	Indexer index.Indexer
}

// New creates a resolution service.
func New(chain *resolve.Chain, guard *cache.Guard, searchCache cache.Store, opts Options) *Service {
	indexer := opts.Indexer
	if indexer == nil {
		indexer = index.NoopIndexer{}
	}
	return &Service{
		chain:       chain,
		guard:       guard,
		searchCache: searchCache,
		store:       opts.Store,
		indexer:     indexer,
		merger:      resolve.NewPriorityMerger(),
	}
}

// Resolve classifies raw input and resolves it to one canonical record.
// Classification errors surface directly: invalid input is the caller's
// concern, not something to retry upstream.
func (s *Service) Resolve(ctx context.Context, kind resolve.Kind, raw string) (resolve.Outcome, error) {
	id, err := identifier.Classify(raw)
	if err != nil {
		return resolve.Outcome{}, err
	}

	key := cache.ResolutionKey(kind, id.Type, id.Normalized)
	outcome := s.guard.Do(ctx, key, func(ctx context.Context) resolve.Outcome {
		return s.resolveUncached(ctx, kind, id)
	})
	return outcome, nil
}

func (s *Service) resolveUncached(ctx context.Context, kind resolve.Kind, id identifier.Identifier) resolve.Outcome {
	// A record resolved in an earlier run may already be on disk.
	if rec := s.lookupStored(ctx, id); rec != nil {
		slog.Debug("Datastore hit", "identifier", id.Normalized)
		return resolve.Found(rec)
	}

	var outcome resolve.Outcome
	if id.Type == identifier.TypeFreeText {
		outcome = s.resolveByTitle(ctx, kind, id.Normalized)
	} else {
		outcome = s.chain.Resolve(ctx, kind, id)
	}

	if outcome.Status == resolve.OutcomeFound {
		s.persist(ctx, outcome.Record)
		// Fire and forget: index failures never fail the resolution.
		go s.indexer.Index(context.WithoutCancel(ctx), outcome.Record)
	}
	return outcome
}

// resolveByTitle turns a free-text query into a single record by taking
// the best-ranked search hit across all sources.
func (s *Service) resolveByTitle(ctx context.Context, kind resolve.Kind, query string) resolve.Outcome {
	hits, err := s.chain.Search(ctx, kind, query, 1)
	if err != nil {
		return resolve.Failed(err)
	}
	if len(hits) == 0 {
		return resolve.NoRecord()
	}
	return resolve.Found(s.merger.Merge(kind, hits[:1]))
}

// Search fans a free-text query out to every search-capable source and
// returns the de-duplicated ranked hits, cached as a whole.
func (s *Service) Search(ctx context.Context, kind resolve.Kind, query string, limit int) ([]resolve.PartialRecord, error) {
	key := cache.SearchKey(kind, query, limit)

	if data, hit, err := s.searchCache.Get(key); err == nil && hit {
		var cached []resolve.PartialRecord
		if err := json.Unmarshal([]byte(data), &cached); err == nil {
			slog.Debug("Search cache hit", "query", query)
			return cached, nil
		}
	}

	hits, err := s.chain.Search(ctx, kind, query, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(hits); err == nil {
		ttl := cache.DefaultTTL
		if len(hits) == 0 {
			ttl = cache.DefaultNegativeTTL
		}
		if err := s.searchCache.Set(key, string(data), ttl); err != nil {
			slog.Warn("Failed to cache search results", "query", query, "error", err)
		}
	}
	return hits, nil
}

func (s *Service) lookupStored(ctx context.Context, id identifier.Identifier) *resolve.Record {
	if s.store == nil {
		return nil
	}

	scheme := storageScheme(id.Type)
	if scheme == "" {
		return nil
	}

	rec, err := s.store.LookupByIdentifier(ctx, scheme, id.Normalized)
	if err != nil {
		slog.Warn("Datastore lookup failed", "identifier", id.Normalized, "error", err)
		return nil
	}
	return rec
}

func (s *Service) persist(ctx context.Context, rec *resolve.Record) {
	if s.store == nil {
		return
	}
	if _, err := s.store.SaveRecord(ctx, rec); err != nil {
		slog.Warn("Failed to persist record", "title", rec.Title, "error", err)
	}
}

func storageScheme(t identifier.Type) string {
	switch t {
	case identifier.TypeISBN10:
		return "isbn_10"
	case identifier.TypeISBN13:
		return "isbn_13"
	case identifier.TypeDOI:
		return "doi"
	case identifier.TypeArxiv:
		return "arxiv"
	case identifier.TypePMID:
		return "pmid"
	default:
		return ""
	}
}
