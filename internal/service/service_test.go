package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/consearch/internal/cache"
	"github.com/lepinkainen/consearch/internal/identifier"
	"github.com/lepinkainen/consearch/internal/resolve"
)

// fakeResolver answers every Resolve with a fixed record and counts calls.
type fakeResolver struct {
	record       *resolve.PartialRecord
	searchHits   []resolve.PartialRecord
	resolveCalls atomic.Int32
	searchCalls  atomic.Int32
}

func (f *fakeResolver) Name() resolve.SourceName              { return "fake" }
func (f *fakeResolver) Priority() int                         { return 0 }
func (f *fakeResolver) SupportsSearch() bool                  { return true }
func (f *fakeResolver) Accepts(identifier.Type) bool          { return true }
func (f *fakeResolver) Authoritative(identifier.Type) bool    { return false }

func (f *fakeResolver) Resolve(context.Context, identifier.Identifier) resolve.PartialResult {
	f.resolveCalls.Add(1)
	if f.record == nil {
		return resolve.NotFound()
	}
	return resolve.Success(f.record)
}

func (f *fakeResolver) Search(context.Context, string, int) ([]resolve.PartialRecord, error) {
	f.searchCalls.Add(1)
	return f.searchHits, nil
}

// fakeStore is an in-memory datastore.Store.
type fakeStore struct {
	mu      sync.Mutex
	saved   []*resolve.Record
	byIdent map[string]*resolve.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{byIdent: make(map[string]*resolve.Record)}
}

func (f *fakeStore) SaveRecord(_ context.Context, rec *resolve.Record) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, rec)
	return int64(len(f.saved)), nil
}

func (f *fakeStore) LookupByIdentifier(_ context.Context, scheme, value string) (*resolve.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byIdent[scheme+":"+value], nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// channelIndexer signals every notification for fire-and-forget assertions.
type channelIndexer struct {
	notified chan *resolve.Record
}

func (c *channelIndexer) Index(_ context.Context, rec *resolve.Record) {
	c.notified <- rec
}

func bookPartial(title, isbn13 string) *resolve.PartialRecord {
	return &resolve.PartialRecord{
		Source: "fake",
		Fields: resolve.Fields{
			Title:       &title,
			Authors:     []string{"Some Author"},
			Identifiers: resolve.IdentifierSet{ISBN13: isbn13},
		},
		FetchedAt: time.Now().UTC(),
	}
}

func newTestService(t *testing.T, resolver resolve.Resolver, opts Options) *Service {
	t.Helper()

	registry := resolve.NewRegistry()
	registry.Register(resolve.KindBook, resolver)
	chain := resolve.NewChain(registry, resolve.ChainConfig{})

	store := cache.NewMemoryStore()
	guard := cache.NewGuard(store, 0, 0)

	return New(chain, guard, store, opts)
}

func TestResolveSurfacesClassificationErrors(t *testing.T) {
	svc := newTestService(t, &fakeResolver{}, Options{})

	_, err := svc.Resolve(context.Background(), resolve.KindBook, "9780134093412")
	assert.ErrorIs(t, err, identifier.ErrInvalidChecksum)
}

func TestResolveCachesOutcome(t *testing.T) {
	resolver := &fakeResolver{record: bookPartial("Cached Once", "9780134093413")}
	svc := newTestService(t, resolver, Options{})

	for range 3 {
		outcome, err := svc.Resolve(context.Background(), resolve.KindBook, "9780134093413")
		require.NoError(t, err)
		require.Equal(t, resolve.OutcomeFound, outcome.Status)
		assert.Equal(t, "Cached Once", outcome.Record.Title)
	}
	assert.Equal(t, int32(1), resolver.resolveCalls.Load())
}

func TestResolvePersistsFoundRecords(t *testing.T) {
	resolver := &fakeResolver{record: bookPartial("Persist Me", "9780134093413")}
	store := newFakeStore()
	svc := newTestService(t, resolver, Options{Store: store})

	outcome, err := svc.Resolve(context.Background(), resolve.KindBook, "9780134093413")
	require.NoError(t, err)
	require.Equal(t, resolve.OutcomeFound, outcome.Status)

	require.Equal(t, 1, store.savedCount())
	assert.Equal(t, "Persist Me", store.saved[0].Title)
}

func TestResolvePrefersStoredRecord(t *testing.T) {
	resolver := &fakeResolver{record: bookPartial("From Network", "9780134093413")}
	store := newFakeStore()
	store.byIdent["isbn_13:9780134093413"] = &resolve.Record{
		Kind:  resolve.KindBook,
		Title: "From Disk",
	}

	svc := newTestService(t, resolver, Options{Store: store})
	outcome, err := svc.Resolve(context.Background(), resolve.KindBook, "9780134093413")
	require.NoError(t, err)

	require.Equal(t, resolve.OutcomeFound, outcome.Status)
	assert.Equal(t, "From Disk", outcome.Record.Title)
	assert.Equal(t, int32(0), resolver.resolveCalls.Load())
	assert.Equal(t, 0, store.savedCount(), "a stored record is not re-saved")
}

func TestResolveNotifiesIndexer(t *testing.T) {
	resolver := &fakeResolver{record: bookPartial("Index Me", "9780134093413")}
	indexer := &channelIndexer{notified: make(chan *resolve.Record, 1)}
	svc := newTestService(t, resolver, Options{Indexer: indexer})

	_, err := svc.Resolve(context.Background(), resolve.KindBook, "9780134093413")
	require.NoError(t, err)

	select {
	case rec := <-indexer.notified:
		assert.Equal(t, "Index Me", rec.Title)
	case <-time.After(time.Second):
		t.Fatal("indexer was never notified")
	}
}

func TestResolveFreeTextUsesSearch(t *testing.T) {
	resolver := &fakeResolver{
		searchHits: []resolve.PartialRecord{*bookPartial("Clean Code", "9780132350884")},
	}
	svc := newTestService(t, resolver, Options{})

	outcome, err := svc.Resolve(context.Background(), resolve.KindBook, "Clean Code")
	require.NoError(t, err)

	require.Equal(t, resolve.OutcomeFound, outcome.Status)
	assert.Equal(t, "Clean Code", outcome.Record.Title)
	assert.Equal(t, int32(0), resolver.resolveCalls.Load())
	assert.Equal(t, int32(1), resolver.searchCalls.Load())
}

func TestResolveFreeTextWithoutHits(t *testing.T) {
	svc := newTestService(t, &fakeResolver{}, Options{})

	outcome, err := svc.Resolve(context.Background(), resolve.KindBook, "no such book anywhere")
	require.NoError(t, err)
	assert.Equal(t, resolve.OutcomeNotFound, outcome.Status)
}

func TestSearchCachesResults(t *testing.T) {
	resolver := &fakeResolver{
		searchHits: []resolve.PartialRecord{*bookPartial("Hit", "9780132350884")},
	}
	svc := newTestService(t, resolver, Options{})

	for range 3 {
		hits, err := svc.Search(context.Background(), resolve.KindBook, "hit", 5)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Hit", *hits[0].Fields.Title)
	}
	assert.Equal(t, int32(1), resolver.searchCalls.Load())
}
