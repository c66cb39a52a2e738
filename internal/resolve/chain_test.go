package resolve

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/consearch/internal/identifier"
)

// stubResolver is a scriptable Resolver for chain and registry tests.
type stubResolver struct {
	name          SourceName
	priority      int
	accepts       func(identifier.Type) bool
	authoritative bool
	searchable    bool

	resolveFn func(ctx context.Context, id identifier.Identifier) PartialResult
	searchFn  func(ctx context.Context, query string, limit int) ([]PartialRecord, error)

	resolveCalls atomic.Int32
	searchCalls  atomic.Int32
}

func (s *stubResolver) Name() SourceName    { return s.name }
func (s *stubResolver) Priority() int       { return s.priority }
func (s *stubResolver) SupportsSearch() bool { return s.searchable }

func (s *stubResolver) Accepts(t identifier.Type) bool {
	if s.accepts == nil {
		return true
	}
	return s.accepts(t)
}

func (s *stubResolver) Authoritative(t identifier.Type) bool {
	return s.authoritative && s.Accepts(t)
}

func (s *stubResolver) Resolve(ctx context.Context, id identifier.Identifier) PartialResult {
	s.resolveCalls.Add(1)
	if s.resolveFn == nil {
		return NotFound()
	}
	return s.resolveFn(ctx, id)
}

func (s *stubResolver) Search(ctx context.Context, query string, limit int) ([]PartialRecord, error) {
	s.searchCalls.Add(1)
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, query, limit)
}

func successWith(source SourceName, title string, authors ...string) func(context.Context, identifier.Identifier) PartialResult {
	return func(context.Context, identifier.Identifier) PartialResult {
		return Success(&PartialRecord{
			Source:    source,
			Fields:    Fields{Title: strp(title), Authors: authors},
			FetchedAt: time.Now().UTC(),
		})
	}
}

func newTestChain(cfg ChainConfig, resolvers ...Resolver) *Chain {
	registry := NewRegistry()
	for _, r := range resolvers {
		registry.Register(KindBook, r)
	}
	return NewChain(registry, cfg)
}

func isbn13ID(t *testing.T) identifier.Identifier {
	t.Helper()
	id, err := identifier.Classify("9780134093413")
	require.NoError(t, err)
	return id
}

func TestChainFallsBackToNextSource(t *testing.T) {
	first := &stubResolver{name: "first", priority: 0}
	second := &stubResolver{
		name:      "second",
		priority:  1,
		resolveFn: successWith("second", "Clean Architecture", "Robert C. Martin"),
	}

	chain := newTestChain(ChainConfig{}, first, second)
	outcome := chain.Resolve(context.Background(), KindBook, isbn13ID(t))

	require.Equal(t, OutcomeFound, outcome.Status)
	require.NotNil(t, outcome.Record)
	assert.Equal(t, "Clean Architecture", outcome.Record.Title)
	assert.Equal(t, int32(1), first.resolveCalls.Load())
	assert.Equal(t, int32(1), second.resolveCalls.Load())
}

func TestChainAuthoritativeShortCircuit(t *testing.T) {
	first := &stubResolver{
		name:          "authoritative",
		priority:      0,
		authoritative: true,
		resolveFn:     successWith("authoritative", "The Mythical Man-Month", "Frederick P. Brooks"),
	}
	second := &stubResolver{
		name:      "fallback",
		priority:  1,
		resolveFn: successWith("fallback", "never used"),
	}

	// MaxFanOut 1 serializes dispatch, so the short-circuit latch is set
	// before the second resolver is considered.
	chain := newTestChain(ChainConfig{MaxFanOut: 1}, first, second)
	outcome := chain.Resolve(context.Background(), KindBook, isbn13ID(t))

	require.Equal(t, OutcomeFound, outcome.Status)
	assert.Equal(t, "The Mythical Man-Month", outcome.Record.Title)
	assert.Equal(t, int32(0), second.resolveCalls.Load())
}

func TestChainIncompleteAuthoritativeKeepsGoing(t *testing.T) {
	// Authoritative answer without authors is not complete, so the
	// fallback still runs and fills the gap.
	first := &stubResolver{
		name:          "authoritative",
		priority:      0,
		authoritative: true,
		resolveFn:     successWith("authoritative", "Refactoring"),
	}
	second := &stubResolver{
		name:      "fallback",
		priority:  1,
		resolveFn: successWith("fallback", "Refactoring (2nd ed)", "Martin Fowler"),
	}

	chain := newTestChain(ChainConfig{MaxFanOut: 1}, first, second)
	outcome := chain.Resolve(context.Background(), KindBook, isbn13ID(t))

	require.Equal(t, OutcomeFound, outcome.Status)
	assert.Equal(t, int32(1), second.resolveCalls.Load())
	// Priority order still decides scalar precedence.
	assert.Equal(t, "Refactoring", outcome.Record.Title)
	assert.Equal(t, []string{"Martin Fowler"}, outcome.Record.Authors)
}

func TestChainMergePrecedenceIgnoresCompletionOrder(t *testing.T) {
	slow := &stubResolver{
		name:     "slow-primary",
		priority: 0,
		resolveFn: func(ctx context.Context, id identifier.Identifier) PartialResult {
			time.Sleep(20 * time.Millisecond)
			return successWith("slow-primary", "Primary Title")(ctx, id)
		},
	}
	fast := &stubResolver{
		name:      "fast-secondary",
		priority:  1,
		resolveFn: successWith("fast-secondary", "Secondary Title"),
	}

	chain := newTestChain(ChainConfig{MaxFanOut: 2}, slow, fast)
	outcome := chain.Resolve(context.Background(), KindBook, isbn13ID(t))

	require.Equal(t, OutcomeFound, outcome.Status)
	assert.Equal(t, "Primary Title", outcome.Record.Title)
}

func TestChainAllNotFound(t *testing.T) {
	chain := newTestChain(ChainConfig{},
		&stubResolver{name: "first"},
		&stubResolver{name: "second", priority: 1},
	)

	outcome := chain.Resolve(context.Background(), KindBook, isbn13ID(t))
	assert.Equal(t, OutcomeNotFound, outcome.Status)
	assert.Nil(t, outcome.Record)
}

func TestChainPermanentFailureBlocksNotFound(t *testing.T) {
	// One source said NotFound but another failed permanently, so "the
	// work does not exist" cannot be claimed.
	chain := newTestChain(ChainConfig{},
		&stubResolver{name: "first"},
		&stubResolver{
			name:     "second",
			priority: 1,
			resolveFn: func(context.Context, identifier.Identifier) PartialResult {
				return Permanent(errors.New("401 unauthorized"))
			},
		},
	)

	outcome := chain.Resolve(context.Background(), KindBook, isbn13ID(t))
	require.Equal(t, OutcomeFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, ErrAllSourcesUnavailable)
}

func TestChainNoEligibleResolver(t *testing.T) {
	chain := newTestChain(ChainConfig{}, &stubResolver{
		name: "isbn-only",
		accepts: func(t identifier.Type) bool {
			return t == identifier.TypeISBN13 || t == identifier.TypeISBN10
		},
	})

	doi, err := identifier.Classify("10.1038/nature12373")
	require.NoError(t, err)

	outcome := chain.Resolve(context.Background(), KindBook, doi)
	require.Equal(t, OutcomeFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, ErrNoEligibleResolver)
}

func TestChainCooldownSkipsRateLimitedSource(t *testing.T) {
	limited := &stubResolver{
		name: "limited",
		resolveFn: func(context.Context, identifier.Identifier) PartialResult {
			return RateLimited(errors.New("429"))
		},
	}
	healthy := &stubResolver{
		name:      "healthy",
		priority:  1,
		resolveFn: successWith("healthy", "A Philosophy of Software Design", "John Ousterhout"),
	}

	chain := newTestChain(ChainConfig{CooldownWindow: time.Minute}, limited, healthy)
	id := isbn13ID(t)

	outcome := chain.Resolve(context.Background(), KindBook, id)
	require.Equal(t, OutcomeFound, outcome.Status)
	assert.Equal(t, int32(1), limited.resolveCalls.Load())

	// Second resolution inside the window never touches the tripped source.
	outcome = chain.Resolve(context.Background(), KindBook, id)
	require.Equal(t, OutcomeFound, outcome.Status)
	assert.Equal(t, int32(1), limited.resolveCalls.Load())
	assert.Equal(t, int32(2), healthy.resolveCalls.Load())
}

func TestChainAllSourcesCoolingDown(t *testing.T) {
	limited := &stubResolver{
		name: "limited",
		resolveFn: func(context.Context, identifier.Identifier) PartialResult {
			return RateLimited(errors.New("429"))
		},
	}

	chain := newTestChain(ChainConfig{CooldownWindow: time.Minute}, limited)
	id := isbn13ID(t)

	outcome := chain.Resolve(context.Background(), KindBook, id)
	require.Equal(t, OutcomeFailed, outcome.Status)

	outcome = chain.Resolve(context.Background(), KindBook, id)
	require.Equal(t, OutcomeFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, ErrAllSourcesUnavailable)
	assert.Equal(t, int32(1), limited.resolveCalls.Load())
}

func TestChainPerCallTimeout(t *testing.T) {
	stuck := &stubResolver{
		name: "stuck",
		resolveFn: func(ctx context.Context, _ identifier.Identifier) PartialResult {
			select {
			case <-ctx.Done():
				return Transient(ErrTimeout)
			case <-time.After(5 * time.Second):
				return NotFound()
			}
		},
	}

	chain := newTestChain(ChainConfig{CallTimeout: 20 * time.Millisecond}, stuck)

	start := time.Now()
	outcome := chain.Resolve(context.Background(), KindBook, isbn13ID(t))

	require.Equal(t, OutcomeFailed, outcome.Status)
	assert.Less(t, time.Since(start), time.Second)
}

func searchHit(source SourceName, title, isbn13 string) PartialRecord {
	return PartialRecord{
		Source: source,
		Fields: Fields{
			Title:       strp(title),
			Identifiers: IdentifierSet{ISBN13: isbn13},
		},
		FetchedAt: time.Now().UTC(),
	}
}

func TestChainSearchConcatenatesAndDedupes(t *testing.T) {
	first := &stubResolver{
		name:       "first",
		searchable: true,
		searchFn: func(context.Context, string, int) ([]PartialRecord, error) {
			return []PartialRecord{
				searchHit("first", "Clean Code", "9780132350884"),
				searchHit("first", "Clean Architecture", "9780134494166"),
			}, nil
		},
	}
	second := &stubResolver{
		name:       "second",
		priority:   1,
		searchable: true,
		searchFn: func(context.Context, string, int) ([]PartialRecord, error) {
			return []PartialRecord{
				// Same work as the first source's top hit, dropped.
				searchHit("second", "Clean Code: A Handbook", "9780132350884"),
				searchHit("second", "The Clean Coder", "9780137081073"),
			}, nil
		},
	}

	chain := newTestChain(ChainConfig{}, first, second)
	hits, err := chain.Search(context.Background(), KindBook, "clean code", 10)
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, "Clean Code", *hits[0].Fields.Title)
	assert.Equal(t, "Clean Architecture", *hits[1].Fields.Title)
	assert.Equal(t, "The Clean Coder", *hits[2].Fields.Title)
}

func TestChainSearchTruncatesAtLimit(t *testing.T) {
	source := &stubResolver{
		name:       "only",
		searchable: true,
		searchFn: func(context.Context, string, int) ([]PartialRecord, error) {
			return []PartialRecord{
				searchHit("only", "One", "9780132350884"),
				searchHit("only", "Two", "9780134494166"),
				searchHit("only", "Three", "9780137081073"),
			}, nil
		},
	}

	chain := newTestChain(ChainConfig{}, source)
	hits, err := chain.Search(context.Background(), KindBook, "q", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestChainSearchToleratesPartialFailure(t *testing.T) {
	broken := &stubResolver{
		name:       "broken",
		searchable: true,
		searchFn: func(context.Context, string, int) ([]PartialRecord, error) {
			return nil, errors.New("boom")
		},
	}
	working := &stubResolver{
		name:       "working",
		priority:   1,
		searchable: true,
		searchFn: func(context.Context, string, int) ([]PartialRecord, error) {
			return []PartialRecord{searchHit("working", "Found Anyway", "9780132350884")}, nil
		},
	}

	chain := newTestChain(ChainConfig{}, broken, working)
	hits, err := chain.Search(context.Background(), KindBook, "q", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Found Anyway", *hits[0].Fields.Title)
}

func TestChainSearchAllSourcesFailing(t *testing.T) {
	broken := &stubResolver{
		name:       "broken",
		searchable: true,
		searchFn: func(context.Context, string, int) ([]PartialRecord, error) {
			return nil, errors.New("boom")
		},
	}

	chain := newTestChain(ChainConfig{}, broken)
	_, err := chain.Search(context.Background(), KindBook, "q", 5)
	assert.ErrorIs(t, err, ErrAllSourcesUnavailable)
}

func TestChainSearchNoSearchableSources(t *testing.T) {
	chain := newTestChain(ChainConfig{}, &stubResolver{name: "resolve-only"})
	_, err := chain.Search(context.Background(), KindBook, "q", 5)
	assert.ErrorIs(t, err, ErrNoEligibleResolver)
}
