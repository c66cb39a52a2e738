package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/consearch/internal/identifier"
	"github.com/lepinkainen/consearch/internal/ratelimit"
)

const (
	defaultCallTimeout    = 10 * time.Second
	defaultMaxFanOut      = 4
	defaultCooldownWindow = 5 * time.Minute
)

// ChainConfig tunes fan-out and timeout behaviour for one chain.
type ChainConfig struct {
	// MaxFanOut bounds the number of concurrent resolver calls.
	MaxFanOut int

	// CallTimeout bounds each resolver call. Timeouts is a per-source
	// override; sources not listed use CallTimeout.
	CallTimeout time.Duration
	Timeouts    map[SourceName]time.Duration

	// CooldownWindow is how long a rate-limited source is skipped.
	CooldownWindow time.Duration

	// Complete decides whether an authoritative success is complete
	// enough to short-circuit the rest of the fan-out. Nil means
	// "title and at least one author".
	Complete func(*PartialRecord) bool
}

// Chain drives the registry's resolvers for one kind with a
// fallback/aggregation policy: concurrent dispatch under per-call
// timeouts, priority-ordered collection, and an authoritative
// short-circuit.
type Chain struct {
	registry *Registry
	merger   Merger
	cooldown *ratelimit.Cooldown
	cfg      ChainConfig
}

// NewChain creates a chain over the given registry. Zero config fields
// get conservative defaults.
func NewChain(registry *Registry, cfg ChainConfig) *Chain {
	if cfg.MaxFanOut <= 0 {
		cfg.MaxFanOut = defaultMaxFanOut
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.CooldownWindow <= 0 {
		cfg.CooldownWindow = defaultCooldownWindow
	}
	if cfg.Complete == nil {
		cfg.Complete = defaultComplete
	}

	return &Chain{
		registry: registry,
		merger:   NewPriorityMerger(),
		cooldown: ratelimit.NewCooldown(),
		cfg:      cfg,
	}
}

// Resolve runs the fallback chain for one identifier and returns the
// merged outcome. Partial failures of individual sources never abort the
// resolution while another eligible source can still answer.
func (c *Chain) Resolve(ctx context.Context, kind Kind, id identifier.Identifier) Outcome {
	eligible, coolingDown := c.eligibleFor(kind, id.Type)
	if len(eligible) == 0 {
		if coolingDown > 0 {
			// Every accepting source is in a rate-limit cooldown window.
			return Failed(ErrAllSourcesUnavailable)
		}
		return Failed(fmt.Errorf("%w: %s", ErrNoEligibleResolver, id.Type))
	}

	results := c.dispatch(ctx, eligible, id)

	// Collect successes in priority order, never completion order, so
	// merge precedence stays deterministic.
	var (
		records      []PartialRecord
		sawNotFound  bool
		sawPermanent bool
		firstErr     error
	)
	for i, res := range results {
		switch res.Status {
		case StatusSuccess:
			if res.Record != nil {
				records = append(records, *res.Record)
			}
		case StatusNotFound:
			sawNotFound = true
		case StatusPermanentFailure:
			// Treated like "no data from this source", but remembered:
			// it blocks the NotFound outcome below.
			sawPermanent = true
			slog.Warn("Resolver failed permanently",
				"source", eligible[i].Name(), "error", res.Err)
			if firstErr == nil {
				firstErr = res.Err
			}
		default:
			if firstErr == nil && res.Err != nil {
				firstErr = res.Err
			}
		}
	}

	if len(records) > 0 {
		return Found(c.merger.Merge(kind, records))
	}
	if sawNotFound && !sawPermanent {
		return NoRecord()
	}
	if firstErr != nil {
		return Failed(fmt.Errorf("%w: %v", ErrAllSourcesUnavailable, firstErr))
	}
	return Failed(ErrAllSourcesUnavailable)
}

// Search fans out a free-text query to every search-capable source for
// the kind and concatenates the per-source ranked lists in priority
// order, de-duplicating by identifier. Unlike Resolve there is no
// short-circuit: relevance ranking needs every source's answer.
func (c *Chain) Search(ctx context.Context, kind Kind, query string, limit int) ([]PartialRecord, error) {
	var searchers []Resolver
	for _, r := range c.registry.ChainFor(kind) {
		if r.SupportsSearch() && !c.cooldown.Active(string(r.Name())) {
			searchers = append(searchers, r)
		}
	}
	if len(searchers) == 0 {
		return nil, fmt.Errorf("%w: free-text search for %s", ErrNoEligibleResolver, kind)
	}

	lists := make([][]PartialRecord, len(searchers))
	errs := make([]error, len(searchers))

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.MaxFanOut)
	for i, r := range searchers {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(r.Name()))
			defer cancel()

			hits, err := r.Search(callCtx, query, limit)
			if err != nil {
				slog.Debug("Search failed", "source", r.Name(), "error", err)
				errs[i] = err
				return nil
			}
			lists[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
		}
	}
	if failures == len(searchers) {
		return nil, fmt.Errorf("%w: %v", ErrAllSourcesUnavailable, errs[0])
	}

	seen := make(map[string]bool)
	var merged []PartialRecord
	for _, list := range lists {
		for _, rec := range list {
			key := rec.Fields.DedupeKey()
			if key != "" && seen[key] {
				continue
			}
			if key != "" {
				seen[key] = true
			}
			merged = append(merged, rec)
			if len(merged) == limit {
				return merged, nil
			}
		}
	}
	return merged, nil
}

// eligibleFor filters the kind's resolver list to those accepting the
// identifier type and not cooling down after a rate-limit response. The
// second return value counts accepting sources skipped due to cooldown.
func (c *Chain) eligibleFor(kind Kind, t identifier.Type) ([]Resolver, int) {
	var (
		eligible    []Resolver
		coolingDown int
	)
	for _, r := range c.registry.ChainFor(kind) {
		if !r.Accepts(t) {
			continue
		}
		if c.cooldown.Active(string(r.Name())) {
			slog.Debug("Skipping resolver in cooldown", "source", r.Name())
			coolingDown++
			continue
		}
		eligible = append(eligible, r)
	}
	return eligible, coolingDown
}

// dispatch calls the eligible resolvers concurrently, up to MaxFanOut at
// a time, each under its own timeout. Results land in a slice indexed by
// priority position. When an authoritative resolver returns a complete
// success the remaining calls are cancelled and any result that still
// arrives is discarded, so merge state is never touched after the
// short-circuit.
func (c *Chain) dispatch(ctx context.Context, eligible []Resolver, id identifier.Identifier) []PartialResult {
	results := make([]PartialResult, len(eligible))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		done bool
	)

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.MaxFanOut)
	for i, r := range eligible {
		g.Go(func() error {
			mu.Lock()
			if done {
				mu.Unlock()
				return nil
			}
			mu.Unlock()

			callCtx, cancelCall := context.WithTimeout(runCtx, c.timeoutFor(r.Name()))
			res := r.Resolve(callCtx, id)
			cancelCall()

			mu.Lock()
			defer mu.Unlock()
			if done {
				return nil
			}
			results[i] = res

			switch res.Status {
			case StatusRateLimited:
				c.cooldown.Trip(string(r.Name()), c.cfg.CooldownWindow)
				slog.Debug("Resolver rate limited, cooling down",
					"source", r.Name(), "window", c.cfg.CooldownWindow)
			case StatusSuccess:
				if r.Authoritative(id.Type) && c.cfg.Complete(res.Record) {
					slog.Debug("Authoritative answer complete, short-circuiting",
						"source", r.Name())
					done = true
					cancel()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Chain) timeoutFor(name SourceName) time.Duration {
	if t, ok := c.cfg.Timeouts[name]; ok && t > 0 {
		return t
	}
	return c.cfg.CallTimeout
}

func defaultComplete(rec *PartialRecord) bool {
	if rec == nil {
		return false
	}
	return rec.Fields.Title != nil && *rec.Fields.Title != "" && len(rec.Fields.Authors) > 0
}
