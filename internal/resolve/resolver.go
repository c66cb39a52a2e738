package resolve

import (
	"context"
	"errors"

	"github.com/lepinkainen/consearch/internal/identifier"
)

// Status classifies a single resolver call's outcome. Ordinary "no data"
// answers are statuses, not errors; resolvers reserve Go errors for the
// detail field of failure statuses.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotFound
	StatusRateLimited
	StatusTransientFailure
	StatusPermanentFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusRateLimited:
		return "rate_limited"
	case StatusTransientFailure:
		return "transient_failure"
	default:
		return "permanent_failure"
	}
}

var (
	// ErrTimeout marks a transient failure caused by the per-call deadline.
	ErrTimeout = errors.New("resolver call timed out")

	// ErrNoEligibleResolver is returned when no configured source accepts
	// the identifier type.
	ErrNoEligibleResolver = errors.New("no eligible resolver for identifier type")

	// ErrAllSourcesUnavailable is returned when every eligible source
	// failed transiently (timeout, rate limit, upstream error).
	ErrAllSourcesUnavailable = errors.New("all sources unavailable")
)

// PartialResult is the sum type a resolver call produces. Record is set
// only for StatusSuccess; Err carries detail for the failure statuses.
type PartialResult struct {
	Status Status
	Record *PartialRecord
	Err    error
}

// Success wraps a fetched record.
func Success(rec *PartialRecord) PartialResult {
	return PartialResult{Status: StatusSuccess, Record: rec}
}

// NotFound reports that the source answered but has no data for the
// identifier.
func NotFound() PartialResult {
	return PartialResult{Status: StatusNotFound}
}

// RateLimited reports an upstream 429 or equivalent.
func RateLimited(err error) PartialResult {
	return PartialResult{Status: StatusRateLimited, Err: err}
}

// Transient reports a retryable failure (network error, 5xx, timeout).
func Transient(err error) PartialResult {
	return PartialResult{Status: StatusTransientFailure, Err: err}
}

// Permanent reports a non-retryable failure (bad credentials, 4xx).
func Permanent(err error) PartialResult {
	return PartialResult{Status: StatusPermanentFailure, Err: err}
}

// Resolver is the capability contract one external source implements.
//
// A resolver performs exactly one logical outbound request per call and
// never retries on its own; retry and backoff budgets belong to the chain
// so they are shared across sources. Each call is bounded by the caller's
// context deadline; exceeding it yields Transient(ErrTimeout).
type Resolver interface {
	// Name returns the provider this resolver represents.
	Name() SourceName

	// Priority is the merge precedence rank; lower values win conflicts.
	Priority() int

	// Accepts reports whether the resolver can look up this identifier type.
	Accepts(t identifier.Type) bool

	// Authoritative reports whether a complete Success from this resolver
	// for the given type short-circuits the rest of the chain.
	Authoritative(t identifier.Type) bool

	// SupportsSearch reports whether the source offers free-text search.
	SupportsSearch() bool

	// Resolve turns one identifier into at most one partial record.
	Resolve(ctx context.Context, id identifier.Identifier) PartialResult

	// Search returns up to limit records ranked by the source's own
	// relevance. Only called when SupportsSearch is true.
	Search(ctx context.Context, query string, limit int) ([]PartialRecord, error)
}
