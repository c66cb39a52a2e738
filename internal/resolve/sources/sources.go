// Package sources implements the resolve.Resolver contract for the
// external providers: OpenLibrary, Google Books and ISBNdb for books,
// Crossref and Semantic Scholar for papers.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lepinkainen/consearch/internal/config"
	"github.com/lepinkainen/consearch/internal/resolve"
)

const defaultHTTPTimeout = 10 * time.Second

// DefaultRegistry builds the resolver registry from settings. Sources
// whose required credential is missing are left out here, at construction
// time, rather than failing per call.
func DefaultRegistry(cfg *config.Settings) *resolve.Registry {
	registry := resolve.NewRegistry()

	if src, ok := cfg.Sources["isbndb"]; ok && src.Enabled && src.APIKey != "" {
		registry.Register(resolve.KindBook, NewISBNdb(src))
	}
	if src, ok := cfg.Sources["openlibrary"]; ok && src.Enabled {
		registry.Register(resolve.KindBook, NewOpenLibrary(src))
	}
	if src, ok := cfg.Sources["googlebooks"]; ok && src.Enabled {
		registry.Register(resolve.KindBook, NewGoogleBooks(src))
	}

	if src, ok := cfg.Sources["crossref"]; ok && src.Enabled {
		registry.Register(resolve.KindPaper, NewCrossref(src))
	}
	if src, ok := cfg.Sources["semanticscholar"]; ok && src.Enabled {
		registry.Register(resolve.KindPaper, NewSemanticScholar(src))
	}

	return registry
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// requestFailure maps a transport-level error to a partial result.
// Context deadline expiry is the per-call timeout, a transient condition.
func requestFailure(err error) resolve.PartialResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return resolve.Transient(resolve.ErrTimeout)
	}
	return resolve.Transient(err)
}

// statusFailure maps a non-200 response to a partial result. 404 is an
// ordinary "no data" answer, 429 trips the chain's cooldown, 5xx is
// retryable elsewhere, anything else is a contract or credential problem.
func statusFailure(source resolve.SourceName, statusCode int) resolve.PartialResult {
	switch {
	case statusCode == http.StatusNotFound:
		return resolve.NotFound()
	case statusCode == http.StatusTooManyRequests:
		return resolve.RateLimited(fmt.Errorf("%s returned 429", source))
	case statusCode >= 500:
		return resolve.Transient(fmt.Errorf("%s returned status %d", source, statusCode))
	default:
		return resolve.Permanent(fmt.Errorf("%s returned status %d", source, statusCode))
	}
}

// str returns a pointer to s, or nil when s is empty, matching the
// "absent vs empty" convention of resolve.Fields.
func str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// num returns a pointer to n, or nil when n is not positive.
func num(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
