package resolve

import (
	"log/slog"
	"sort"
)

// Registry holds the configured resolvers, partitioned by consumable kind
// and ordered by priority. Which sources get registered is a construction
// time decision (a source missing its required API key is never added);
// after construction the registry is read-only and safe for concurrent use.
type Registry struct {
	books  []Resolver
	papers []Resolver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a resolver to the given kind's partition, keeping the
// partition sorted by priority (lower = higher precedence). Registration
// order breaks ties.
func (r *Registry) Register(kind Kind, resolver Resolver) {
	slog.Debug("Registering resolver",
		"source", resolver.Name(),
		"kind", kind.String(),
		"priority", resolver.Priority(),
	)

	switch kind {
	case KindPaper:
		r.papers = insertByPriority(r.papers, resolver)
	default:
		r.books = insertByPriority(r.books, resolver)
	}
}

// ChainFor returns the ordered resolver list for a kind. The returned
// slice is a copy; registry state never changes during a resolution.
func (r *Registry) ChainFor(kind Kind) []Resolver {
	var src []Resolver
	if kind == KindPaper {
		src = r.papers
	} else {
		src = r.books
	}

	out := make([]Resolver, len(src))
	copy(out, src)
	return out
}

func insertByPriority(resolvers []Resolver, resolver Resolver) []Resolver {
	resolvers = append(resolvers, resolver)
	sort.SliceStable(resolvers, func(i, j int) bool {
		return resolvers[i].Priority() < resolvers[j].Priority()
	})
	return resolvers
}
