// Package resolve contains the resolution core: the source resolver
// contract, the registry of configured sources, the fallback/aggregation
// chain, and the merge engine that combines partial answers into one
// canonical record.
package resolve

import (
	"time"

	"github.com/lepinkainen/consearch/internal/identifier"
)

// Kind selects the registry partition and merge priority table.
type Kind int

const (
	KindBook Kind = iota
	KindPaper
)

func (k Kind) String() string {
	if k == KindPaper {
		return "paper"
	}
	return "book"
}

// SourceName identifies an external provider. Used as the trust-ranking
// key in merge and as a registry partition key.
type SourceName string

const (
	SourceOpenLibrary     SourceName = "openlibrary"
	SourceGoogleBooks     SourceName = "googlebooks"
	SourceISBNdb          SourceName = "isbndb"
	SourceCrossref        SourceName = "crossref"
	SourceSemanticScholar SourceName = "semanticscholar"
)

// IdentifierSet holds one identifier per scheme. A record legitimately
// carries several of these at once (a book has both ISBN forms, a paper
// may have a DOI and an arXiv id).
type IdentifierSet struct {
	ISBN10  string `json:"isbn_10,omitempty"`
	ISBN13  string `json:"isbn_13,omitempty"`
	DOI     string `json:"doi,omitempty"`
	ArxivID string `json:"arxiv_id,omitempty"`
	PMID    string `json:"pmid,omitempty"`
}

// Empty reports whether no scheme is set.
func (s IdentifierSet) Empty() bool {
	return s == IdentifierSet{}
}

// Fields is one source's view of a work. Pointer fields distinguish
// "not provided" from "empty".
type Fields struct {
	Title         *string  `json:"title,omitempty"`
	Subtitle      *string  `json:"subtitle,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Publisher     *string  `json:"publisher,omitempty"`
	Journal       *string  `json:"journal,omitempty"`
	Volume        *string  `json:"volume,omitempty"`
	Issue         *string  `json:"issue,omitempty"`
	Pages         *int     `json:"pages,omitempty"`
	Year          *int     `json:"year,omitempty"`
	PublishDate   *string  `json:"publish_date,omitempty"`
	Language      *string  `json:"language,omitempty"`
	CoverURL      *string  `json:"cover_url,omitempty"`
	PDFURL        *string  `json:"pdf_url,omitempty"`
	CitationCount *int     `json:"citation_count,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`

	Identifiers IdentifierSet `json:"identifiers,omitempty"`
}

// PartialRecord is a single source's raw answer. It is owned by one chain
// execution and consumed only by the merge engine (or returned as a search
// hit); it is never persisted standalone.
type PartialRecord struct {
	Source    SourceName `json:"source"`
	Fields    Fields     `json:"fields"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Record is the merged canonical output. Provenance maps each set field
// name to the source that contributed it, for debugging; callers consume
// the plain values.
type Record struct {
	Kind          Kind          `json:"kind"`
	Title         string        `json:"title,omitempty"`
	Subtitle      string        `json:"subtitle,omitempty"`
	Description   string        `json:"description,omitempty"`
	Publisher     string        `json:"publisher,omitempty"`
	Journal       string        `json:"journal,omitempty"`
	Volume        string        `json:"volume,omitempty"`
	Issue         string        `json:"issue,omitempty"`
	Pages         int           `json:"pages,omitempty"`
	Year          int           `json:"year,omitempty"`
	PublishDate   string        `json:"publish_date,omitempty"`
	Language      string        `json:"language,omitempty"`
	CoverURL      string        `json:"cover_url,omitempty"`
	PDFURL        string        `json:"pdf_url,omitempty"`
	CitationCount int           `json:"citation_count,omitempty"`
	Authors       []string      `json:"authors,omitempty"`
	Subjects      []string      `json:"subjects,omitempty"`
	Identifiers   IdentifierSet `json:"identifiers"`

	Provenance map[string]SourceName `json:"provenance,omitempty"`
	ResolvedAt time.Time             `json:"resolved_at"`
}

// DedupeKey returns a stable key for deduplicating records that describe
// the same work, preferring the most authoritative identifier scheme.
func (f Fields) DedupeKey() string {
	ids := f.Identifiers
	switch {
	case ids.DOI != "":
		return "doi:" + ids.DOI
	case ids.ISBN13 != "":
		return "isbn:" + ids.ISBN13
	case ids.ISBN10 != "":
		if isbn13 := identifier.ToISBN13(ids.ISBN10); isbn13 != "" {
			return "isbn:" + isbn13
		}
		return "isbn:" + ids.ISBN10
	case ids.ArxivID != "":
		return "arxiv:" + ids.ArxivID
	case ids.PMID != "":
		return "pmid:" + ids.PMID
	}
	if f.Title != nil {
		return "title:" + normalizeFold(*f.Title)
	}
	return ""
}
