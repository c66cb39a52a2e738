package resolve

import (
	"strings"
	"time"

	"github.com/lepinkainen/consearch/internal/identifier"
)

// Merger combines partial records for the same logical work into one
// canonical record.
type Merger interface {
	// Merge consumes records ordered by source priority (highest
	// precedence first) and is deterministic for the same ordered input.
	Merge(kind Kind, records []PartialRecord) *Record
}

// PriorityMerger implements Merger with a first-writer-wins policy: each
// scalar field takes the value from the highest-priority record that has
// it, and never gets overwritten by a lower-priority one. Slice fields
// are unioned across sources instead, de-duplicated case-insensitively in
// first-seen order. Identifier schemes are unioned as a set regardless of
// which source provided them.
type PriorityMerger struct{}

// NewPriorityMerger creates a new PriorityMerger.
func NewPriorityMerger() *PriorityMerger {
	return &PriorityMerger{}
}

// Merge combines the given partial records into a canonical record, or
// returns nil for empty input. Provenance records which source set each
// scalar field.
func (m *PriorityMerger) Merge(kind Kind, records []PartialRecord) *Record {
	if len(records) == 0 {
		return nil
	}

	merged := &Record{
		Kind:       kind,
		Provenance: make(map[string]SourceName),
		ResolvedAt: time.Now().UTC(),
	}

	for _, rec := range records {
		f := rec.Fields

		setString(merged, &merged.Title, "title", f.Title, rec.Source)
		setString(merged, &merged.Subtitle, "subtitle", f.Subtitle, rec.Source)
		setString(merged, &merged.Description, "description", f.Description, rec.Source)
		setString(merged, &merged.Publisher, "publisher", f.Publisher, rec.Source)
		setString(merged, &merged.Journal, "journal", f.Journal, rec.Source)
		setString(merged, &merged.Volume, "volume", f.Volume, rec.Source)
		setString(merged, &merged.Issue, "issue", f.Issue, rec.Source)
		setString(merged, &merged.PublishDate, "publish_date", f.PublishDate, rec.Source)
		setString(merged, &merged.Language, "language", f.Language, rec.Source)
		setString(merged, &merged.CoverURL, "cover_url", f.CoverURL, rec.Source)
		setString(merged, &merged.PDFURL, "pdf_url", f.PDFURL, rec.Source)
		setInt(merged, &merged.Pages, "pages", f.Pages, rec.Source)
		setInt(merged, &merged.Year, "year", f.Year, rec.Source)
		setInt(merged, &merged.CitationCount, "citation_count", f.CitationCount, rec.Source)

		// Authors and subjects are unioned, not overwritten: lower-priority
		// sources may know about contributors the primary source omits.
		merged.Authors = unionFold(merged.Authors, f.Authors)
		merged.Subjects = unionFold(merged.Subjects, f.Subjects)

		mergeIdentifiers(&merged.Identifiers, f.Identifiers)
	}

	// A record with one ISBN form implicitly has the other.
	if merged.Identifiers.ISBN13 == "" && merged.Identifiers.ISBN10 != "" {
		merged.Identifiers.ISBN13 = identifier.ToISBN13(merged.Identifiers.ISBN10)
	}
	if merged.Identifiers.ISBN10 == "" && merged.Identifiers.ISBN13 != "" {
		merged.Identifiers.ISBN10 = identifier.ToISBN10(merged.Identifiers.ISBN13)
	}

	return merged
}

func setString(rec *Record, dst *string, field string, val *string, src SourceName) {
	if *dst == "" && val != nil && *val != "" {
		*dst = *val
		rec.Provenance[field] = src
	}
}

func setInt(rec *Record, dst *int, field string, val *int, src SourceName) {
	if *dst == 0 && val != nil && *val > 0 {
		*dst = *val
		rec.Provenance[field] = src
	}
}

func mergeIdentifiers(dst *IdentifierSet, src IdentifierSet) {
	if dst.ISBN10 == "" {
		dst.ISBN10 = src.ISBN10
	}
	if dst.ISBN13 == "" {
		dst.ISBN13 = src.ISBN13
	}
	if dst.DOI == "" {
		dst.DOI = src.DOI
	}
	if dst.ArxivID == "" {
		dst.ArxivID = src.ArxivID
	}
	if dst.PMID == "" {
		dst.PMID = src.PMID
	}
}

// unionFold merges two string slices, dropping case-insensitive duplicates
// while preserving first-seen order.
func unionFold(a, b []string) []string {
	if len(b) == 0 {
		return a
	}

	seen := make(map[string]bool, len(a)+len(b))
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		key := normalizeFold(s)
		if !seen[key] {
			seen[key] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		key := normalizeFold(s)
		if s != "" && !seen[key] {
			seen[key] = true
			result = append(result, s)
		}
	}

	return result
}

func normalizeFold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
