// Package identifier classifies raw user input into typed, normalized
// identifiers (ISBN, DOI, arXiv id, PubMed id) with free text as the
// universal fallback. Classification is pure: no network, no cache.
package identifier

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Type is the detected identifier type.
type Type int

const (
	TypeFreeText Type = iota
	TypeISBN10
	TypeISBN13
	TypeDOI
	TypeArxiv
	TypePMID
)

func (t Type) String() string {
	switch t {
	case TypeISBN10:
		return "isbn_10"
	case TypeISBN13:
		return "isbn_13"
	case TypeDOI:
		return "doi"
	case TypeArxiv:
		return "arxiv"
	case TypePMID:
		return "pmid"
	default:
		return "free_text"
	}
}

var (
	// ErrInvalidChecksum is returned when input has the exact shape of an
	// ISBN but the check digit does not verify. Such input is never
	// silently downgraded to a free-text query.
	ErrInvalidChecksum = errors.New("invalid ISBN checksum")

	// ErrUnrecognizedShape is returned for input that cannot be classified
	// at all (e.g. empty after trimming).
	ErrUnrecognizedShape = errors.New("unrecognized identifier shape")
)

// Identifier is an immutable classified identifier. Normalized is the
// canonical form (separators stripped, case folded) and is the only value
// suitable as a cache or lookup key.
type Identifier struct {
	Raw        string
	Normalized string
	Type       Type
}

// Legacy arXiv archive prefixes ("hep-th/9901001" style ids).
const arxivOldArchives = `acc-phys|adap-org|alg-geom|ao-sci|astro-ph|atom-ph|bayes-an|chao-dyn|` +
	`chem-ph|cmp-lg|comp-gas|cond-mat|cs|dg-ga|funct-an|gr-qc|hep-ex|hep-lat|` +
	`hep-ph|hep-th|math|math-ph|mtrl-th|nlin|nucl-ex|nucl-th|patt-sol|physics|` +
	`plasm-ph|q-alg|q-bio|quant-ph|solv-int|stat|supr-con`

var (
	doiPattern      = regexp.MustCompile(`^10\.\d{4,9}(?:\.\d+)*/\S+$`)
	arxivNewPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(?:v\d+)?$`)
	arxivOldPattern = regexp.MustCompile(`^(?:` + arxivOldArchives + `)(?:\.[A-Z]{2})?/\d{7}(?:v\d+)?$`)
	pmidPattern     = regexp.MustCompile(`^\d{7,9}$`)
	isbnCharPattern = regexp.MustCompile(`^[0-9Xx][0-9Xx\s-]*$`)
	digitsPattern   = regexp.MustCompile(`^\d+$`)

	doiPrefixPattern   = regexp.MustCompile(`(?i)^doi:\s*`)
	arxivPrefixPattern = regexp.MustCompile(`(?i)^arxiv:\s*`)
	isbnPrefixPattern  = regexp.MustCompile(`(?i)^isbn(?:-?1[03])?[:\s]\s*`)
	pmidPrefixPattern  = regexp.MustCompile(`(?i)^pmid[:\s]\s*`)
)

// Classify assigns raw input one of the identifier types, validating
// checksums where the type defines one.
//
// Precedence when a string matches multiple shapes: DOI first (the "10."
// prefix is unambiguous), then ISBN-13, ISBN-10, arXiv, PMID, and finally
// free text, which always succeeds. A string that looks exactly like an
// ISBN but fails its checksum is an error, not free text.
func Classify(raw string) (Identifier, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return Identifier{}, ErrUnrecognizedShape
	}

	input = unwrapURL(input)
	input = stripPrefix(input)

	// DOI: unambiguous by prefix. DOIs are case-insensitive, so the
	// normalized form is lowercased.
	if doiPattern.MatchString(input) {
		return Identifier{Raw: raw, Normalized: strings.ToLower(input), Type: TypeDOI}, nil
	}

	// ISBN shapes. Separators are stripped before length/checksum checks,
	// but only inputs made of ISBN characters qualify as candidates.
	if isbnCharPattern.MatchString(input) {
		compact := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(input))
		switch {
		case len(compact) == 13 && digitsPattern.MatchString(compact):
			if !ValidISBN13(compact) {
				return Identifier{}, ErrInvalidChecksum
			}
			return Identifier{Raw: raw, Normalized: compact, Type: TypeISBN13}, nil
		case len(compact) == 10 && digitsPattern.MatchString(compact[:9]):
			if !ValidISBN10(compact) {
				return Identifier{}, ErrInvalidChecksum
			}
			return Identifier{Raw: raw, Normalized: compact, Type: TypeISBN10}, nil
		}
	}

	if arxivNewPattern.MatchString(input) || arxivOldPattern.MatchString(input) {
		return Identifier{Raw: raw, Normalized: strings.ToLower(input), Type: TypeArxiv}, nil
	}

	// PMID range deliberately stops at 9 digits; 10 and 13 digit strings
	// were already claimed by the ISBN branch above.
	if pmidPattern.MatchString(input) {
		return Identifier{Raw: raw, Normalized: input, Type: TypePMID}, nil
	}

	return Identifier{Raw: raw, Normalized: input, Type: TypeFreeText}, nil
}

// stripPrefix removes scheme prefixes like "doi:", "arXiv:", "ISBN-13:" and
// "PMID:" so the bare value goes through type matching.
func stripPrefix(s string) string {
	for _, re := range []*regexp.Regexp{doiPrefixPattern, arxivPrefixPattern, isbnPrefixPattern, pmidPrefixPattern} {
		if re.MatchString(s) {
			return strings.TrimSpace(re.ReplaceAllString(s, ""))
		}
	}
	return s
}

// unwrapURL reduces doi.org, arxiv.org and pubmed URLs to the embedded
// identifier. Anything else passes through untouched.
func unwrapURL(s string) string {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return s
	}

	u, err := url.Parse(s)
	if err != nil {
		return s
	}

	host := strings.ToLower(u.Hostname())
	path := strings.TrimPrefix(u.Path, "/")

	switch {
	case host == "doi.org" || host == "dx.doi.org":
		return path
	case host == "arxiv.org" || host == "www.arxiv.org" || host == "export.arxiv.org":
		path = strings.TrimPrefix(path, "abs/")
		path = strings.TrimPrefix(path, "pdf/")
		return strings.TrimSuffix(path, ".pdf")
	case strings.Contains(host, "pubmed") || strings.Contains(host, "ncbi.nlm.nih.gov"):
		if m := regexp.MustCompile(`(\d{7,9})`).FindString(path); m != "" {
			return m
		}
	}

	return s
}
