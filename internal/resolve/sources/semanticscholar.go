package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lepinkainen/consearch/internal/config"
	"github.com/lepinkainen/consearch/internal/identifier"
	"github.com/lepinkainen/consearch/internal/ratelimit"
	"github.com/lepinkainen/consearch/internal/resolve"
)

const (
	semanticScholarBaseURL = "https://api.semanticscholar.org/graph/v1"
	semanticScholarFields  = "title,abstract,year,venue,authors,externalIds,citationCount,openAccessPdf"
)

// SemanticScholar resolves papers by DOI, arXiv id or PMID and supports
// free-text search. An API key raises quota but is optional.
type SemanticScholar struct {
	httpClient    *http.Client
	limiter       *ratelimit.Limiter
	baseURL       string
	apiKey        string
	priority      int
	authoritative bool
}

var _ resolve.Resolver = (*SemanticScholar)(nil)

// NewSemanticScholar creates a Semantic Scholar resolver from settings.
func NewSemanticScholar(cfg config.Source) *SemanticScholar {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = semanticScholarBaseURL
	}
	return &SemanticScholar{
		httpClient:    newHTTPClient(cfg.Timeout),
		limiter:       ratelimit.New("SemanticScholar", cfg.RequestsPerSecond),
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		priority:      cfg.Priority,
		authoritative: cfg.Authoritative,
	}
}

func (s *SemanticScholar) Name() resolve.SourceName { return resolve.SourceSemanticScholar }
func (s *SemanticScholar) Priority() int            { return s.priority }
func (s *SemanticScholar) SupportsSearch() bool     { return true }

func (s *SemanticScholar) Accepts(t identifier.Type) bool {
	switch t {
	case identifier.TypeDOI, identifier.TypeArxiv, identifier.TypePMID:
		return true
	default:
		return false
	}
}

func (s *SemanticScholar) Authoritative(t identifier.Type) bool {
	return s.authoritative && s.Accepts(t)
}

// semanticScholarPaper matches the graph API paper shape.
type semanticScholarPaper struct {
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	Year          int    `json:"year"`
	Venue         string `json:"venue"`
	CitationCount int    `json:"citationCount"`
	Authors       []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI      string `json:"DOI"`
		ArXiv    string `json:"ArXiv"`
		PubMed   string `json:"PubMed"`
		CorpusID int    `json:"CorpusId"`
	} `json:"externalIds"`
	OpenAccessPDF struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// paperPath maps an identifier to the graph API's prefixed paper id.
func paperPath(id identifier.Identifier) string {
	switch id.Type {
	case identifier.TypeArxiv:
		// The API rejects version suffixes on arXiv ids.
		base, _, _ := strings.Cut(id.Normalized, "v")
		return "ARXIV:" + base
	case identifier.TypePMID:
		return "PMID:" + id.Normalized
	default:
		return "DOI:" + id.Normalized
	}
}

// Resolve fetches one paper by identifier.
func (s *SemanticScholar) Resolve(ctx context.Context, id identifier.Identifier) resolve.PartialResult {
	if err := s.limiter.Wait(ctx); err != nil {
		return requestFailure(err)
	}

	reqURL := fmt.Sprintf("%s/paper/%s?fields=%s", s.baseURL, url.PathEscape(paperPath(id)), semanticScholarFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return resolve.Permanent(fmt.Errorf("creating request: %w", err))
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return requestFailure(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusFailure(s.Name(), resp.StatusCode)
	}

	var paper semanticScholarPaper
	if err := json.NewDecoder(resp.Body).Decode(&paper); err != nil {
		return resolve.Transient(fmt.Errorf("decoding response: %w", err))
	}
	if paper.Title == "" {
		return resolve.NotFound()
	}

	return resolve.Success(s.toRecord(paper))
}

// Search runs a relevance-ranked free-text query.
func (s *SemanticScholar) Search(ctx context.Context, query string, limit int) ([]resolve.PartialRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/paper/search?query=%s&limit=%d&fields=%s",
		s.baseURL, url.QueryEscape(query), limit, semanticScholarFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("semantic Scholar search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semantic Scholar search returned status %d", resp.StatusCode)
	}

	var result struct {
		Data []semanticScholarPaper `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	records := make([]resolve.PartialRecord, 0, len(result.Data))
	for _, paper := range result.Data {
		if paper.Title == "" {
			continue
		}
		records = append(records, *s.toRecord(paper))
	}
	return records, nil
}

func (s *SemanticScholar) setHeaders(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}
}

func (s *SemanticScholar) toRecord(paper semanticScholarPaper) *resolve.PartialRecord {
	fields := resolve.Fields{
		Title:         str(paper.Title),
		Description:   str(paper.Abstract),
		Journal:       str(paper.Venue),
		Year:          num(paper.Year),
		CitationCount: num(paper.CitationCount),
		PDFURL:        str(paper.OpenAccessPDF.URL),
	}
	for _, a := range paper.Authors {
		if a.Name != "" {
			fields.Authors = append(fields.Authors, a.Name)
		}
	}
	fields.Identifiers.DOI = strings.ToLower(paper.ExternalIDs.DOI)
	fields.Identifiers.ArxivID = strings.ToLower(paper.ExternalIDs.ArXiv)
	fields.Identifiers.PMID = paper.ExternalIDs.PubMed

	return &resolve.PartialRecord{
		Source:    s.Name(),
		Fields:    fields,
		FetchedAt: time.Now().UTC(),
	}
}
