package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/lepinkainen/consearch/internal/config"
	"github.com/lepinkainen/consearch/internal/identifier"
	"github.com/lepinkainen/consearch/internal/ratelimit"
	"github.com/lepinkainen/consearch/internal/resolve"
)

const crossrefBaseURL = "https://api.crossref.org"

// Crossref resolves papers by DOI and supports free-text search. No API
// key; a contact email (configured in the api_key slot) opts into the
// polite pool for better service.
type Crossref struct {
	httpClient    *http.Client
	limiter       *ratelimit.Limiter
	baseURL       string
	mailto        string
	priority      int
	authoritative bool
}

var _ resolve.Resolver = (*Crossref)(nil)

// NewCrossref creates a Crossref resolver from settings.
func NewCrossref(cfg config.Source) *Crossref {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = crossrefBaseURL
	}
	return &Crossref{
		httpClient:    newHTTPClient(cfg.Timeout),
		limiter:       ratelimit.New("Crossref", cfg.RequestsPerSecond),
		baseURL:       baseURL,
		mailto:        cfg.APIKey,
		priority:      cfg.Priority,
		authoritative: cfg.Authoritative,
	}
}

func (c *Crossref) Name() resolve.SourceName { return resolve.SourceCrossref }
func (c *Crossref) Priority() int            { return c.priority }
func (c *Crossref) SupportsSearch() bool     { return true }

func (c *Crossref) Accepts(t identifier.Type) bool {
	return t == identifier.TypeDOI
}

func (c *Crossref) Authoritative(t identifier.Type) bool {
	return c.authoritative && c.Accepts(t)
}

// crossrefWork matches the works API message shape.
type crossrefWork struct {
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	DOI            string   `json:"DOI"`
	Volume         string   `json:"volume"`
	Issue          string   `json:"issue"`
	Page           string   `json:"page"`
	Abstract       string   `json:"abstract"`
	URL            string   `json:"URL"`
	ReferencedBy   int      `json:"is-referenced-by-count"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
		Name   string `json:"name"`
	} `json:"author"`
	Published struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"published"`
	Language string `json:"language"`
}

// Resolve fetches one work by DOI.
func (c *Crossref) Resolve(ctx context.Context, id identifier.Identifier) resolve.PartialResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return requestFailure(err)
	}

	reqURL := fmt.Sprintf("%s/works/%s", c.baseURL, url.PathEscape(id.Normalized))
	if c.mailto != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return resolve.Permanent(fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return requestFailure(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusFailure(c.Name(), resp.StatusCode)
	}

	var result struct {
		Message crossrefWork `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return resolve.Transient(fmt.Errorf("decoding response: %w", err))
	}
	if len(result.Message.Title) == 0 {
		return resolve.NotFound()
	}

	return resolve.Success(c.toRecord(result.Message))
}

// Search runs a bibliographic query against the works endpoint.
func (c *Crossref) Search(ctx context.Context, query string, limit int) ([]resolve.PartialRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/works?query.bibliographic=%s&rows=%d", c.baseURL, url.QueryEscape(query), limit)
	if c.mailto != "" {
		reqURL += "&mailto=" + url.QueryEscape(c.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossref search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crossref search returned status %d", resp.StatusCode)
	}

	var result struct {
		Message struct {
			Items []crossrefWork `json:"items"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	records := make([]resolve.PartialRecord, 0, len(result.Message.Items))
	for _, item := range result.Message.Items {
		if len(item.Title) == 0 {
			continue
		}
		records = append(records, *c.toRecord(item))
	}
	return records, nil
}

var jatsTagPattern = regexp.MustCompile(`</?jats:[^>]+>`)

func (c *Crossref) toRecord(work crossrefWork) *resolve.PartialRecord {
	fields := resolve.Fields{
		Title:         str(work.Title[0]),
		Volume:        str(work.Volume),
		Issue:         str(work.Issue),
		Language:      str(work.Language),
		PDFURL:        str(work.URL),
		CitationCount: num(work.ReferencedBy),
	}
	// Crossref abstracts arrive wrapped in JATS XML tags.
	if work.Abstract != "" {
		fields.Description = str(strings.TrimSpace(jatsTagPattern.ReplaceAllString(work.Abstract, "")))
	}
	if len(work.ContainerTitle) > 0 {
		fields.Journal = str(work.ContainerTitle[0])
	}
	if parts := work.Published.DateParts; len(parts) > 0 && len(parts[0]) > 0 {
		fields.Year = num(parts[0][0])
	}
	for _, a := range work.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = a.Name
		}
		if name != "" {
			fields.Authors = append(fields.Authors, name)
		}
	}
	fields.Identifiers.DOI = strings.ToLower(work.DOI)

	return &resolve.PartialRecord{
		Source:    c.Name(),
		Fields:    fields,
		FetchedAt: time.Now().UTC(),
	}
}
