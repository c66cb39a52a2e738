package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lepinkainen/consearch/internal/config"
	"github.com/lepinkainen/consearch/internal/identifier"
	"github.com/lepinkainen/consearch/internal/ratelimit"
	"github.com/lepinkainen/consearch/internal/resolve"
)

const googleBooksBaseURL = "https://www.googleapis.com/books/v1"

// GoogleBooks resolves books by ISBN and supports free-text search.
// An API key raises quota but is optional.
type GoogleBooks struct {
	httpClient    *http.Client
	limiter       *ratelimit.Limiter
	baseURL       string
	apiKey        string
	priority      int
	authoritative bool
}

var _ resolve.Resolver = (*GoogleBooks)(nil)

// NewGoogleBooks creates a Google Books resolver from settings.
func NewGoogleBooks(cfg config.Source) *GoogleBooks {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = googleBooksBaseURL
	}
	return &GoogleBooks{
		httpClient:    newHTTPClient(cfg.Timeout),
		limiter:       ratelimit.New("GoogleBooks", cfg.RequestsPerSecond),
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		priority:      cfg.Priority,
		authoritative: cfg.Authoritative,
	}
}

func (g *GoogleBooks) Name() resolve.SourceName { return resolve.SourceGoogleBooks }
func (g *GoogleBooks) Priority() int            { return g.priority }
func (g *GoogleBooks) SupportsSearch() bool     { return true }

func (g *GoogleBooks) Accepts(t identifier.Type) bool {
	return t == identifier.TypeISBN10 || t == identifier.TypeISBN13
}

func (g *GoogleBooks) Authoritative(t identifier.Type) bool {
	return g.authoritative && g.Accepts(t)
}

// googleBooksVolume matches the volumes API response item shape.
type googleBooksVolume struct {
	VolumeInfo struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		PageCount           int      `json:"pageCount"`
		Categories          []string `json:"categories"`
		Language            string   `json:"language"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

type googleBooksResponse struct {
	TotalItems int                 `json:"totalItems"`
	Items      []googleBooksVolume `json:"items"`
}

// Resolve fetches one book by ISBN.
func (g *GoogleBooks) Resolve(ctx context.Context, id identifier.Identifier) resolve.PartialResult {
	result, res := g.query(ctx, "isbn:"+id.Normalized, 1)
	if res != nil {
		return *res
	}
	if result.TotalItems == 0 || len(result.Items) == 0 {
		return resolve.NotFound()
	}
	return resolve.Success(g.toRecord(result.Items[0]))
}

// Search runs a free-text query, ranked by Google Books relevance.
func (g *GoogleBooks) Search(ctx context.Context, query string, limit int) ([]resolve.PartialRecord, error) {
	result, res := g.query(ctx, query, limit)
	if res != nil {
		if res.Err != nil {
			return nil, res.Err
		}
		return nil, fmt.Errorf("google Books search failed: %s", res.Status)
	}

	records := make([]resolve.PartialRecord, 0, len(result.Items))
	for _, item := range result.Items {
		records = append(records, *g.toRecord(item))
	}
	return records, nil
}

// query performs one volumes request. The second return value is non-nil
// when the request failed, carrying the classified failure.
func (g *GoogleBooks) query(ctx context.Context, q string, limit int) (*googleBooksResponse, *resolve.PartialResult) {
	fail := func(r resolve.PartialResult) (*googleBooksResponse, *resolve.PartialResult) {
		return nil, &r
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return fail(requestFailure(err))
	}

	reqURL := fmt.Sprintf("%s/volumes?q=%s&maxResults=%d", g.baseURL, url.QueryEscape(q), limit)
	if g.apiKey != "" {
		reqURL += "&key=" + url.QueryEscape(g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fail(resolve.Permanent(fmt.Errorf("creating request: %w", err)))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fail(requestFailure(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fail(statusFailure(g.Name(), resp.StatusCode))
	}

	var result googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fail(resolve.Transient(fmt.Errorf("decoding response: %w", err)))
	}
	return &result, nil
}

func (g *GoogleBooks) toRecord(item googleBooksVolume) *resolve.PartialRecord {
	info := item.VolumeInfo

	fields := resolve.Fields{
		Title:       str(info.Title),
		Subtitle:    str(info.Subtitle),
		Description: str(info.Description),
		Publisher:   str(info.Publisher),
		PublishDate: str(info.PublishedDate),
		Language:    str(info.Language),
		Pages:       num(info.PageCount),
		CoverURL:    str(info.ImageLinks.Thumbnail),
		Authors:     info.Authors,
		Subjects:    info.Categories,
	}
	if year := yearFromDate(info.PublishedDate); year > 0 {
		fields.Year = num(year)
	}
	for _, id := range info.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			fields.Identifiers.ISBN10 = id.Identifier
		case "ISBN_13":
			fields.Identifiers.ISBN13 = id.Identifier
		}
	}

	return &resolve.PartialRecord{
		Source:    g.Name(),
		Fields:    fields,
		FetchedAt: time.Now().UTC(),
	}
}
