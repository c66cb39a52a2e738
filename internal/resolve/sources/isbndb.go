package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lepinkainen/consearch/internal/config"
	"github.com/lepinkainen/consearch/internal/identifier"
	"github.com/lepinkainen/consearch/internal/ratelimit"
	"github.com/lepinkainen/consearch/internal/resolve"
)

const isbndbBaseURL = "https://api2.isbndb.com"

// ISBNdb resolves books by ISBN. Requires an API key; the registry skips
// it entirely when none is configured. Resolve-only: the free tier's
// search endpoint is too rate-limited to be useful in a fan-out.
type ISBNdb struct {
	httpClient    *http.Client
	limiter       *ratelimit.Limiter
	baseURL       string
	apiKey        string
	priority      int
	authoritative bool
}

var _ resolve.Resolver = (*ISBNdb)(nil)

// NewISBNdb creates an ISBNdb resolver from settings.
func NewISBNdb(cfg config.Source) *ISBNdb {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = isbndbBaseURL
	}
	return &ISBNdb{
		httpClient:    newHTTPClient(cfg.Timeout),
		limiter:       ratelimit.New("ISBNdb", cfg.RequestsPerSecond),
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		priority:      cfg.Priority,
		authoritative: cfg.Authoritative,
	}
}

func (i *ISBNdb) Name() resolve.SourceName { return resolve.SourceISBNdb }
func (i *ISBNdb) Priority() int            { return i.priority }
func (i *ISBNdb) SupportsSearch() bool     { return false }

func (i *ISBNdb) Accepts(t identifier.Type) bool {
	return t == identifier.TypeISBN10 || t == identifier.TypeISBN13
}

func (i *ISBNdb) Authoritative(t identifier.Type) bool {
	return i.authoritative && i.Accepts(t)
}

// isbndbBook matches the /book/{isbn} response shape.
type isbndbBook struct {
	Book struct {
		Title         string   `json:"title"`
		ISBN          string   `json:"isbn"`
		ISBN13        string   `json:"isbn13"`
		Publisher     string   `json:"publisher"`
		Language      string   `json:"language"`
		DatePublished string   `json:"date_published"`
		Pages         int      `json:"pages"`
		Overview      string   `json:"overview"`
		Synopsis      string   `json:"synopsis"`
		ImageOriginal string   `json:"image_original"`
		Authors       []string `json:"authors"`
		Subjects      []string `json:"subjects"`
	} `json:"book"`
}

// Resolve fetches one book by ISBN.
func (i *ISBNdb) Resolve(ctx context.Context, id identifier.Identifier) resolve.PartialResult {
	if err := i.limiter.Wait(ctx); err != nil {
		return requestFailure(err)
	}

	reqURL := fmt.Sprintf("%s/book/%s", i.baseURL, id.Normalized)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return resolve.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Authorization", i.apiKey)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return requestFailure(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return resolve.Permanent(fmt.Errorf("ISBNdb API key invalid or expired"))
	}
	if resp.StatusCode != http.StatusOK {
		return statusFailure(i.Name(), resp.StatusCode)
	}

	var result isbndbBook
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return resolve.Transient(fmt.Errorf("decoding response: %w", err))
	}

	book := result.Book
	if book.Title == "" && book.ISBN == "" && book.ISBN13 == "" {
		return resolve.NotFound()
	}

	fields := resolve.Fields{
		Title:       str(book.Title),
		Publisher:   str(book.Publisher),
		Language:    str(book.Language),
		PublishDate: str(book.DatePublished),
		Pages:       num(book.Pages),
		CoverURL:    str(book.ImageOriginal),
		Authors:     book.Authors,
	}
	if year := yearFromDate(book.DatePublished); year > 0 {
		fields.Year = num(year)
	}
	// Synopsis beats the shorter overview blurb.
	if book.Synopsis != "" {
		fields.Description = str(book.Synopsis)
	} else {
		fields.Description = str(book.Overview)
	}
	for _, s := range book.Subjects {
		if s != "" && s != "Subjects" {
			fields.Subjects = append(fields.Subjects, s)
		}
	}
	fields.Identifiers.ISBN10 = book.ISBN
	fields.Identifiers.ISBN13 = book.ISBN13

	return resolve.Success(&resolve.PartialRecord{
		Source:    i.Name(),
		Fields:    fields,
		FetchedAt: time.Now().UTC(),
	})
}

// Search is never called; SupportsSearch reports false.
func (i *ISBNdb) Search(_ context.Context, _ string, _ int) ([]resolve.PartialRecord, error) {
	return nil, fmt.Errorf("ISBNdb does not support free-text search")
}
