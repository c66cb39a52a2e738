package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lepinkainen/consearch/internal/config"
	"github.com/lepinkainen/consearch/internal/identifier"
	"github.com/lepinkainen/consearch/internal/ratelimit"
	"github.com/lepinkainen/consearch/internal/resolve"
)

const openLibraryBaseURL = "https://openlibrary.org"

// OpenLibrary resolves books by ISBN and supports free-text search.
// No API key needed.
type OpenLibrary struct {
	httpClient    *http.Client
	limiter       *ratelimit.Limiter
	baseURL       string
	priority      int
	authoritative bool
}

var _ resolve.Resolver = (*OpenLibrary)(nil)

// NewOpenLibrary creates an OpenLibrary resolver from settings.
func NewOpenLibrary(cfg config.Source) *OpenLibrary {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openLibraryBaseURL
	}
	return &OpenLibrary{
		httpClient:    newHTTPClient(cfg.Timeout),
		limiter:       ratelimit.New("OpenLibrary", cfg.RequestsPerSecond),
		baseURL:       baseURL,
		priority:      cfg.Priority,
		authoritative: cfg.Authoritative,
	}
}

func (o *OpenLibrary) Name() resolve.SourceName { return resolve.SourceOpenLibrary }
func (o *OpenLibrary) Priority() int            { return o.priority }
func (o *OpenLibrary) SupportsSearch() bool     { return true }

func (o *OpenLibrary) Accepts(t identifier.Type) bool {
	return t == identifier.TypeISBN10 || t == identifier.TypeISBN13
}

func (o *OpenLibrary) Authoritative(t identifier.Type) bool {
	return o.authoritative && o.Accepts(t)
}

// openLibraryBook matches the jscmd=data response shape.
type openLibraryBook struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description any    `json:"description"`
	Publishers  []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Cover struct {
		Large string `json:"large"`
	} `json:"cover"`
	Subjects []struct {
		Name string `json:"name"`
	} `json:"subjects"`
	NumberOfPages int    `json:"number_of_pages"`
	PublishDate   string `json:"publish_date"`
}

// Resolve fetches one book by ISBN.
func (o *OpenLibrary) Resolve(ctx context.Context, id identifier.Identifier) resolve.PartialResult {
	if err := o.limiter.Wait(ctx); err != nil {
		return requestFailure(err)
	}

	reqURL := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", o.baseURL, id.Normalized)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return resolve.Permanent(fmt.Errorf("creating request: %w", err))
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return requestFailure(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusFailure(o.Name(), resp.StatusCode)
	}

	var result map[string]openLibraryBook
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return resolve.Transient(fmt.Errorf("decoding response: %w", err))
	}

	book, ok := result["ISBN:"+id.Normalized]
	if !ok || len(result) == 0 {
		return resolve.NotFound()
	}

	return resolve.Success(o.toRecord(book, id))
}

func (o *OpenLibrary) toRecord(book openLibraryBook, id identifier.Identifier) *resolve.PartialRecord {
	fields := resolve.Fields{
		Title:       str(book.Title),
		Subtitle:    str(book.Subtitle),
		Description: str(extractDescription(book.Description)),
		Pages:       num(book.NumberOfPages),
		PublishDate: str(book.PublishDate),
		CoverURL:    str(book.Cover.Large),
	}
	if year := yearFromDate(book.PublishDate); year > 0 {
		fields.Year = num(year)
	}
	if len(book.Publishers) > 0 {
		fields.Publisher = str(book.Publishers[0].Name)
	}
	for _, a := range book.Authors {
		if a.Name != "" {
			fields.Authors = append(fields.Authors, a.Name)
		}
	}
	for _, s := range book.Subjects {
		if s.Name != "" {
			fields.Subjects = append(fields.Subjects, s.Name)
		}
	}

	switch id.Type {
	case identifier.TypeISBN10:
		fields.Identifiers.ISBN10 = id.Normalized
	case identifier.TypeISBN13:
		fields.Identifiers.ISBN13 = id.Normalized
	}

	return &resolve.PartialRecord{
		Source:    o.Name(),
		Fields:    fields,
		FetchedAt: time.Now().UTC(),
	}
}

// openLibrarySearchDoc matches the search.json document shape.
type openLibrarySearchDoc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	ISBN             []string `json:"isbn"`
	Publisher        []string `json:"publisher"`
	Language         []string `json:"language"`
	Subject          []string `json:"subject"`
	CoverID          int      `json:"cover_i"`
}

// Search runs a free-text query, ranked by OpenLibrary's own relevance.
func (o *OpenLibrary) Search(ctx context.Context, query string, limit int) ([]resolve.PartialRecord, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/search.json?q=%s&limit=%d", o.baseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OpenLibrary search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenLibrary search returned status %d", resp.StatusCode)
	}

	var result struct {
		Docs []openLibrarySearchDoc `json:"docs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	records := make([]resolve.PartialRecord, 0, len(result.Docs))
	for _, doc := range result.Docs {
		fields := resolve.Fields{
			Title:    str(doc.Title),
			Authors:  doc.AuthorName,
			Year:     num(doc.FirstPublishYear),
			Subjects: doc.Subject,
		}
		if len(doc.Publisher) > 0 {
			fields.Publisher = str(doc.Publisher[0])
		}
		if len(doc.Language) > 0 {
			fields.Language = str(doc.Language[0])
		}
		if doc.CoverID > 0 {
			fields.CoverURL = str(fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverID))
		}
		for _, isbn := range doc.ISBN {
			switch {
			case len(isbn) == 13 && fields.Identifiers.ISBN13 == "":
				fields.Identifiers.ISBN13 = isbn
			case len(isbn) == 10 && fields.Identifiers.ISBN10 == "":
				fields.Identifiers.ISBN10 = isbn
			}
		}
		records = append(records, resolve.PartialRecord{
			Source:    o.Name(),
			Fields:    fields,
			FetchedAt: time.Now().UTC(),
		})
	}
	return records, nil
}

// extractDescription handles the two forms OpenLibrary uses: a plain
// string or an object with a "value" key.
func extractDescription(desc any) string {
	switch v := desc.(type) {
	case string:
		return v
	case map[string]any:
		if val, ok := v["value"].(string); ok {
			return val
		}
	}
	return ""
}

// yearFromDate pulls a 4-digit year out of a loosely formatted publish
// date like "Sep 01, 2008" or "2008".
func yearFromDate(date string) int {
	for i := 0; i+4 <= len(date); i++ {
		if date[i] == '1' || date[i] == '2' {
			if year, err := strconv.Atoi(date[i : i+4]); err == nil && year >= 1000 && year <= 2999 {
				return year
			}
		}
	}
	return 0
}
