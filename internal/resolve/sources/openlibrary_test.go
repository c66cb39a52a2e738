package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/consearch/internal/resolve"
)

const openLibraryBookJSON = `{
	"ISBN:9780134093413": {
		"title": "Effective Java",
		"publishers": [{"name": "Addison-Wesley"}],
		"authors": [{"name": "Joshua Bloch"}],
		"number_of_pages": 416,
		"publish_date": "Dec 27, 2017",
		"subjects": [{"name": "Java (Computer program language)"}],
		"cover": {"large": "https://covers.openlibrary.org/b/id/123-L.jpg"},
		"description": {"value": "The definitive guide to Java."}
	}
}`

func TestOpenLibraryResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books", r.URL.Path)
		assert.Equal(t, "ISBN:9780134093413", r.URL.Query().Get("bibkeys"))
		assert.Equal(t, "data", r.URL.Query().Get("jscmd"))
		fmt.Fprint(w, openLibraryBookJSON)
	}))
	defer server.Close()

	ol := NewOpenLibrary(testSource(server.URL))
	res := ol.Resolve(context.Background(), mustClassify(t, "9780134093413"))

	require.Equal(t, resolve.StatusSuccess, res.Status)
	require.NotNil(t, res.Record)

	fields := res.Record.Fields
	assert.Equal(t, "Effective Java", *fields.Title)
	assert.Equal(t, "Addison-Wesley", *fields.Publisher)
	assert.Equal(t, []string{"Joshua Bloch"}, fields.Authors)
	assert.Equal(t, 416, *fields.Pages)
	assert.Equal(t, 2017, *fields.Year)
	assert.Equal(t, "The definitive guide to Java.", *fields.Description)
	assert.Equal(t, "9780134093413", fields.Identifiers.ISBN13)
	assert.Equal(t, resolve.SourceOpenLibrary, res.Record.Source)
}

func TestOpenLibraryResolveTagsISBN10(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ISBN:0134093410": {"title": "Effective Java"}}`)
	}))
	defer server.Close()

	ol := NewOpenLibrary(testSource(server.URL))
	res := ol.Resolve(context.Background(), mustClassify(t, "0134093410"))

	require.Equal(t, resolve.StatusSuccess, res.Status)
	assert.Equal(t, "0134093410", res.Record.Fields.Identifiers.ISBN10)
	assert.Empty(t, res.Record.Fields.Identifiers.ISBN13)
}

func TestOpenLibraryResolveNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	ol := NewOpenLibrary(testSource(server.URL))
	res := ol.Resolve(context.Background(), mustClassify(t, "9780134093413"))

	assert.Equal(t, resolve.StatusNotFound, res.Status)
	assert.Nil(t, res.Record)
}

func TestOpenLibraryResolveRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ol := NewOpenLibrary(testSource(server.URL))
	res := ol.Resolve(context.Background(), mustClassify(t, "9780134093413"))

	assert.Equal(t, resolve.StatusRateLimited, res.Status)
}

func TestOpenLibrarySearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "effective java", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"docs": [
			{"title": "Effective Java", "author_name": ["Joshua Bloch"], "first_publish_year": 2001,
			 "isbn": ["0134093410", "9780134093413"], "cover_i": 123},
			{"title": "Effective Java Exercises", "author_name": ["Someone Else"]}
		]}`)
	}))
	defer server.Close()

	ol := NewOpenLibrary(testSource(server.URL))
	hits, err := ol.Search(context.Background(), "effective java", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	first := hits[0].Fields
	assert.Equal(t, "Effective Java", *first.Title)
	assert.Equal(t, 2001, *first.Year)
	assert.Equal(t, "0134093410", first.Identifiers.ISBN10)
	assert.Equal(t, "9780134093413", first.Identifiers.ISBN13)
	assert.Contains(t, *first.CoverURL, "123-L.jpg")
}

func TestExtractDescriptionForms(t *testing.T) {
	assert.Equal(t, "plain", extractDescription("plain"))
	assert.Equal(t, "wrapped", extractDescription(map[string]any{"value": "wrapped"}))
	assert.Empty(t, extractDescription(nil))
	assert.Empty(t, extractDescription(42))
}
