package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SearchCmd represents the search command
type SearchCmd struct {
	Query string `arg:"" help:"Free-text query (title, author, keywords)"`
	Kind  string `short:"k" help:"Kind of work to search for" enum:"book,paper" default:"book"`
	Limit int    `short:"n" help:"Maximum number of results" default:"10"`
	JSON  bool   `help:"Print the results as JSON"`
}

func (s *SearchCmd) Run() error {
	app := newApp()
	defer app.close()

	hits, err := app.svc.Search(context.Background(), kindFromFlag(s.Kind), s.Query, s.Limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if s.JSON {
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(hits) == 0 {
		fmt.Printf("No results for %q\n", s.Query)
		return nil
	}

	rows := make([][]string, 0, len(hits))
	for i, hit := range hits {
		title := ""
		if hit.Fields.Title != nil {
			title = *hit.Fields.Title
		}
		year := ""
		if hit.Fields.Year != nil {
			year = fmt.Sprintf("%d", *hit.Fields.Year)
		}
		id := ""
		if key := hit.Fields.DedupeKey(); !strings.HasPrefix(key, "title:") {
			id = key
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			title,
			strings.Join(hit.Fields.Authors, ", "),
			year,
			id,
			string(hit.Source),
		})
	}

	fmt.Println(renderTable([]string{"#", "Title", "Authors", "Year", "Identifier", "Source"}, rows))
	return nil
}
