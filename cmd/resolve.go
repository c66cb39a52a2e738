package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lepinkainen/consearch/internal/resolve"
)

// ResolveCmd represents the resolve command
type ResolveCmd struct {
	Input string `arg:"" help:"Identifier (ISBN, DOI, arXiv id, PMID, or a URL carrying one) or a free-text title"`
	Kind  string `short:"k" help:"Kind of work to resolve" enum:"book,paper" default:"book"`
	JSON  bool   `help:"Print the record as JSON"`
}

func (r *ResolveCmd) Run() error {
	app := newApp()
	defer app.close()

	outcome, err := app.svc.Resolve(context.Background(), kindFromFlag(r.Kind), r.Input)
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	switch outcome.Status {
	case resolve.OutcomeFound:
		return printRecord(outcome.Record, r.JSON)
	case resolve.OutcomeNotFound:
		fmt.Fprintf(os.Stderr, "No source has a record for %q\n", r.Input)
		os.Exit(2)
		return nil
	default:
		return fmt.Errorf("resolution failed: %w", outcome.Err)
	}
}

func printRecord(rec *resolve.Record, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	rows := [][]string{
		{"Kind", rec.Kind.String()},
		{"Title", rec.Title},
	}
	if rec.Subtitle != "" {
		rows = append(rows, []string{"Subtitle", rec.Subtitle})
	}
	if len(rec.Authors) > 0 {
		rows = append(rows, []string{"Authors", strings.Join(rec.Authors, ", ")})
	}
	if rec.Year > 0 {
		rows = append(rows, []string{"Year", fmt.Sprintf("%d", rec.Year)})
	}
	if rec.Publisher != "" {
		rows = append(rows, []string{"Publisher", rec.Publisher})
	}
	if rec.Journal != "" {
		rows = append(rows, []string{"Journal", rec.Journal})
	}
	if rec.Pages > 0 {
		rows = append(rows, []string{"Pages", fmt.Sprintf("%d", rec.Pages)})
	}
	if rec.Language != "" {
		rows = append(rows, []string{"Language", rec.Language})
	}
	if rec.CitationCount > 0 {
		rows = append(rows, []string{"Citations", fmt.Sprintf("%d", rec.CitationCount)})
	}
	for _, id := range identifierRows(rec.Identifiers) {
		rows = append(rows, id)
	}
	if len(rec.Subjects) > 0 {
		rows = append(rows, []string{"Subjects", strings.Join(rec.Subjects, ", ")})
	}

	fmt.Println(renderTable([]string{"Field", "Value"}, rows))
	return nil
}

func identifierRows(ids resolve.IdentifierSet) [][]string {
	var rows [][]string
	if ids.ISBN13 != "" {
		rows = append(rows, []string{"ISBN-13", ids.ISBN13})
	}
	if ids.ISBN10 != "" {
		rows = append(rows, []string{"ISBN-10", ids.ISBN10})
	}
	if ids.DOI != "" {
		rows = append(rows, []string{"DOI", ids.DOI})
	}
	if ids.ArxivID != "" {
		rows = append(rows, []string{"arXiv", ids.ArxivID})
	}
	if ids.PMID != "" {
		rows = append(rows, []string{"PMID", ids.PMID})
	}
	return rows
}
