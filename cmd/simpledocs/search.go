package main

import (
	"fmt"
	"strings"

	"github.com/fwojciec/simpledocs"
)

// snippetLen is the number of content characters shown per search result.
const snippetLen = 200

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	if c.Limit < 1 || c.Limit > simpledocs.MaxSearchLimit {
		err := simpledocs.Errorf(simpledocs.EINVALID, "limit must be between 1 and %d", simpledocs.MaxSearchLimit)
		fmt.Fprintf(deps.Stderr, "error: %s\n", simpledocs.ErrorMessage(err))
		return err
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		err := simpledocs.Errorf(simpledocs.EINVALID, "min-score must be between 0 and 1")
		fmt.Fprintf(deps.Stderr, "error: %s\n", simpledocs.ErrorMessage(err))
		return err
	}

	results, err := deps.Search.Search(deps.Ctx, c.Query, simpledocs.SearchOptions{
		Domain:   c.Domain,
		Limit:    c.Limit,
		MinScore: c.MinScore,
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", simpledocs.ErrorMessage(err))
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(deps.Stdout, "No matching documentation found.")
		return nil
	}

	for i, r := range results {
		title := r.Document.Title
		if title == "" {
			title = r.Document.URL
		}
		fmt.Fprintf(deps.Stdout, "%d. %s [%.2f]\n   %s\n   %s\n\n", i+1, title, r.Score, r.Document.URL, snippet(r.Document.Content, snippetLen))
	}
	return nil
}

// snippet collapses whitespace and cuts s to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// Run executes the sources command.
func (c *SourcesCmd) Run(deps *Dependencies) error {
	stats, err := deps.Search.Sources(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", simpledocs.ErrorMessage(err))
		return err
	}

	if len(stats) == 0 {
		fmt.Fprintln(deps.Stdout, "No sources indexed. Use 'simpledocs crawl' to add one.")
		return nil
	}

	for _, s := range stats {
		updated := "-"
		if !s.LastUpdated.IsZero() {
			updated = s.LastUpdated.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(deps.Stdout, "%s  %d documents  [%s]  updated %s\n", s.Domain, s.Count, strings.Join(s.DocTypes, ", "), updated)
	}
	return nil
}
