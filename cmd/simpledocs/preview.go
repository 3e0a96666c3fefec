package main

import (
	"fmt"

	"github.com/fwojciec/simpledocs"
)

// Run executes the preview command.
func (c *PreviewCmd) Run(deps *Dependencies) error {
	patterns := c.Patterns
	if len(patterns) == 0 {
		patterns = deps.Config.Crawler.DocPatterns
	}
	matcher := simpledocs.NewPatternMatcher(patterns...)

	urls, err := deps.Sitemaps.DiscoverURLs(deps.Ctx, c.URL, matcher)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", simpledocs.ErrorMessage(err))
		return err
	}

	if len(urls) == 0 {
		fmt.Fprintln(deps.Stderr, "No documentation URLs found in sitemap. Try 'simpledocs crawl --recursive' instead.")
		return nil
	}

	for _, u := range urls {
		fmt.Fprintln(deps.Stdout, u)
	}
	fmt.Fprintf(deps.Stderr, "%d documentation URLs\n", len(urls))
	return nil
}
