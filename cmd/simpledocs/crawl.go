package main

import (
	"fmt"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/crawl"
)

// Run executes the crawl command.
func (c *CrawlCmd) Run(deps *Dependencies) error {
	req := simpledocs.CrawlRequest{
		URL:         c.URL,
		Recursive:   c.Recursive,
		MaxDepth:    c.MaxDepth,
		DocPatterns: c.Patterns,
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", simpledocs.ErrorMessage(err))
		return err
	}

	if deps.Progress != nil {
		var last string
		unsubscribe := deps.Progress.Subscribe(func(s simpledocs.ProgressSnapshot) {
			if s.Status.Terminal() {
				return
			}
			// Several checkpoints can render to the same line.
			if line := crawl.FormatProgress(s); line != last {
				fmt.Fprintln(deps.Stderr, line)
				last = line
			}
		})
		defer unsubscribe()
	}

	snap, err := deps.Crawler.Crawl(deps.Ctx, req)
	if snap.Status != "" {
		fmt.Fprintln(deps.Stdout, crawl.FormatProgress(snap))
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", simpledocs.ErrorMessage(err))
		return err
	}
	return nil
}
