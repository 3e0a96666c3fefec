package crawl

import (
	"context"
	"log/slog"

	"github.com/fwojciec/simpledocs"
)

// NeedsBrowser compares the content extracted from statically fetched HTML
// with the content of browser-rendered HTML. It returns true when the
// rendered content is more than 50% longer, or when either extraction fails.
func NeedsBrowser(staticHTML, renderedHTML string, extractor simpledocs.Extractor) bool {
	static, err := extractor.Extract(staticHTML)
	if err != nil {
		return true
	}
	rendered, err := extractor.Extract(renderedHTML)
	if err != nil {
		return true
	}

	staticLen := len(static.ContentHTML)
	renderedLen := len(rendered.ContentHTML)
	if staticLen == 0 && renderedLen > 0 {
		return true
	}
	return float64(renderedLen) > float64(staticLen)*1.5
}

// ChooseFetcher fetches seedURL with both fetchers and returns the one to
// crawl with. The static fetcher wins unless the site needs JavaScript
// rendering. A failed browser fetch falls back to the static fetcher.
func ChooseFetcher(
	ctx context.Context,
	seedURL string,
	static, browser simpledocs.Fetcher,
	extractor simpledocs.Extractor,
	logger *slog.Logger,
) (simpledocs.Fetcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rendered, err := browser.Fetch(ctx, seedURL)
	if err != nil {
		logger.Warn("browser probe failed", "url", seedURL, "err", err)
		return static, nil
	}
	staticHTML, err := static.Fetch(ctx, seedURL)
	if err != nil {
		logger.Info("static probe failed, using browser", "url", seedURL, "err", err)
		return browser, nil
	}

	if NeedsBrowser(staticHTML, rendered, extractor) {
		logger.Info("renderer selected", "url", seedURL, "renderer", "browser")
		return browser, nil
	}
	logger.Info("renderer selected", "url", seedURL, "renderer", "http")
	return static, nil
}
