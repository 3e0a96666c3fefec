package simpledocs

import "context"

// URLMatcher decides whether a discovered URL is kept.
type URLMatcher interface {
	Match(url string) bool
}

// SitemapService discovers URLs from website sitemaps.
type SitemapService interface {
	// DiscoverURLs finds all URLs from a site's sitemap.
	// It first checks robots.txt for sitemap directives, then falls back
	// to /sitemap.xml. Sitemap indexes are resolved recursively.
	//
	// If matcher is nil, all URLs are returned.
	DiscoverURLs(ctx context.Context, baseURL string, matcher URLMatcher) ([]string, error)
}
