package http

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/simpledocs"
)

// maxSitemaps bounds how many sitemap documents one discovery reads.
const maxSitemaps = 200

var _ simpledocs.SitemapService = (*SitemapService)(nil)

// SitemapService discovers URLs from website sitemaps via HTTP.
type SitemapService struct {
	client    *http.Client
	userAgent string
}

// NewSitemapService creates a new SitemapService with the given HTTP client.
// If client is nil, a client with DefaultFetchTimeout is used.
func NewSitemapService(client *http.Client) *SitemapService {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &SitemapService{client: client, userAgent: DefaultUserAgent}
}

// DiscoverURLs lists the page URLs of a site's sitemaps in document order.
// Returns an empty slice (not nil) if no sitemaps are found.
//
// Only pages under the path of baseURL are kept (https://example.com/docs
// keeps /docs/intro but not /documentation), and then only those accepted
// by matcher when it is non-nil.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string, matcher simpledocs.URLMatcher) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "invalid base URL %q", baseURL)
	}
	prefix := pathPrefix(base.Path)

	queue, err := s.sitemapLocations(ctx, base)
	if err != nil {
		return nil, err
	}

	urls := []string{}
	seenPages := make(map[string]bool)
	seenMaps := make(map[string]bool)
	for len(queue) > 0 && len(seenMaps) < maxSitemaps {
		loc := queue[0]
		queue = queue[1:]
		if seenMaps[loc] {
			continue
		}
		seenMaps[loc] = true

		pages, children, err := s.readSitemap(ctx, loc)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)

		for _, p := range pages {
			if seenPages[p] || !underPrefix(p, prefix) {
				continue
			}
			seenPages[p] = true
			if matcher != nil && !matcher.Match(p) {
				continue
			}
			urls = append(urls, p)
		}
	}
	return urls, nil
}

// pathPrefix returns the directory-terminated path that discovered pages
// must start with, or "" for the site root.
func pathPrefix(path string) string {
	if path == "" || path == "/" {
		return ""
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

func underPrefix(rawURL, prefix string) bool {
	if prefix == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasPrefix(u.Path, prefix) || u.Path+"/" == prefix
}

// sitemapLocations reads Sitemap directives from robots.txt and falls back
// to /sitemap.xml when there are none.
func (s *SitemapService) sitemapLocations(ctx context.Context, base *url.URL) ([]string, error) {
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}

	body, err := s.get(ctx, root.ResolveReference(&url.URL{Path: "/robots.txt"}).String())
	if err == nil {
		locs, scanErr := robotsSitemaps(body)
		body.Close()
		if scanErr == nil && len(locs) > 0 {
			return locs, nil
		}
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	fallback := root.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()
	ok, err := s.exists(ctx, fallback)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return []string{fallback}, nil
}

func robotsSitemaps(r io.Reader) ([]string, error) {
	var locs []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "sitemap") {
			continue
		}
		if loc := strings.TrimSpace(value); loc != "" {
			locs = append(locs, loc)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading robots.txt: %w", err)
	}
	return locs, nil
}

// readSitemap returns the page locations of a urlset, or the child sitemap
// locations of a sitemapindex.
func (s *SitemapService) readSitemap(ctx context.Context, loc string) (pages, children []string, err error) {
	body, err := s.get(ctx, loc)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()

	r, err := decompress(body)
	if err != nil {
		return nil, nil, simpledocs.Errorf(simpledocs.EFETCH, "decompress sitemap %s: %v", loc, err)
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, nil, simpledocs.Errorf(simpledocs.EFETCH, "parse sitemap %s: %v", loc, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, nil, simpledocs.Errorf(simpledocs.EFETCH, "empty sitemap %s", loc)
	}

	if root.Tag == "sitemapindex" {
		return nil, locs(root, "sitemap"), nil
	}
	return locs(root, "url"), nil, nil
}

// decompress unwraps gzip sitemaps (sitemap.xml.gz). Servers disagree on
// the Content-Type for those, so the magic number decides.
func decompress(body io.Reader) (io.Reader, error) {
	br := bufio.NewReader(body)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return br, nil
	}
	return gzip.NewReader(br)
}

// locs returns the trimmed <loc> text of every child element named tag.
func locs(root *etree.Element, tag string) []string {
	var out []string
	for _, el := range root.SelectElements(tag) {
		loc := el.SelectElement("loc")
		if loc == nil {
			continue
		}
		if v := strings.TrimSpace(loc.Text()); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *SitemapService) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "invalid sitemap URL %q", target)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, simpledocs.Errorf(simpledocs.EFETCH, "GET %s: %v", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, simpledocs.Errorf(simpledocs.EFETCH, "HTTP %d for %s", resp.StatusCode, target)
	}
	return resp.Body, nil
}

func (s *SitemapService) exists(ctx context.Context, target string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}
