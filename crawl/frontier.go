package crawl

import (
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/bloom"
	"golang.org/x/net/publicsuffix"
)

// Bloom filter sizing for one crawl run.
const (
	frontierExpectedURLs      = 10000
	frontierFalsePositiveRate = 0.01
)

// NormalizeURL strips the fragment so URLs that differ only by fragment
// share one identity.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// CrawlState holds the URL sets and HTML cache of one crawl run.
// It is safe for concurrent use by multiple goroutines.
//
// Every crawled URL is also discovered. A URL enters the discovered set
// at most once.
type CrawlState struct {
	mu         sync.Mutex
	seen       *bloom.Filter
	discovered map[string]struct{}
	order      []string
	crawled    map[string]struct{}
	html       map[string]string
}

// NewCrawlState returns an empty CrawlState.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		seen:       bloom.NewFilter(frontierExpectedURLs, frontierFalsePositiveRate),
		discovered: make(map[string]struct{}),
		crawled:    make(map[string]struct{}),
		html:       make(map[string]string),
	}
}

// Discover adds the URL to the discovered set.
// Returns false if the URL, after normalization, was already discovered.
func (s *CrawlState) Discover(rawURL string) bool {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A bloom miss proves the URL is new; a hit needs the exact set.
	if s.seen.TestAndAdd(u) {
		if _, ok := s.discovered[u]; ok {
			return false
		}
	}
	s.discovered[u] = struct{}{}
	s.order = append(s.order, u)
	return true
}

// MarkCrawled records a fetched page and caches its HTML.
// Returns false if the URL was already crawled; the first HTML is kept.
func (s *CrawlState) MarkCrawled(rawURL, html string) bool {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.crawled[u]; ok {
		return false
	}
	if _, ok := s.discovered[u]; !ok {
		s.seen.Add(u)
		s.discovered[u] = struct{}{}
		s.order = append(s.order, u)
	}
	s.crawled[u] = struct{}{}
	s.html[u] = html
	return true
}

// IsCrawled reports whether the URL has been fetched.
func (s *CrawlState) IsCrawled(rawURL string) bool {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.crawled[u]
	return ok
}

// HTML returns the cached HTML of a crawled URL.
func (s *CrawlState) HTML(rawURL string) (string, bool) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	html, ok := s.html[u]
	return html, ok
}

// Discovered returns the discovered URLs in discovery order.
func (s *CrawlState) Discovered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.order...)
}

// Counts returns the sizes of the discovered and crawled sets.
func (s *CrawlState) Counts() (discovered, crawled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.discovered), len(s.crawled)
}

// Scope decides which links of a crawled page join the frontier.
type Scope struct {
	host    string
	domain  string
	matcher *simpledocs.PatternMatcher
}

// NewScope returns the scope of a crawl seeded at seedURL.
func NewScope(seedURL string, matcher *simpledocs.PatternMatcher) (*Scope, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "invalid seed URL: %v", err)
	}
	host := strings.ToLower(u.Hostname())
	return &Scope{host: host, domain: registeredDomain(host), matcher: matcher}, nil
}

// Allows reports whether the link is an http(s) URL on the seed's
// registered domain that the pattern matcher classifies as documentation.
func (s *Scope) Allows(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host != s.host && (s.domain == "" || registeredDomain(host) != s.domain) {
		return false
	}
	return s.matcher.IsDocumentation(link)
}

// registeredDomain returns the eTLD+1 of host, or an empty string for IP
// addresses and hosts without a public suffix.
func registeredDomain(host string) string {
	if net.ParseIP(host) != nil {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return d
}
