package simpledocs

import (
	"net/url"
	"strings"
)

// DefaultDocPatterns are the path fragments that mark a URL as documentation.
var DefaultDocPatterns = []string{
	"/reference/",
	"/docs/",
	"/api/",
	"/guide/",
	"/documentation/",
	"/tutorial/",
}

// PatternMatcher classifies URLs as documentation by case-insensitive
// substring match against a fixed list of patterns.
// The zero value uses DefaultDocPatterns.
type PatternMatcher struct {
	patterns []string
}

// NewPatternMatcher returns a matcher for the given patterns.
// Empty patterns are ignored; if none remain DefaultDocPatterns is used.
func NewPatternMatcher(patterns ...string) *PatternMatcher {
	m := &PatternMatcher{}
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Patterns returns the lower-cased patterns in match order.
func (m *PatternMatcher) Patterns() []string {
	if m == nil || len(m.patterns) == 0 {
		return DefaultDocPatterns
	}
	return m.patterns
}

// IsDocumentation reports whether the lower-cased URL contains any pattern.
func (m *PatternMatcher) IsDocumentation(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range m.Patterns() {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Match implements the URL filter used by sitemap discovery.
func (m *PatternMatcher) Match(rawURL string) bool {
	return m.IsDocumentation(rawURL)
}

// ParentGroup returns the URL truncated to end at, and include, the
// earliest occurrence of any pattern. The bool is false if nothing matches.
func (m *PatternMatcher) ParentGroup(rawURL string) (string, bool) {
	lower := strings.ToLower(rawURL)
	end := -1
	first := len(lower)
	for _, p := range m.Patterns() {
		if i := strings.Index(lower, p); i != -1 && i < first {
			first = i
			end = i + len(p)
		}
	}
	if end == -1 {
		return "", false
	}
	// Lower-casing may change the byte length of non-ASCII input.
	if len(lower) != len(rawURL) {
		return lower[:end], true
	}
	return rawURL[:end], true
}

// Documentation types assigned to stored documents.
const (
	DocTypeAPI      = "api"
	DocTypeGuide    = "guide"
	DocTypeTutorial = "tutorial"
	DocTypeOther    = "other"
)

// genericSections are path segments too broad to describe a section.
var genericSections = map[string]bool{
	"api":       true,
	"docs":      true,
	"guide":     true,
	"reference": true,
}

// DocMetadata is derived from a page URL when a document is stored.
type DocMetadata struct {
	Domain     string `json:"domain"`
	DocType    string `json:"docType"`
	DocSection string `json:"docSection,omitempty"`
}

// ExtractMetadata derives the domain, doc type and section of a page URL.
// The doc type is classified from the lower-cased path; the section is the
// last path segment that is not one of api, docs, guide or reference.
func ExtractMetadata(rawURL string) DocMetadata {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DocMetadata{DocType: DocTypeOther}
	}
	path := strings.ToLower(u.Path)

	md := DocMetadata{Domain: u.Host, DocType: DocTypeOther}
	switch {
	case strings.Contains(path, "/api/") || strings.Contains(path, "/reference/"):
		md.DocType = DocTypeAPI
	case strings.Contains(path, "/guide/") || strings.Contains(path, "/docs/"):
		md.DocType = DocTypeGuide
	case strings.Contains(path, "/tutorial/"):
		md.DocType = DocTypeTutorial
	}

	for _, seg := range strings.Split(path, "/") {
		if seg != "" && !genericSections[seg] {
			md.DocSection = seg
		}
	}
	return md
}
