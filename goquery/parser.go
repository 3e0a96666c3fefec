// Package goquery reads titles, container text and links from HTML documents.
package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/simpledocs"
	"golang.org/x/net/html"
)

// ContainerSelector matches the elements that commonly hold documentation
// content when readability-style extraction finds nothing.
const ContainerSelector = "main, article, .content, .documentation, .api-content, " +
	".endpoint-description, .method-description, .api-docs"

var _ simpledocs.HTMLParser = (*Parser)(nil)

// Parser implements simpledocs.HTMLParser.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Title returns the trimmed text of the first title element, or an empty
// string if the document has none.
func (p *Parser) Title(htmlContent string) (string, error) {
	doc, err := parse(htmlContent)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

// ContainerText returns the visible text of the documentation containers.
// When the site generator is recognized, its content element is tried
// first. Every text node is trimmed and the pieces are joined by spaces.
func (p *Parser) ContainerText(htmlContent string) (string, error) {
	doc, err := parse(htmlContent)
	if err != nil {
		return "", err
	}

	if sel, ok := frameworkContent[Detect(doc)]; ok {
		if text := selectionText(doc.Find(sel)); text != "" {
			return text, nil
		}
	}
	return selectionText(doc.Find(ContainerSelector)), nil
}

// Links returns the absolute http(s) targets of every anchor in document
// order. Fragments are stripped and duplicates removed. Links back to the
// page itself are skipped.
func (p *Parser) Links(htmlContent, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "invalid base URL: %v", err)
	}
	doc, err := parse(htmlContent)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := sel.AttrOr("href", "")
		if href == "" || isNonHTTPLink(href) {
			return
		}
		resolved := resolveURL(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})
	return links, nil
}

func parse(htmlContent string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "failed to parse HTML: %v", err)
	}
	return doc, nil
}

// selectionText joins the trimmed text nodes of every selected element.
// Script and style contents are not visible and are skipped.
func selectionText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// resolveURL resolves a relative URL against a base URL.
// Returns empty string if the href cannot be parsed, is not http(s), or if
// the resolved URL is self-referential (same as base URL after stripping
// fragment). Fragments are stripped from the resolved URL for deduplication.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""

	result := resolved.String()
	baseNoFragment := *base
	baseNoFragment.Fragment = ""
	baseNoFragment.RawFragment = ""
	if result == baseNoFragment.String() {
		return ""
	}
	return result
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}
