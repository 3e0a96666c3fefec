// Package trafilatura provides the default primary extractor.
package trafilatura

import (
	"strings"

	"github.com/fwojciec/simpledocs"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var _ simpledocs.Extractor = (*Extractor)(nil)

// Extractor runs go-trafilatura with its readability fallback enabled.
// Tables and links are kept; images and comment sections are dropped.
type Extractor struct {
	opts trafilatura.Options
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		opts: trafilatura.Options{
			EnableFallback:  true,
			IncludeLinks:    true,
			ExcludeComments: true,
			Deduplicate:     true,
		},
	}
}

// Extract returns the main content of rawHTML as an HTML fragment.
// A page without main content yields an empty ContentHTML, not an
// error, so the caller can try its fallback chain. When the page has
// no usable <title> the first heading of the content is used.
func (e *Extractor) Extract(rawHTML string) (*simpledocs.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "empty HTML input")
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), e.opts)
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "trafilatura: %v", err)
	}

	out := &simpledocs.ExtractResult{Title: strings.TrimSpace(result.Metadata.Title)}
	if result.ContentNode == nil {
		return out, nil
	}

	var sb strings.Builder
	if err := html.Render(&sb, result.ContentNode); err != nil {
		return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "render content: %v", err)
	}
	out.ContentHTML = sb.String()
	if out.Title == "" {
		out.Title = firstHeading(result.ContentNode)
	}
	return out, nil
}

func firstHeading(n *html.Node) string {
	if n.Type == html.ElementNode && (n.DataAtom == atom.H1 || n.DataAtom == atom.H2) {
		return strings.Join(strings.Fields(text(n)), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if h := firstHeading(c); h != "" {
			return h
		}
	}
	return ""
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(text(c))
		sb.WriteByte(' ')
	}
	return sb.String()
}
