// Package readability provides an alternate primary extractor built on
// Mozilla's Readability algorithm.
package readability

import (
	"strings"

	"github.com/fwojciec/simpledocs"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var _ simpledocs.Extractor = (*Extractor)(nil)

// chrome lists elements dropped before scoring. Readability already
// penalises most of them, but documentation sites often wrap the whole
// page in a single container and the penalty is not always enough.
var chrome = map[atom.Atom]bool{
	atom.Nav:     true,
	atom.Footer:  true,
	atom.Img:     true,
	atom.Picture: true,
	atom.Svg:     true,
}

// Extractor scores a page with go-readability and keeps the winning
// article subtree.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses rawHTML, removes navigation and media, and returns the
// article content.
func (e *Extractor) Extract(rawHTML string) (*simpledocs.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "empty HTML input")
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "parse html: %v", err)
	}
	prune(doc)

	article, err := readability.FromDocument(doc, nil)
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "readability: %v", err)
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "readability found no article content")
	}

	return &simpledocs.ExtractResult{
		Title:       strings.TrimSpace(article.Title),
		ContentHTML: article.Content,
	}, nil
}

func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && chrome[c.DataAtom] {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}
