package crawl

import (
	"strings"

	"github.com/fwojciec/simpledocs"
)

var _ simpledocs.PageExtractor = (*ContentExtractor)(nil)

// ContentExtractor combines a readability-style primary extractor with a
// container-text fallback. The title always comes from the title element.
type ContentExtractor struct {
	Primary   simpledocs.Extractor
	Converter simpledocs.Converter
	Parser    simpledocs.HTMLParser
}

// ExtractPage returns the page title and text content.
// The fallback runs only when the primary strategy yields no content.
// Returns EEXTRACT if both strategies yield empty content.
func (e *ContentExtractor) ExtractPage(html string) (*simpledocs.ExtractedPage, error) {
	title, err := e.Parser.Title(html)
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "read title: %v", err)
	}

	content := e.primary(html)
	if content == "" {
		content, err = e.Parser.ContainerText(html)
		if err != nil {
			return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "container fallback: %v", err)
		}
		content = strings.TrimSpace(content)
	}
	if content == "" {
		return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "no content extracted")
	}

	return &simpledocs.ExtractedPage{Title: title, Content: content}, nil
}

// primary runs the main extractor and converts its HTML to text.
// Any failure counts as empty content.
func (e *ContentExtractor) primary(html string) string {
	if e.Primary == nil {
		return ""
	}
	res, err := e.Primary.Extract(html)
	if err != nil || strings.TrimSpace(res.ContentHTML) == "" {
		return ""
	}
	if e.Converter == nil {
		return strings.TrimSpace(res.ContentHTML)
	}
	text, err := e.Converter.Convert(res.ContentHTML)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
