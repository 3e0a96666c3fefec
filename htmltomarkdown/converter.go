// Package htmltomarkdown renders extracted HTML as Markdown text.
package htmltomarkdown

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/simpledocs"
)

var _ simpledocs.Converter = (*Converter)(nil)

// removed lists tags that carry no indexable text. Embedding a data
// URI or an icon path only wastes tokens.
var removed = []string{"img", "picture", "svg", "button", "form", "noscript", "iframe"}

var blankRun = regexp.MustCompile(`\n{3,}`)

// Converter turns article HTML into CommonMark with GFM tables.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a new Converter.
func NewConverter() *Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	for _, tag := range removed {
		conv.Register.TagType(tag, converter.TagTypeRemove, converter.PriorityStandard)
	}
	return &Converter{conv: conv}
}

// Convert renders html as Markdown. Runs of blank lines are collapsed
// so chunk token counts reflect content.
func (c *Converter) Convert(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", simpledocs.Errorf(simpledocs.EINVALID, "empty HTML input")
	}

	md, err := c.conv.ConvertString(html)
	if err != nil {
		return "", simpledocs.Errorf(simpledocs.EEXTRACT, "convert to markdown: %v", err)
	}
	return strings.TrimSpace(blankRun.ReplaceAllString(md, "\n\n")), nil
}
