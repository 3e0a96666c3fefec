package simpledocs

import (
	"fmt"
	"strings"
)

// DefaultMaxTokens is the token budget of one embedding input.
const DefaultMaxTokens = 8100

// Tokenizer encodes text with the vocabulary of the embedding model.
// Encoding must be deterministic for the same text.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Chunker splits extracted pages into units that fit the embedding budget.
// Every unit's prepared text is prefixed with the page title.
type Chunker struct {
	Tokenizer Tokenizer
	MaxTokens int
}

// NewChunker returns a Chunker using DefaultMaxTokens.
func NewChunker(tok Tokenizer) *Chunker {
	return &Chunker{Tokenizer: tok, MaxTokens: DefaultMaxTokens}
}

// ChunkURL returns the unique URL of chunk index i of a page.
func ChunkURL(pageURL string, i int) string {
	return fmt.Sprintf("%s#chunk-%d", pageURL, i)
}

// UnitURLs returns the URLs of the units Chunk produces for a page split
// into total units.
func UnitURLs(pageURL string, total int) []string {
	if total <= 1 {
		return []string{pageURL}
	}
	urls := make([]string, total)
	for i := range urls {
		urls[i] = ChunkURL(pageURL, i)
	}
	return urls
}

// Prefix returns the title prefix placed before content in prepared text.
func Prefix(title string) string {
	return "Title: " + title + "\n\nContent: "
}

// Chunk splits a page into document units.
//
// A page whose prefixed content fits MaxTokens yields one unit keyed by the
// page URL. Otherwise the content is tokenized on its own and cut into
// consecutive windows of MaxTokens minus the prefix size; each window is
// decoded and prefixed again. Empty content yields a single title-only unit,
// even when the title alone exceeds MaxTokens.
func (c *Chunker) Chunk(pageURL string, page *ExtractedPage) []*DocumentUnit {
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	title := page.Title
	content := strings.TrimSpace(page.Content)
	prefix := Prefix(title)

	full := prefix + content
	if content == "" || len(c.Tokenizer.Encode(full)) <= maxTokens {
		return []*DocumentUnit{{
			URL:          pageURL,
			OriginalURL:  pageURL,
			Title:        title,
			Content:      content,
			PreparedText: full,
			ChunkIndex:   0,
			TotalChunks:  1,
		}}
	}

	tokens := c.Tokenizer.Encode(content)
	available := maxTokens - len(c.Tokenizer.Encode(prefix))
	if available < 1 {
		available = 1
	}

	total := (len(tokens) + available - 1) / available
	units := make([]*DocumentUnit, 0, total)
	for i := 0; i < total; i++ {
		start := i * available
		end := min(start+available, len(tokens))
		text := c.Tokenizer.Decode(tokens[start:end])
		units = append(units, &DocumentUnit{
			URL:          ChunkURL(pageURL, i),
			OriginalURL:  pageURL,
			Title:        title,
			Content:      text,
			PreparedText: prefix + text,
			ChunkIndex:   i,
			TotalChunks:  total,
		})
	}
	return units
}
