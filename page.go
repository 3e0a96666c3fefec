package simpledocs

import "context"

// ExtractedPage is the title and text content of one HTML page.
type ExtractedPage struct {
	Title   string
	Content string
}

// Fetcher retrieves HTML from URLs.
type Fetcher interface {
	// Fetch returns the HTML body of the URL.
	// Returns EFETCH on network errors and non-2xx responses.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (html string, err error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// ExtractResult holds the main content of an HTML page as clean HTML.
type ExtractResult struct {
	// Title is the page title extracted from metadata.
	Title string

	// ContentHTML is the main content with boilerplate removed.
	ContentHTML string
}

// Extractor is a readability-style main content extractor.
type Extractor interface {
	Extract(html string) (*ExtractResult, error)
}

// Converter converts extracted HTML into text that keeps links and tables.
type Converter interface {
	Convert(html string) (string, error)
}

// HTMLParser answers structural queries over raw HTML.
type HTMLParser interface {
	// Title returns the text of the document's title element.
	Title(html string) (string, error)

	// ContainerText returns the visible text of common documentation
	// containers joined with spaces, or an empty string if none exist.
	ContainerText(html string) (string, error)

	// Links returns the absolute, fragment-free targets of all anchors.
	Links(html string, baseURL string) ([]string, error)
}

// PageExtractor turns raw HTML into an ExtractedPage.
// Returns EEXTRACT if no content could be extracted.
type PageExtractor interface {
	ExtractPage(html string) (*ExtractedPage, error)
}
