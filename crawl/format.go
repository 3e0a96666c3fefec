package crawl

import (
	"fmt"
	"strings"

	"github.com/fwojciec/simpledocs"
)

// TruncateURL shortens a URL for a status line. The scheme is dropped
// and the tail is kept, since the last path segments tell pages apart.
// Lengths are counted in runes.
func TruncateURL(url string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if _, rest, ok := strings.Cut(url, "://"); ok {
		url = rest
	}
	r := []rune(url)
	if len(r) <= maxLen {
		return url
	}
	if maxLen < 4 {
		return string(r[:maxLen])
	}
	return "..." + string(r[len(r)-maxLen+3:])
}

// FormatProgress renders a snapshot as a single status line.
func FormatProgress(s simpledocs.ProgressSnapshot) string {
	return strings.TrimSpace(formatProgress(s))
}

func formatProgress(s simpledocs.ProgressSnapshot) string {
	switch s.Status {
	case simpledocs.StatusCrawling:
		return fmt.Sprintf("crawling  %d/%d pages  %s", s.URLsCrawled, s.URLsDiscovered, TruncateURL(s.CurrentURL, 60))
	case simpledocs.StatusScraping:
		return fmt.Sprintf("scraping  %d pages  %d chunks", s.URLsCrawled, s.ChunksTotal)
	case simpledocs.StatusEmbedding:
		return fmt.Sprintf("embedding %d/%d chunks  %s", s.ChunksProcessed, s.ChunksTotal, TruncateURL(s.CurrentURL, 60))
	case simpledocs.StatusComplete, simpledocs.StatusCancelled, simpledocs.StatusError:
		return fmt.Sprintf("%s  %d/%d pages processed  %d chunks  (%d new, %d updated, %d unchanged)",
			s.Status, s.URLsFullyProcessed, s.URLsCrawled, s.ChunksProcessed, s.URLsNew, s.URLsUpdated, s.URLsUnchanged)
	default:
		return string(s.Status)
	}
}
