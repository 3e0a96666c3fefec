// Package rod provides a Fetcher that renders pages in headless Chrome, for
// documentation sites that build their content with JavaScript.
package rod

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/fwojciec/simpledocs"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// DefaultFetchTimeout bounds navigation and rendering of a single page.
const DefaultFetchTimeout = 30 * time.Second

// serializeJS returns the rendered document including open shadow roots.
// Web components often keep navigation links in shadow DOM, which
// outerHTML omits.
const serializeJS = `() => {
	const root = document.documentElement;
	const doctype = "<!DOCTYPE html>";
	if (typeof root.getHTML !== "function") {
		return doctype + root.outerHTML;
	}
	const roots = [];
	const walk = (node) => {
		for (const el of node.querySelectorAll("*")) {
			if (el.shadowRoot) {
				roots.push(el.shadowRoot);
				walk(el.shadowRoot);
			}
		}
	};
	walk(document);
	const outer = root.outerHTML;
	const open = outer.slice(0, outer.indexOf(">") + 1);
	return doctype + open + root.getHTML({ serializableShadowRoots: true, shadowRoots: roots }) + "</html>";
}`

var _ simpledocs.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML from URLs using Chrome browser automation.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	manager   *BrowserManager
	timeout   time.Duration
	userAgent string
	stealth   bool
	closed    atomic.Bool
}

// Option configures a Fetcher.
type Option func(*fetcherConfig)

type fetcherConfig struct {
	timeout   time.Duration
	userAgent string
	stealth   bool
	manager   []ManagerOption
}

// WithFetchTimeout sets the per-page timeout.
// Defaults to DefaultFetchTimeout if not specified.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *fetcherConfig) {
		c.timeout = d
	}
}

// WithUserAgent overrides the browser's User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *fetcherConfig) {
		c.userAgent = ua
	}
}

// WithStealth opens every page through go-rod/stealth, which hides the
// usual headless Chrome fingerprints from sites that block bots.
func WithStealth(enabled bool) Option {
	return func(c *fetcherConfig) {
		c.stealth = enabled
	}
}

// WithManagerOptions configures the BrowserManager behind the fetcher.
func WithManagerOptions(opts ...ManagerOption) Option {
	return func(c *fetcherConfig) {
		c.manager = append(c.manager, opts...)
	}
}

// NewFetcher creates a new Fetcher that launches a headless Chrome browser.
// Close must be called when the Fetcher is no longer needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		timeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	manager, err := NewBrowserManager(cfg.manager...)
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EUNAVAILABLE, "browser unavailable: %v", err)
	}
	return &Fetcher{
		manager:   manager,
		timeout:   cfg.timeout,
		userAgent: cfg.userAgent,
		stealth:   cfg.stealth,
	}, nil
}

// Fetch navigates to the URL and returns the rendered HTML.
// Context errors are returned unwrapped; other failures return EFETCH.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.closed.Load() {
		return "", simpledocs.Errorf(simpledocs.EINVALID, "fetcher closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	html, err := f.render(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", simpledocs.Errorf(simpledocs.EFETCH, "render %s: %v", url, err)
	}
	f.manager.IncrementPageCount()
	return html, nil
}

func (f *Fetcher) newPage() (*rod.Page, error) {
	b := f.manager.Browser()
	if f.stealth {
		return stealth.Page(b)
	}
	return b.Page(proto.TargetCreateTarget{})
}

func (f *Fetcher) render(ctx context.Context, url string) (string, error) {
	page, err := f.newPage()
	if err != nil {
		return "", err
	}
	defer page.Close()

	page = page.Context(ctx)

	if f.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.userAgent}); err != nil {
			return "", err
		}
	}
	if err := page.Navigate(url); err != nil {
		return "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", err
	}

	res, err := page.Eval(serializeJS)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Close releases browser resources. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.manager.Close()
}

// LauncherPID returns the process ID of the browser launcher.
func (f *Fetcher) LauncherPID() int {
	return f.manager.LauncherPID()
}

// Recycles returns how many times the browser has been restarted.
func (f *Fetcher) Recycles() int64 {
	return f.manager.Recycles()
}
