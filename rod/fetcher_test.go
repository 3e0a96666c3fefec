//go:build integration

package rod_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFetcher(t *testing.T, opts ...rod.Option) *rod.Fetcher {
	t.Helper()
	f, err := rod.NewFetcher(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns the document after scripts have run", func(t *testing.T) {
		t.Parallel()

		srv := serveHTML(t, `<!DOCTYPE html>
<html lang="en">
<head><title>Guide</title></head>
<body>
<main id="docs">Loading...</main>
<script>document.getElementById('docs').textContent = 'Configuring the client';</script>
</body>
</html>`)

		html, err := newFetcher(t).Fetch(context.Background(), srv.URL)

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html><html"), "document should start with doctype and html tag")
		assert.Contains(t, html, `lang="en"`)
		assert.Contains(t, html, "Configuring the client")
		assert.NotContains(t, html, "Loading...")
		assert.True(t, strings.HasSuffix(html, "</html>"))
	})

	t.Run("includes links rendered inside open shadow roots", func(t *testing.T) {
		t.Parallel()

		srv := serveHTML(t, `<!DOCTYPE html>
<html>
<head><title>Reference</title></head>
<body>
<docs-nav></docs-nav>
<script>
customElements.define('docs-nav', class extends HTMLElement {
  constructor() {
    super();
    const root = this.attachShadow({mode: 'open'});
    const a = document.createElement('a');
    a.href = '/docs/shadow-page';
    a.className = 'from-shadow';
    root.appendChild(a);
  }
});
</script>
</body>
</html>`)

		html, err := newFetcher(t).Fetch(context.Background(), srv.URL)

		require.NoError(t, err)
		assert.Contains(t, html, `class="from-shadow"`)
	})

	t.Run("sends the configured user agent", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body><p id=ua>" + r.UserAgent() + "</p></body></html>"))
		}))
		defer srv.Close()

		html, err := newFetcher(t, rod.WithUserAgent("simpledocs-test/1.0")).Fetch(context.Background(), srv.URL)

		require.NoError(t, err)
		assert.Contains(t, html, "simpledocs-test/1.0")
	})

	t.Run("hides the webdriver flag in stealth mode", func(t *testing.T) {
		t.Parallel()

		srv := serveHTML(t, `<html><body><p id="wd"></p>
<script>document.getElementById('wd').textContent = 'webdriver=' + navigator.webdriver;</script>
</body></html>`)

		html, err := newFetcher(t, rod.WithStealth(true)).Fetch(context.Background(), srv.URL)

		require.NoError(t, err)
		assert.NotContains(t, html, "webdriver=true")
	})

	t.Run("returns the context error when cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newFetcher(t).Fetch(ctx, "http://127.0.0.1:1")

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("gives up on a page slower than the timeout", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(500 * time.Millisecond)
			_, _ = w.Write([]byte("<html><body>late</body></html>"))
		}))
		defer srv.Close()

		_, err := newFetcher(t, rod.WithFetchTimeout(100*time.Millisecond)).Fetch(context.Background(), srv.URL)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("restarts the browser after the page budget", func(t *testing.T) {
		t.Parallel()

		srv := serveHTML(t, "<html><body><p>page</p></body></html>")
		f := newFetcher(t, rod.WithManagerOptions(rod.WithMaxPages(2)))

		for range 3 {
			_, err := f.Fetch(context.Background(), srv.URL)
			require.NoError(t, err)
		}

		assert.Equal(t, int64(1), f.Recycles())
	})
}

func TestFetcher_Close(t *testing.T) {
	t.Parallel()

	f, err := rod.NewFetcher()
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Fetch(context.Background(), "http://example.com")
	assert.Equal(t, simpledocs.EINVALID, simpledocs.ErrorCode(err))
	assert.Zero(t, f.LauncherPID())
}
