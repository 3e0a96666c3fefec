package htmltomarkdown_test

import (
	"testing"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/htmltomarkdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	t.Run("converts headings and paragraphs", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert(`<h1>Title</h1><h2>Subtitle</h2><p>Hello, world!</p>`)

		require.NoError(t, err)
		assert.Contains(t, md, "# Title")
		assert.Contains(t, md, "## Subtitle")
		assert.Contains(t, md, "Hello, world!")
	})

	t.Run("keeps links", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert(`<p>See <a href="https://example.com/docs/auth">auth</a>.</p>`)

		require.NoError(t, err)
		assert.Contains(t, md, "[auth](https://example.com/docs/auth)")
	})

	t.Run("keeps tables", func(t *testing.T) {
		t.Parallel()

		html := `<table><thead><tr><th>Name</th><th>Default</th></tr></thead>
<tbody><tr><td>timeout</td><td>30s</td></tr></tbody></table>`

		md, err := htmltomarkdown.NewConverter().Convert(html)

		require.NoError(t, err)
		assert.Contains(t, md, "| Name")
		assert.Contains(t, md, "timeout")
	})

	t.Run("keeps code blocks", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert(`<pre><code>go get example.com/sdk</code></pre>`)

		require.NoError(t, err)
		assert.Contains(t, md, "```")
		assert.Contains(t, md, "go get example.com/sdk")
	})

	t.Run("removes images", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert(`<p>Before</p><img src="/diagram.png" alt="Diagram"><p>After</p>`)

		require.NoError(t, err)
		assert.NotContains(t, md, "diagram.png")
		assert.Contains(t, md, "Before")
		assert.Contains(t, md, "After")
	})

	t.Run("drops icons and interactive controls", func(t *testing.T) {
		t.Parallel()

		html := `<p>Copy the snippet <button><svg viewBox="0 0 24 24"><path d="M0 0h24"/></svg>Copy</button></p>
<form><input name="q"><button>Search</button></form>`

		md, err := htmltomarkdown.NewConverter().Convert(html)

		require.NoError(t, err)
		assert.Contains(t, md, "Copy the snippet")
		assert.NotContains(t, md, "viewBox")
		assert.NotContains(t, md, "Search")
	})

	t.Run("collapses runs of blank lines", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert("<p>One</p><div><br><br><br><br></div><p>Two</p>")

		require.NoError(t, err)
		assert.NotContains(t, md, "\n\n\n")
		assert.Contains(t, md, "One")
		assert.Contains(t, md, "Two")
	})

	t.Run("rejects empty input", func(t *testing.T) {
		t.Parallel()

		_, err := htmltomarkdown.NewConverter().Convert("   ")

		assert.Equal(t, simpledocs.EINVALID, simpledocs.ErrorCode(err))
	})
}
