package goquery_test

import (
	"strings"
	"testing"

	gq "github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/simpledocs/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detect(t *testing.T, html string) goquery.Framework {
	t.Helper()
	doc, err := gq.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return goquery.Detect(doc)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	t.Run("uses the meta generator tag", func(t *testing.T) {
		t.Parallel()
		html := `<html><head><meta name="generator" content="Sphinx 7.2.6"></head><body></body></html>`
		assert.Equal(t, goquery.FrameworkSphinx, detect(t, html))
	})

	t.Run("recognizes MkDocs Material by data attributes", func(t *testing.T) {
		t.Parallel()
		html := `<html><body data-md-color-scheme="default"><div class="md-content"></div></body></html>`
		assert.Equal(t, goquery.FrameworkMkDocs, detect(t, html))
	})

	t.Run("recognizes Docusaurus by its skip link target", func(t *testing.T) {
		t.Parallel()
		html := `<html><body><div id="__docusaurus_skipToContent_fallback"></div></body></html>`
		assert.Equal(t, goquery.FrameworkDocusaurus, detect(t, html))
	})

	t.Run("tells VitePress from VuePress", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, goquery.FrameworkVitePress, detect(t, `<div id="VPContent"></div>`))
		assert.Equal(t, goquery.FrameworkVuePress, detect(t, `<div class="theme-default-content"></div>`))
		assert.Equal(t, goquery.FrameworkVitePress, detect(t, `<meta name="generator" content="VitePress v1.0.0">`))
	})

	t.Run("returns unknown for plain pages", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, goquery.FrameworkUnknown, detect(t, `<html><body><main>Docs</main></body></html>`))
	})
}
