package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Framework identifies a documentation site generator.
type Framework string

// Frameworks recognized by Detect.
const (
	FrameworkUnknown    Framework = ""
	FrameworkDocusaurus Framework = "docusaurus"
	FrameworkMkDocs     Framework = "mkdocs"
	FrameworkSphinx     Framework = "sphinx"
	FrameworkVitePress  Framework = "vitepress"
	FrameworkVuePress   Framework = "vuepress"
	FrameworkGitBook    Framework = "gitbook"
	FrameworkNextra     Framework = "nextra"
)

// frameworkMarkers lists structural markers in detection order. VitePress
// is checked before VuePress because it reuses some VuePress markers.
var frameworkMarkers = []struct {
	framework Framework
	selectors []string
}{
	{FrameworkDocusaurus, []string{"#__docusaurus_skipToContent_fallback", ".theme-doc-sidebar-container"}},
	{FrameworkMkDocs, []string{"[data-md-color-scheme]", "[data-md-component]", ".md-nav--primary"}},
	{FrameworkSphinx, []string{".toctree-wrapper", ".wy-nav-side", ".wy-menu-vertical", ".sphinxsidebar"}},
	{FrameworkVitePress, []string{"#VPContent", ".VPDoc", ".VPDocAsideOutline"}},
	{FrameworkVuePress, []string{".theme-default-content", ".sidebar-links", ".vuepress-navbar"}},
	{FrameworkGitBook, []string{"[data-testid='space.sidebar']", "[data-testid='page.desktopTableOfContents']"}},
	{FrameworkNextra, []string{".nextra-navbar", ".nextra-sidebar", ".nextra-toc"}},
}

// frameworkContent is the element holding the page body for each framework.
var frameworkContent = map[Framework]string{
	FrameworkDocusaurus: ".theme-doc-markdown",
	FrameworkMkDocs:     ".md-content",
	FrameworkSphinx:     "[role='main']",
	FrameworkVitePress:  ".vp-doc",
	FrameworkVuePress:   ".theme-default-content",
	FrameworkGitBook:    "main",
	FrameworkNextra:     "article",
}

// Detect identifies the generator of a parsed document. The meta generator
// tag wins when present; otherwise structural markers are checked.
func Detect(doc *goquery.Document) Framework {
	if f := detectFromGenerator(doc); f != FrameworkUnknown {
		return f
	}
	for _, m := range frameworkMarkers {
		for _, sel := range m.selectors {
			if doc.Find(sel).Length() > 0 {
				return m.framework
			}
		}
	}
	return FrameworkUnknown
}

func detectFromGenerator(doc *goquery.Document) Framework {
	generator := strings.ToLower(doc.Find("meta[name='generator']").Last().AttrOr("content", ""))
	if generator == "" {
		return FrameworkUnknown
	}
	for _, f := range []Framework{
		FrameworkSphinx,
		FrameworkGitBook,
		FrameworkDocusaurus,
		FrameworkMkDocs,
		FrameworkVitePress,
		FrameworkVuePress,
		FrameworkNextra,
	} {
		if strings.Contains(generator, string(f)) {
			return f
		}
	}
	return FrameworkUnknown
}
