package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestPageMetadataFallbackChain(t *testing.T) {
	doc := parseDoc(t, `<html><head>
		<meta property="og:title" content="OG Title">
		<meta property="og:description" content="OG description">
		<meta name="keywords" content="a,b">
		<link rel="canonical" href="https://example.com/page">
	</head><body></body></html>`)

	meta := PageMetadata(doc)
	assert.Equal(t, "OG Title", meta.Title, "og:title fills in for a missing title tag")
	assert.Equal(t, "OG description", meta.Description)
	assert.Equal(t, "a,b", meta.Keywords)
	assert.Equal(t, "https://example.com/page", meta.Canonical)
}

func TestPageMetadataPrefersTitleTag(t *testing.T) {
	doc := parseDoc(t, `<html><head>
		<title>Real Title</title>
		<meta property="og:title" content="OG Title">
	</head></html>`)

	assert.Equal(t, "Real Title", PageMetadata(doc).Title)
}

func TestLongestTextWins(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<main>short</main>
		<article>this is a much longer body of text</article>
	</body></html>`)

	got := LongestText(doc, []string{"main", "article"})
	assert.Equal(t, "this is a much longer body of text", got)
}

func TestLinksResolveRelative(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<a href="/about" title="About us">About</a>
		<a href="https://other.example/x">Other</a>
		<a href="javascript:void(0)">Noise</a>
		<a href="mailto:hi@example.com">Mail</a>
	</body></html>`)
	base, _ := url.Parse("https://example.com/home")

	links := Links(doc, base)
	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com/about", links[0].URL)
	assert.Equal(t, "About us", links[0].Title)
	assert.Equal(t, "https://other.example/x", links[1].URL)
}

func TestImagesCarryAttributes(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<img src="/logo.png" alt="Logo" width="64" height="32">
	</body></html>`)
	base, _ := url.Parse("https://example.com")

	images := Images(doc, base)
	require.Len(t, images, 1)
	assert.Equal(t, "https://example.com/logo.png", images[0].URL)
	assert.Equal(t, "Logo", images[0].Alt)
	assert.Equal(t, "64", images[0].Width)
}

func TestHeadingsOrderedByLevel(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<h2 id="sub">Sub</h2>
		<h1>Top</h1>
		<h3></h3>
	</body></html>`)

	headings := Headings(doc)
	require.Len(t, headings, 2)
	assert.Equal(t, Heading{Level: 1, Text: "Top"}, headings[0])
	assert.Equal(t, Heading{Level: 2, Text: "Sub", ID: "sub"}, headings[1])
}

func TestSanitizeTextCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "one two three", SanitizeText("  one\n\t two   three "))
}

func TestResolveURLRejectsNonHTTP(t *testing.T) {
	base, _ := url.Parse("https://example.com")
	assert.Empty(t, ResolveURL(base, "ftp://example.com/file"))
	assert.Empty(t, ResolveURL(base, "data:text/plain,hi"))
	assert.Equal(t, "https://example.com/a", ResolveURL(base, "/a"))
}
