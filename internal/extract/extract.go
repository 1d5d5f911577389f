// Package extract implements the extraction strategies that turn fetched
// pages into structured results, plus the shared selector primitives they
// compose.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an outbound anchor found on a page.
type Link struct {
	URL   string `json:"url"`
	Text  string `json:"text"`
	Title string `json:"title,omitempty"`
}

// Image is an image reference found on a page.
type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt,omitempty"`
	Title  string `json:"title,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// Heading is one entry of a page's heading hierarchy.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
}

// Metadata aggregates the page head fields, filled via ordered fallback
// chains (document title, then Open Graph, then Twitter card).
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	OGImage     string `json:"og_image,omitempty"`
	OGURL       string `json:"og_url,omitempty"`
	OGType      string `json:"og_type,omitempty"`
	Author      string `json:"author,omitempty"`
	Canonical   string `json:"canonical,omitempty"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// SanitizeText collapses runs of whitespace into single spaces.
func SanitizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Text returns the trimmed text of the first selector match.
func Text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// Attr returns the named attribute of the first selector match.
func Attr(doc *goquery.Document, selector, attribute string) string {
	v, _ := doc.Find(selector).First().Attr(attribute)
	return v
}

// Texts returns the trimmed text of every selector match, dropping empties.
func Texts(doc *goquery.Document, selector string) []string {
	return Collect(doc, selector, func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Text())
	})
}

// Collect runs transform over every selector match and keeps non-empty
// results.
func Collect(doc *goquery.Document, selector string, transform func(*goquery.Selection) string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if v := transform(sel); v != "" {
			out = append(out, v)
		}
	})
	return out
}

// FirstText walks the selectors in order and returns the first non-empty
// trimmed text.
func FirstText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if v := Text(doc, selector); v != "" {
			return v
		}
	}
	return ""
}

// LongestText evaluates every candidate selector and returns the longest
// text found; longer always wins, earlier selectors win ties.
func LongestText(doc *goquery.Document, selectors []string) string {
	var content string
	for _, selector := range selectors {
		text := strings.TrimSpace(doc.Find(selector).Text())
		if len(text) > len(content) {
			content = text
		}
	}
	return content
}

// Links collects every anchor with an href, resolving relative references
// against base.
func Links(doc *goquery.Document, base *url.URL) []Link {
	return LinksExcluding(doc, base, "")
}

// LinksExcluding collects anchors with an href, skipping any whose ancestors
// match the skip selector.
func LinksExcluding(doc *goquery.Document, base *url.URL, skip string) []Link {
	var links []Link
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if skip != "" && sel.Closest(skip).Length() > 0 {
			return
		}
		href, _ := sel.Attr("href")
		full := ResolveURL(base, href)
		if full == "" {
			return
		}
		title, _ := sel.Attr("title")
		links = append(links, Link{
			URL:   full,
			Text:  strings.TrimSpace(sel.Text()),
			Title: title,
		})
	})
	return links
}

// Images collects every image with a src, resolving relative references
// against base.
func Images(doc *goquery.Document, base *url.URL) []Image {
	return ImagesExcluding(doc, base, "")
}

// ImagesExcluding collects images with a src, skipping any whose ancestors
// match the skip selector.
func ImagesExcluding(doc *goquery.Document, base *url.URL, skip string) []Image {
	var images []Image
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		if skip != "" && sel.Closest(skip).Length() > 0 {
			return
		}
		src, _ := sel.Attr("src")
		full := ResolveURL(base, src)
		if full == "" {
			return
		}
		alt, _ := sel.Attr("alt")
		title, _ := sel.Attr("title")
		width, _ := sel.Attr("width")
		height, _ := sel.Attr("height")
		images = append(images, Image{
			URL:    full,
			Alt:    alt,
			Title:  title,
			Width:  width,
			Height: height,
		})
	})
	return images
}

// Headings returns the h1-h6 hierarchy in document order per level.
func Headings(doc *goquery.Document) []Heading {
	var headings []Heading
	for level := 1; level <= 6; level++ {
		selector := "h" + string(rune('0'+level))
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return
			}
			id, _ := sel.Attr("id")
			headings = append(headings, Heading{Level: level, Text: text, ID: id})
		})
	}
	return headings
}

// PageMetadata extracts head metadata with ordered preference chains.
func PageMetadata(doc *goquery.Document) Metadata {
	return Metadata{
		Title: firstNonEmpty(
			Text(doc, "title"),
			Attr(doc, `meta[property="og:title"]`, "content"),
			Attr(doc, `meta[name="twitter:title"]`, "content"),
		),
		Description: firstNonEmpty(
			Attr(doc, `meta[name="description"]`, "content"),
			Attr(doc, `meta[property="og:description"]`, "content"),
			Attr(doc, `meta[name="twitter:description"]`, "content"),
		),
		Keywords:  Attr(doc, `meta[name="keywords"]`, "content"),
		OGImage:   Attr(doc, `meta[property="og:image"]`, "content"),
		OGURL:     Attr(doc, `meta[property="og:url"]`, "content"),
		OGType:    Attr(doc, `meta[property="og:type"]`, "content"),
		Author:    Attr(doc, `meta[name="author"]`, "content"),
		Canonical: Attr(doc, `link[rel="canonical"]`, "href"),
	}
}

// ResolveURL resolves ref against base, returning "" for unusable refs.
func ResolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "javascript:") || strings.HasPrefix(ref, "data:") {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
