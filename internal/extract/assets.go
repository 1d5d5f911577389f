package extract

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brandpulse/scout/internal/scrape"
)

// documentExtensions are the link suffixes counted as downloadable documents.
var documentExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".csv", ".zip",
}

// AssetRef is one discovered asset reference plus any size hints the markup
// declares for it.
type AssetRef struct {
	URL    string `json:"url"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
	Size   string `json:"size,omitempty"`
}

// AssetInventory is the structured output of an asset discovery job.
type AssetInventory struct {
	URL         string     `json:"url"`
	ScrapedAt   time.Time  `json:"scraped_at"`
	Images      []AssetRef `json:"images,omitempty"`
	Stylesheets []AssetRef `json:"stylesheets,omitempty"`
	Scripts     []AssetRef `json:"scripts,omitempty"`
	Media       []AssetRef `json:"media,omitempty"`
	Documents   []AssetRef `json:"documents,omitempty"`
	TotalCount  int        `json:"total_count"`
}

// AssetsStrategy inventories the static assets referenced by a page. Static
// markup is enough here, so it rides the lightweight fetcher.
type AssetsStrategy struct {
	fetcher scrape.Fetcher
	clock   scrape.Clock
}

// NewAssetsStrategy builds the asset discovery strategy.
func NewAssetsStrategy(fetcher scrape.Fetcher, clock scrape.Clock) *AssetsStrategy {
	return &AssetsStrategy{fetcher: fetcher, clock: clock}
}

// Rendered reports that this strategy works from static markup.
func (s *AssetsStrategy) Rendered() bool { return false }

// Execute fetches the target without rendering and collects asset references
// grouped by kind.
func (s *AssetsStrategy) Execute(ctx context.Context, job scrape.Job, _ scrape.Session) (any, error) {
	doc, resp, err := fetchDocument(ctx, s.fetcher.Fetch, scrape.FetchRequest{URL: job.TargetURL})
	if err != nil {
		return nil, err
	}

	base := baseURL(resp)
	collect := func(selector, attr string, keep func(string) bool) []AssetRef {
		var refs []AssetRef
		seen := map[string]struct{}{}
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			raw, _ := sel.Attr(attr)
			full := ResolveURL(base, raw)
			if full == "" || (keep != nil && !keep(full)) {
				return
			}
			if _, ok := seen[full]; ok {
				return
			}
			seen[full] = struct{}{}
			refs = append(refs, assetRef(sel, full))
		})
		return refs
	}

	inventory := AssetInventory{
		URL:         resp.URL,
		ScrapedAt:   s.clock.Now().UTC(),
		Images:      collect("img[src]", "src", nil),
		Stylesheets: collect(`link[rel="stylesheet"][href]`, "href", nil),
		Scripts:     collect("script[src]", "src", nil),
		Media:       collect("video[src], audio[src], video source[src], audio source[src]", "src", nil),
		Documents:   collect("a[href]", "href", isDocumentLink),
	}
	inventory.TotalCount = len(inventory.Images) + len(inventory.Stylesheets) +
		len(inventory.Scripts) + len(inventory.Media) + len(inventory.Documents)
	return inventory, nil
}

// assetRef carries over the width/height and byte-size hints declared on the
// referencing element.
func assetRef(sel *goquery.Selection, full string) AssetRef {
	ref := AssetRef{URL: full}
	ref.Width, _ = sel.Attr("width")
	ref.Height, _ = sel.Attr("height")
	if v, ok := sel.Attr("data-size"); ok {
		ref.Size = v
	} else if v, ok := sel.Attr("size"); ok {
		ref.Size = v
	}
	return ref
}

func isDocumentLink(full string) bool {
	if full == "" {
		return false
	}
	lower := strings.ToLower(full)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range documentExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
