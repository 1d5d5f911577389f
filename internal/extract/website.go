package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/scrape"
)

// contentSelectors are the candidate containers for main page content; the
// longest text wins.
var contentSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	".content",
	"#content",
	".main-content",
	"body",
}

// socialPlatforms maps a platform name to the host fragments that identify
// its profile links.
var socialPlatforms = map[string][]string{
	"facebook":  {"facebook.com"},
	"twitter":   {"twitter.com", "x.com"},
	"linkedin":  {"linkedin.com"},
	"instagram": {"instagram.com"},
	"youtube":   {"youtube.com"},
	"tiktok":    {"tiktok.com"},
	"pinterest": {"pinterest.com"},
	"github":    {"github.com"},
}

// techFingerprints maps a technology name to markup fragments that reveal it.
var techFingerprints = map[string][]string{
	"React":            {"react", "__NEXT_DATA__"},
	"Vue.js":           {"vue.js", "vue.min.js", "__vue__"},
	"Angular":          {"ng-version", "angular"},
	"jQuery":           {"jquery"},
	"Bootstrap":        {"bootstrap"},
	"WordPress":        {"wp-content", "wp-includes"},
	"Shopify":          {"cdn.shopify.com", "shopify"},
	"Google Analytics": {"google-analytics.com", "googletagmanager.com", "gtag("},
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\(?\d{1,4}\)?[\s.\-]?\(?\d{1,4}\)?[\s.\-]?\d{2,4}[\s.\-]?\d{2,4}`)
)

const maxContactEntries = 10

// ContactInfo holds the contact details surfaced on a page.
type ContactInfo struct {
	Emails []string `json:"emails,omitempty"`
	Phones []string `json:"phones,omitempty"`
}

// WebsiteResult is the structured output of a full-site scrape.
type WebsiteResult struct {
	URL          string            `json:"url"`
	ScrapedAt    time.Time         `json:"scraped_at"`
	Metadata     Metadata          `json:"metadata"`
	Content      string            `json:"content,omitempty"`
	Links        []Link            `json:"links,omitempty"`
	Images       []Image           `json:"images,omitempty"`
	Headings     []Heading         `json:"headings,omitempty"`
	Social       map[string]string `json:"social,omitempty"`
	Contact      ContactInfo       `json:"contact"`
	Technologies []string          `json:"technologies,omitempty"`
	SnapshotURI  string            `json:"snapshot_uri,omitempty"`
}

// WebsiteStrategy captures a full rendered snapshot of a competitor site:
// metadata, content, link and image graphs, social presence, contact info
// and a technology fingerprint.
type WebsiteStrategy struct {
	snapshots scrape.SnapshotStore
	clock     scrape.Clock
	logger    *zap.Logger
}

// NewWebsiteStrategy builds the website strategy. snapshots may be nil.
func NewWebsiteStrategy(snapshots scrape.SnapshotStore, clock scrape.Clock, logger *zap.Logger) *WebsiteStrategy {
	return &WebsiteStrategy{snapshots: snapshots, clock: clock, logger: logger}
}

// Rendered reports that this strategy needs a browser session.
func (s *WebsiteStrategy) Rendered() bool { return true }

// Execute fetches the target through the session and extracts the full
// website profile.
func (s *WebsiteStrategy) Execute(ctx context.Context, job scrape.Job, sess scrape.Session) (any, error) {
	doc, resp, err := fetchDocument(ctx, sess.Fetch, scrape.FetchRequest{
		URL:          job.TargetURL,
		WaitSelector: job.Options["wait_selector"],
	})
	if err != nil {
		return nil, err
	}

	base := baseURL(resp)
	links := Links(doc, base)

	result := WebsiteResult{
		URL:          resp.URL,
		ScrapedAt:    s.clock.Now().UTC(),
		Metadata:     PageMetadata(doc),
		Content:      SanitizeText(LongestText(doc, contentSelectors)),
		Links:        links,
		Images:       Images(doc, base),
		Headings:     Headings(doc),
		Social:       detectSocialLinks(links),
		Contact:      extractContactInfo(doc),
		Technologies: detectTechnologies(resp.Body),
		SnapshotURI:  storeSnapshot(ctx, s.snapshots, s.logger, job.ID, resp.Body),
	}
	return result, nil
}

// detectSocialLinks keeps the first profile link found per platform.
func detectSocialLinks(links []Link) map[string]string {
	found := map[string]string{}
	for _, link := range links {
		lower := strings.ToLower(link.URL)
		for platform, hosts := range socialPlatforms {
			if _, ok := found[platform]; ok {
				continue
			}
			for _, host := range hosts {
				if strings.Contains(lower, host+"/") || strings.HasSuffix(lower, host) {
					found[platform] = link.URL
					break
				}
			}
		}
	}
	if len(found) == 0 {
		return nil
	}
	return found
}

func extractContactInfo(doc *goquery.Document) ContactInfo {
	text, _ := doc.Html()

	emails := dedupeLimit(emailRe.FindAllString(text, -1), maxContactEntries)

	// Phone candidates come from tel: links first, then visible text.
	var phones []string
	doc.Find(`a[href^="tel:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		phones = append(phones, strings.TrimPrefix(href, "tel:"))
	})
	for _, candidate := range phoneRe.FindAllString(doc.Text(), -1) {
		if digits := countDigits(candidate); digits >= 7 && digits <= 15 {
			phones = append(phones, strings.TrimSpace(candidate))
		}
	}

	return ContactInfo{
		Emails: emails,
		Phones: dedupeLimit(phones, maxContactEntries),
	}
}

// detectTechnologies scans the raw markup for framework and platform
// fingerprints, returning matches sorted by name.
func detectTechnologies(body []byte) []string {
	lower := strings.ToLower(string(body))
	var techs []string
	for name, fragments := range techFingerprints {
		for _, fragment := range fragments {
			if strings.Contains(lower, strings.ToLower(fragment)) {
				techs = append(techs, name)
				break
			}
		}
	}
	sort.Strings(techs)
	return techs
}

// dedupeLimit removes case-insensitive duplicates, keeping at most limit
// entries. A limit of zero keeps everything.
func dedupeLimit(values []string, limit int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(v))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
