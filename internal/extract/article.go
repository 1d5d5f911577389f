package extract

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/scrape"
)

// wordsPerMinute is the reading speed used for the reading-time estimate.
const wordsPerMinute = 200

// articleChrome matches the page regions whose links and images are not part
// of the article itself.
const articleChrome = "nav, footer, aside, .sidebar, .navigation"

// articleContentSelectors are the candidate containers for article body text.
var articleContentSelectors = []string{
	"article",
	`[itemprop="articleBody"]`,
	".post-content",
	".entry-content",
	".article-content",
	".article-body",
	"main",
	".content",
}

// ArticleResult is the structured output of a content analysis job.
type ArticleResult struct {
	URL            string    `json:"url"`
	ScrapedAt      time.Time `json:"scraped_at"`
	Title          string    `json:"title"`
	Author         string    `json:"author,omitempty"`
	PublishedAt    string    `json:"published_at,omitempty"`
	Category       string    `json:"category,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Content        string    `json:"content,omitempty"`
	Metadata       Metadata  `json:"metadata"`
	Links          []Link    `json:"links,omitempty"`
	Images         []Image   `json:"images,omitempty"`
	WordCount      int       `json:"word_count"`
	ReadingMinutes int       `json:"reading_minutes"`
	SnapshotURI    string    `json:"snapshot_uri,omitempty"`
}

// ArticleStrategy analyzes a single piece of content: byline and taxonomy
// fields via fallback chains, body text with chrome regions stripped,
// in-content links and images, and word-count derived reading time.
type ArticleStrategy struct {
	snapshots scrape.SnapshotStore
	clock     scrape.Clock
	logger    *zap.Logger
}

// NewArticleStrategy builds the content analysis strategy. snapshots may be nil.
func NewArticleStrategy(snapshots scrape.SnapshotStore, clock scrape.Clock, logger *zap.Logger) *ArticleStrategy {
	return &ArticleStrategy{snapshots: snapshots, clock: clock, logger: logger}
}

// Rendered reports that this strategy needs a browser session.
func (s *ArticleStrategy) Rendered() bool { return true }

// Execute fetches the article through the session and extracts its fields.
func (s *ArticleStrategy) Execute(ctx context.Context, job scrape.Job, sess scrape.Session) (any, error) {
	doc, resp, err := fetchDocument(ctx, sess.Fetch, scrape.FetchRequest{
		URL:          job.TargetURL,
		WaitSelector: job.Options["wait_selector"],
	})
	if err != nil {
		return nil, err
	}

	content := articleContent(doc)
	words := len(strings.Fields(content))
	base := baseURL(resp)

	result := ArticleResult{
		URL:       resp.URL,
		ScrapedAt: s.clock.Now().UTC(),
		Title: FirstText(doc,
			"h1",
			".post-title",
			".entry-title",
			".article-title",
			"title",
		),
		Author:         articleAuthor(doc),
		PublishedAt:    articlePublishedAt(doc),
		Category:       articleCategory(doc),
		Tags:           articleTags(doc),
		Content:        content,
		Metadata:       PageMetadata(doc),
		Links:          LinksExcluding(doc, base, articleChrome),
		Images:         ImagesExcluding(doc, base, articleChrome),
		WordCount:      words,
		ReadingMinutes: readingMinutes(words),
		SnapshotURI:    storeSnapshot(ctx, s.snapshots, s.logger, job.ID, resp.Body),
	}
	return result, nil
}

// articleContent picks the longest candidate container after stripping the
// page chrome regions that pollute body text.
func articleContent(doc *goquery.Document) string {
	clone := goquery.CloneDocument(doc)
	clone.Find("nav, footer, aside, .sidebar, script, style").Remove()
	return SanitizeText(LongestText(clone, articleContentSelectors))
}

func articleAuthor(doc *goquery.Document) string {
	if v := Attr(doc, `meta[name="author"]`, "content"); v != "" {
		return v
	}
	if v := Attr(doc, `meta[property="article:author"]`, "content"); v != "" {
		return v
	}
	return FirstText(doc,
		`[rel="author"]`,
		".author-name",
		".author",
		".byline",
	)
}

func articlePublishedAt(doc *goquery.Document) string {
	if v := Attr(doc, "time[datetime]", "datetime"); v != "" {
		return v
	}
	if v := Attr(doc, `meta[property="article:published_time"]`, "content"); v != "" {
		return v
	}
	return FirstText(doc, ".published", ".post-date", ".date")
}

func articleCategory(doc *goquery.Document) string {
	if v := Attr(doc, `meta[property="article:section"]`, "content"); v != "" {
		return v
	}
	return FirstText(doc, ".category", ".post-category", ".breadcrumb li:last-child")
}

func articleTags(doc *goquery.Document) []string {
	tags := Texts(doc, `[rel="tag"]`)
	if len(tags) == 0 {
		tags = Texts(doc, ".tags a, .post-tags a, .tag-list a")
	}
	if len(tags) == 0 {
		if keywords := Attr(doc, `meta[name="keywords"]`, "content"); keywords != "" {
			for _, part := range strings.Split(keywords, ",") {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					tags = append(tags, trimmed)
				}
			}
		}
	}
	return dedupeLimit(tags, 20)
}

func readingMinutes(words int) int {
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / wordsPerMinute))
}
