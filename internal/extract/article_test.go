package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/scrape"
)

func articlePage(body string) string {
	return `<html>
<head>
	<meta name="author" content="Jo Writer">
	<meta property="article:section" content="Industry">
</head>
<body>
	<nav>Home | Blog | About</nav>
	<h1>Anvil Market Outlook</h1>
	<time datetime="2025-05-20T09:00:00Z">May 20</time>
	<article>` + body + `</article>
	<div class="tags"><a>anvils</a><a>forecast</a></div>
	<aside class="sidebar">Subscribe to our newsletter today</aside>
	<footer>Copyright Acme</footer>
</body>
</html>`
}

func TestArticleStrategyExtractsFields(t *testing.T) {
	body := strings.Repeat("word ", 450)
	sess := newStubSession()
	sess.serve("https://acme.example/post", articlePage(body), 200)
	strategy := NewArticleStrategy(nil, fakeClock{now: testNow}, zap.NewNop())

	require.True(t, strategy.Rendered())

	out, err := strategy.Execute(context.Background(), scrape.Job{
		ID:        "job-2",
		Type:      scrape.JobTypeContentAnalysis,
		TargetURL: "https://acme.example/post",
	}, sess)
	require.NoError(t, err)

	result, ok := out.(ArticleResult)
	require.True(t, ok)

	assert.Equal(t, "Anvil Market Outlook", result.Title)
	assert.Equal(t, "Jo Writer", result.Author)
	assert.Equal(t, "2025-05-20T09:00:00Z", result.PublishedAt)
	assert.Equal(t, "Industry", result.Category)
	assert.Equal(t, []string{"anvils", "forecast"}, result.Tags)
	assert.Equal(t, 450, result.WordCount)
	assert.Equal(t, 3, result.ReadingMinutes, "450 words at 200 wpm rounds up to 3")
}

func TestArticleStrategyStripsPageChrome(t *testing.T) {
	sess := newStubSession()
	sess.serve("https://acme.example/post", articlePage("the actual article body text"), 200)
	strategy := NewArticleStrategy(nil, fakeClock{now: testNow}, zap.NewNop())

	out, err := strategy.Execute(context.Background(), scrape.Job{
		ID:        "job-2",
		TargetURL: "https://acme.example/post",
	}, sess)
	require.NoError(t, err)

	result := out.(ArticleResult)
	assert.Contains(t, result.Content, "actual article body")
	assert.NotContains(t, result.Content, "newsletter", "sidebar text must not leak into content")
	assert.NotContains(t, result.Content, "Copyright", "footer text must not leak into content")
}

func TestArticleStrategyCollectsInContentLinksAndImages(t *testing.T) {
	page := `<html>
<head>
	<title>Anvil Market Outlook</title>
	<meta name="description" content="Where anvils are heading">
</head>
<body>
	<nav><a href="/blog">Blog</a></nav>
	<article>
		<p>See the <a href="/reports/2025" title="Full report">full report</a>.</p>
		<img src="/img/chart.png" alt="Demand chart" width="640" height="480">
	</article>
	<aside class="sidebar"><img src="/img/ad.png"><a href="/subscribe">Subscribe</a></aside>
	<footer><a href="/privacy">Privacy</a></footer>
</body>
</html>`
	sess := newStubSession()
	sess.serve("https://acme.example/post", page, 200)
	strategy := NewArticleStrategy(nil, fakeClock{now: testNow}, zap.NewNop())

	out, err := strategy.Execute(context.Background(), scrape.Job{
		ID:        "job-2",
		TargetURL: "https://acme.example/post",
	}, sess)
	require.NoError(t, err)

	result := out.(ArticleResult)
	require.Len(t, result.Links, 1, "chrome-region links are excluded")
	assert.Equal(t, Link{
		URL:   "https://acme.example/reports/2025",
		Text:  "full report",
		Title: "Full report",
	}, result.Links[0])

	require.Len(t, result.Images, 1, "chrome-region images are excluded")
	assert.Equal(t, Image{
		URL:    "https://acme.example/img/chart.png",
		Alt:    "Demand chart",
		Width:  "640",
		Height: "480",
	}, result.Images[0])

	assert.Equal(t, "Anvil Market Outlook", result.Metadata.Title)
	assert.Equal(t, "Where anvils are heading", result.Metadata.Description)
}

func TestReadingMinutes(t *testing.T) {
	assert.Equal(t, 0, readingMinutes(0))
	assert.Equal(t, 1, readingMinutes(1))
	assert.Equal(t, 1, readingMinutes(200))
	assert.Equal(t, 2, readingMinutes(201))
}
