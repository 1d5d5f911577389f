package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/brandpulse/scout/internal/scrape"
)

// trendWindow is the number of trailing points compared against the window
// before it to compute the change percentage.
const trendWindow = 7

// TrendPoint is one sample of keyword interest over time.
type TrendPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// trendSeries is the wire shape returned by the interest-over-time source.
type trendSeries struct {
	Keyword        string       `json:"keyword"`
	Points         []TrendPoint `json:"points"`
	RelatedQueries []string     `json:"related_queries"`
}

// TrendResult is the structured output of a trend monitoring job.
type TrendResult struct {
	Keyword        string       `json:"keyword"`
	ScrapedAt      time.Time    `json:"scraped_at"`
	Average        int          `json:"average"`
	ChangePercent  int          `json:"change_percent"`
	Direction      string       `json:"direction"`
	Points         []TrendPoint `json:"points,omitempty"`
	RelatedQueries []string     `json:"related_queries,omitempty"`
}

// TrendsConfig controls the trend monitoring strategy.
type TrendsConfig struct {
	// SourceURL is the interest-over-time endpoint queried when a job
	// carries no explicit target. The keyword is appended as ?keyword=.
	SourceURL string
}

// TrendsStrategy samples keyword interest from a JSON time-series endpoint
// and summarizes level and week-over-week movement. Related queries reported
// by the source are passed through untouched.
type TrendsStrategy struct {
	cfg     TrendsConfig
	fetcher scrape.Fetcher
	clock   scrape.Clock
}

// NewTrendsStrategy builds the trend monitoring strategy.
func NewTrendsStrategy(cfg TrendsConfig, fetcher scrape.Fetcher, clock scrape.Clock) *TrendsStrategy {
	return &TrendsStrategy{cfg: cfg, fetcher: fetcher, clock: clock}
}

// Rendered reports that this strategy works from a plain HTTP fetch.
func (s *TrendsStrategy) Rendered() bool { return false }

// Execute fetches the keyword's interest series and computes the summary.
// The keyword comes from the job's "keyword" option.
func (s *TrendsStrategy) Execute(ctx context.Context, job scrape.Job, _ scrape.Session) (any, error) {
	keyword := job.Options["keyword"]
	if keyword == "" {
		return nil, scrape.NewConfigError("trend job %s has no keyword option", job.ID)
	}

	target, err := s.sourceFor(job, keyword)
	if err != nil {
		return nil, err
	}

	resp, err := s.fetcher.Fetch(ctx, scrape.FetchRequest{URL: target})
	if err != nil {
		return nil, fmt.Errorf("fetch trend series for %q: %w", keyword, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d from trend source", scrape.ErrNoResponse, resp.StatusCode)
	}

	var series trendSeries
	if err := json.Unmarshal(resp.Body, &series); err != nil {
		return nil, fmt.Errorf("decode trend series for %q: %w", keyword, err)
	}
	if len(series.Points) == 0 {
		return nil, fmt.Errorf("%w: trend source returned no points for %q", scrape.ErrNoResponse, keyword)
	}

	result := summarizeTrend(series.Points)
	result.Keyword = keyword
	result.ScrapedAt = s.clock.Now().UTC()
	result.RelatedQueries = series.RelatedQueries
	return result, nil
}

func (s *TrendsStrategy) sourceFor(job scrape.Job, keyword string) (string, error) {
	if job.TargetURL != "" {
		return job.TargetURL, nil
	}
	if s.cfg.SourceURL == "" {
		return "", scrape.NewConfigError("no trend source configured")
	}
	parsed, err := url.Parse(s.cfg.SourceURL)
	if err != nil {
		return "", scrape.NewConfigError("bad trend source url: %v", err)
	}
	query := parsed.Query()
	query.Set("keyword", keyword)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// summarizeTrend computes the rounded series average and the percentage
// change of the trailing window versus the window before it. Fewer than two
// full windows, or a zero prior window, yields a change of zero.
func summarizeTrend(points []TrendPoint) TrendResult {
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	average := int(math.Round(sum / float64(len(points))))

	change := 0
	if len(points) >= 2*trendWindow {
		recent := windowAverage(points[len(points)-trendWindow:])
		prior := windowAverage(points[len(points)-2*trendWindow : len(points)-trendWindow])
		if prior != 0 {
			change = int(math.Round((recent - prior) / prior * 100))
		}
	}

	direction := "stable"
	switch {
	case change > 0:
		direction = "up"
	case change < 0:
		direction = "down"
	}

	return TrendResult{
		Average:       average,
		ChangePercent: change,
		Direction:     direction,
		Points:        points,
	}
}

func windowAverage(points []TrendPoint) float64 {
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}
