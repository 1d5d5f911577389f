package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/brandpulse/scout/internal/scrape"
)

// TargetSource implements scrape.TargetSource on the competitors and
// trend_keywords tables. It shares the job store's pool.
type TargetSource struct {
	pool querier
}

// NewTargetSource builds a TargetSource over an existing pool.
func NewTargetSource(pool querier) (*TargetSource, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &TargetSource{pool: pool}, nil
}

// NewTargetSourceFromStore reuses the job store's connection pool.
func NewTargetSourceFromStore(store *JobStore) (*TargetSource, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &TargetSource{pool: store.pool}, nil
}

// ActiveCompetitors returns active competitors at the given scrape
// frequency, least recently scraped first.
func (t *TargetSource) ActiveCompetitors(ctx context.Context, frequency string) ([]scrape.Competitor, error) {
	query := `
SELECT id, owner_id, website_url, scrape_frequency, COALESCE(last_scraped_at, 'epoch'::timestamptz)
FROM competitors
WHERE active AND scrape_frequency = $1
ORDER BY last_scraped_at ASC NULLS FIRST`

	rows, err := t.pool.Query(ctx, query, frequency)
	if err != nil {
		return nil, fmt.Errorf("query competitors: %w", err)
	}
	defer rows.Close()

	var out []scrape.Competitor
	for rows.Next() {
		var c scrape.Competitor
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.WebsiteURL, &c.Frequency, &c.LastScraped); err != nil {
			return nil, fmt.Errorf("scan competitor: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competitors: %w", err)
	}
	return out, nil
}

// HotKeywords returns the highest-scored keywords observed since the cutoff.
func (t *TargetSource) HotKeywords(ctx context.Context, since time.Time, limit int) ([]string, error) {
	query := `
SELECT keyword
FROM trend_keywords
WHERE seen_at >= $1
GROUP BY keyword
ORDER BY MAX(score) DESC, keyword ASC
LIMIT $2`

	rows, err := t.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var keyword string
		if err := rows.Scan(&keyword); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, keyword)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keywords: %w", err)
	}
	return out, nil
}
