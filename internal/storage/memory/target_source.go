package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brandpulse/scout/internal/scrape"
)

type keywordEntry struct {
	Keyword string
	Score   int
	SeenAt  time.Time
}

// TargetSource is an in-memory scrape.TargetSource for standalone
// deployments and tests. Records are replaced wholesale via the setters.
type TargetSource struct {
	mu          sync.RWMutex
	competitors []scrape.Competitor
	keywords    []keywordEntry
}

// NewTargetSource returns an empty TargetSource.
func NewTargetSource() *TargetSource {
	return &TargetSource{}
}

// SetCompetitors replaces the competitor records.
func (t *TargetSource) SetCompetitors(competitors []scrape.Competitor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.competitors = append([]scrape.Competitor(nil), competitors...)
}

// SetKeyword records a keyword observation used by trend enumeration.
func (t *TargetSource) SetKeyword(keyword string, score int, seenAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keywords = append(t.keywords, keywordEntry{Keyword: keyword, Score: score, SeenAt: seenAt})
}

// ActiveCompetitors returns competitors at the given frequency, least
// recently scraped first.
func (t *TargetSource) ActiveCompetitors(_ context.Context, frequency string) ([]scrape.Competitor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []scrape.Competitor
	for _, c := range t.competitors {
		if c.Frequency == frequency {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastScraped.Before(out[j].LastScraped)
	})
	return out, nil
}

// HotKeywords returns the highest-scored keywords seen since the cutoff.
func (t *TargetSource) HotKeywords(_ context.Context, since time.Time, limit int) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	best := map[string]int{}
	for _, k := range t.keywords {
		if k.SeenAt.Before(since) {
			continue
		}
		if score, ok := best[k.Keyword]; !ok || k.Score > score {
			best[k.Keyword] = k.Score
		}
	}

	ranked := make([]string, 0, len(best))
	for keyword := range best {
		ranked = append(ranked, keyword)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if best[ranked[i]] != best[ranked[j]] {
			return best[ranked[i]] > best[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
