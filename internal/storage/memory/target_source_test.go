package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpulse/scout/internal/scrape"
)

func TestActiveCompetitorsFiltersAndOrders(t *testing.T) {
	t.Parallel()
	targets := NewTargetSource()
	targets.SetCompetitors([]scrape.Competitor{
		{ID: "c1", Frequency: "daily", LastScraped: time.Unix(300, 0)},
		{ID: "c2", Frequency: "weekly", LastScraped: time.Unix(100, 0)},
		{ID: "c3", Frequency: "daily", LastScraped: time.Unix(100, 0)},
	})

	got, err := targets.ActiveCompetitors(context.Background(), "daily")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c3", got[0].ID)
	assert.Equal(t, "c1", got[1].ID)
}

func TestHotKeywordsRanksAndCutsOff(t *testing.T) {
	t.Parallel()
	targets := NewTargetSource()
	cutoff := time.Unix(1000, 0)
	targets.SetKeyword("stale", 99, cutoff.Add(-time.Hour))
	targets.SetKeyword("widgets", 10, cutoff.Add(time.Minute))
	targets.SetKeyword("gizmos", 20, cutoff.Add(time.Minute))
	targets.SetKeyword("widgets", 30, cutoff.Add(2*time.Minute))

	got, err := targets.HotKeywords(context.Background(), cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets", "gizmos"}, got)

	got, err = targets.HotKeywords(context.Background(), cutoff, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets"}, got)
}
