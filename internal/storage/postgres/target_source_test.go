package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedTargets(t *testing.T) (*TargetSource, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	targets, err := NewTargetSource(mock)
	require.NoError(t, err)
	return targets, mock
}

func TestActiveCompetitorsScansRows(t *testing.T) {
	t.Parallel()
	targets, mock := newMockedTargets(t)

	older := time.Unix(1600000000, 0).UTC()
	newer := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{"id", "owner_id", "website_url", "scrape_frequency", "coalesce"}).
		AddRow("c1", "u1", "https://a.example", "daily", older).
		AddRow("c2", "u2", "https://b.example", "daily", newer)

	mock.ExpectQuery("SELECT id, owner_id, website_url, scrape_frequency").
		WithArgs("daily").
		WillReturnRows(rows)

	competitors, err := targets.ActiveCompetitors(context.Background(), "daily")
	require.NoError(t, err)
	require.Len(t, competitors, 2)
	assert.Equal(t, "c1", competitors[0].ID)
	assert.Equal(t, "https://a.example", competitors[0].WebsiteURL)
	assert.Equal(t, older, competitors[0].LastScraped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHotKeywordsAppliesCutoffAndLimit(t *testing.T) {
	t.Parallel()
	targets, mock := newMockedTargets(t)

	since := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{"keyword"}).
		AddRow("widgets").
		AddRow("gizmos")

	mock.ExpectQuery("SELECT keyword").
		WithArgs(since, 20).
		WillReturnRows(rows)

	keywords, err := targets.HotKeywords(context.Background(), since, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets", "gizmos"}, keywords)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewTargetSourceRequiresPool(t *testing.T) {
	t.Parallel()
	_, err := NewTargetSource(nil)
	require.Error(t, err)
}
