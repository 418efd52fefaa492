package region

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
	"github.com/mktbiz-byte/cnec-platform/internal/resilience"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		opts     QueryOptions
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "plain select all",
			table:   "user_profiles",
			opts:    QueryOptions{},
			wantSQL: "SELECT * FROM user_profiles",
		},
		{
			name:  "ordered descending",
			table: "user_profiles",
			opts: QueryOptions{
				OrderBy:    "created_at",
				Descending: true,
			},
			wantSQL: "SELECT * FROM user_profiles ORDER BY created_at DESC",
		},
		{
			name:  "filters sorted by column",
			table: "applications",
			opts: QueryOptions{
				Filters: map[string]any{"status": "approved", "campaign_id": "c1"},
			},
			wantSQL:  "SELECT * FROM applications WHERE campaign_id = $1 AND status = $2",
			wantArgs: 2,
		},
		{
			name:  "slice filter becomes ANY",
			table: "applications",
			opts: QueryOptions{
				Columns: []string{"user_id", "instagram_handle"},
				Filters: map[string]any{"user_id": []string{"u1", "u2"}},
			},
			wantSQL:  "SELECT user_id, instagram_handle FROM applications WHERE user_id = ANY($1)",
			wantArgs: 1,
		},
		{
			name:    "limit",
			table:   "user_profiles",
			opts:    QueryOptions{Limit: 50},
			wantSQL: "SELECT * FROM user_profiles LIMIT 50",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildSelect(tt.table, tt.opts)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestPGClient_Query(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT \* FROM user_profiles ORDER BY created_at DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "instagram_handle"}).
			AddRow("u1", "Mina", "@mina").
			AddRow("u2", "Haru", nil))

	client := NewPGClient(model.RegionKorea, mock)
	assert.Equal(t, model.RegionKorea, client.Region())

	rows, err := client.Query(context.Background(), "user_profiles", QueryOptions{
		OrderBy:    "created_at",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Mina", rows[0]["name"])
	assert.Equal(t, "@mina", rows[0]["instagram_handle"])
	assert.Nil(t, rows[1]["instagram_handle"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGClient_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT \* FROM user_profiles`).
		WillReturnError(assert.AnError)

	client := NewPGClient(model.RegionJapan, mock)
	_, err = client.Query(context.Background(), "user_profiles", QueryOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region japan")
}

func TestPGClient_BreakerOpensWhenRegionUnreachable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	client := NewPGClient(model.RegionTaiwan, mock)
	client.retry = resilience.RetryConfig{MaxAttempts: 1}

	connRefused := resilience.NewTransientError(assert.AnError)
	for i := 0; i < 5; i++ {
		mock.ExpectQuery(`SELECT \* FROM user_profiles`).
			WillReturnError(connRefused)
		_, err = client.Query(context.Background(), "user_profiles", QueryOptions{})
		require.Error(t, err)
	}

	// The breaker is open now; no further pool traffic happens.
	_, err = client.Query(context.Background(), "user_profiles", QueryOptions{})
	require.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGClient_QueryErrorsDoNotOpenBreaker(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	client := NewPGClient(model.RegionUS, mock)

	// A failing query is not an outage; the region stays admitted.
	for i := 0; i < 6; i++ {
		mock.ExpectQuery(`SELECT \* FROM user_profiles`).
			WillReturnError(assert.AnError)
		_, err = client.Query(context.Background(), "user_profiles", QueryOptions{})
		require.Error(t, err)
		require.NotErrorIs(t, err, resilience.ErrBreakerOpen)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClients_GetAndConfigured(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clients := NewClientsFromMap(map[model.Region]Client{
		model.RegionKorea: NewPGClient(model.RegionKorea, mock),
		model.RegionUS:    NewPGClient(model.RegionUS, mock),
	})

	assert.NotNil(t, clients.Get(model.RegionKorea))
	assert.Nil(t, clients.Get(model.RegionJapan))
	assert.Equal(t, []model.Region{model.RegionKorea, model.RegionUS}, clients.Configured())
}
