package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
	"github.com/mktbiz-byte/cnec-platform/internal/region"
)

type fakeRegionClient struct {
	region model.Region
	tables map[string][]model.RawRecord
	errs   map[string]error
	calls  []string
}

func (f *fakeRegionClient) Region() model.Region { return f.region }

func (f *fakeRegionClient) Query(_ context.Context, table string, _ region.QueryOptions) ([]model.RawRecord, error) {
	f.calls = append(f.calls, table)
	if err, ok := f.errs[table]; ok {
		return nil, err
	}
	return f.tables[table], nil
}

type mapCache struct {
	result *model.AggregateResult
	sets   int
}

func (c *mapCache) GetAggregate(context.Context) (*model.AggregateResult, bool) {
	return c.result, c.result != nil
}

func (c *mapCache) SetAggregate(_ context.Context, r *model.AggregateResult) {
	c.result = r
	c.sets++
}

func TestAggregateCreators_AllRegions(t *testing.T) {
	korea := &fakeRegionClient{
		region: model.RegionKorea,
		tables: map[string][]model.RawRecord{
			"user_profiles": {
				{"user_id": "k1", "name": "지은", "instagram_handle": "@a"},
			},
			"applications": {
				{"user_id": "k1", "phone_number": "010-1"},
			},
		},
	}
	us := &fakeRegionClient{
		region: model.RegionUS,
		tables: map[string][]model.RawRecord{
			"user_profiles": {
				{"id": "us1", "name": "Blake", "instagram_url": "http://b.com"},
			},
		},
	}
	taiwan := &fakeRegionClient{
		region: model.RegionTaiwan,
		tables: map[string][]model.RawRecord{"user_profiles": {}},
	}

	// Japan stays unconfigured on purpose.
	clients := region.NewClientsFromMap(map[model.Region]region.Client{
		model.RegionKorea:  korea,
		model.RegionUS:     us,
		model.RegionTaiwan: taiwan,
	})

	agg := New(clients, Options{})
	result, err := agg.AggregateCreators(context.Background())
	require.NoError(t, err)

	// Every known region is present even when empty or unreachable.
	require.Len(t, result.ByRegion, len(model.AllRegions))

	require.Len(t, result.ByRegion[model.RegionKorea], 1)
	k := result.ByRegion[model.RegionKorea][0]
	assert.Equal(t, "https://www.instagram.com/a", k.InstagramURL)
	assert.Equal(t, "010-1", k.Phone, "supplement backfill should fill the empty phone")

	require.Len(t, result.ByRegion[model.RegionUS], 1)
	assert.Equal(t, "http://b.com", result.ByRegion[model.RegionUS][0].InstagramURL)

	assert.Empty(t, result.ByRegion[model.RegionJapan])
	assert.Empty(t, result.ByRegion[model.RegionTaiwan])

	assert.Equal(t, 1, result.Counts[model.RegionKorea])
	assert.Equal(t, 0, result.Counts[model.RegionJapan])
	assert.Equal(t, 2, result.Total)

	// Only Korea has a supplement source configured.
	assert.Contains(t, korea.calls, "applications")
	assert.NotContains(t, us.calls, "applications")
}

func TestAggregateCreators_RegionFailureIsAbsorbed(t *testing.T) {
	korea := &fakeRegionClient{
		region: model.RegionKorea,
		errs:   map[string]error{"user_profiles": assert.AnError},
	}
	us := &fakeRegionClient{
		region: model.RegionUS,
		tables: map[string][]model.RawRecord{
			"user_profiles": {{"id": "us1", "name": "Blake"}},
		},
	}

	clients := region.NewClientsFromMap(map[model.Region]region.Client{
		model.RegionKorea: korea,
		model.RegionUS:    us,
	})

	result, err := New(clients, Options{}).AggregateCreators(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.ByRegion[model.RegionKorea])
	assert.Len(t, result.ByRegion[model.RegionUS], 1)
	assert.Equal(t, 1, result.Total)
}

func TestAggregateCreators_SupplementFailureKeepsPrimary(t *testing.T) {
	korea := &fakeRegionClient{
		region: model.RegionKorea,
		tables: map[string][]model.RawRecord{
			"user_profiles": {{"user_id": "k1", "name": "지은"}},
		},
		errs: map[string]error{"applications": assert.AnError},
	}

	clients := region.NewClientsFromMap(map[model.Region]region.Client{
		model.RegionKorea: korea,
	})

	result, err := New(clients, Options{}).AggregateCreators(context.Background())
	require.NoError(t, err)

	require.Len(t, result.ByRegion[model.RegionKorea], 1)
	assert.Equal(t, "지은", result.ByRegion[model.RegionKorea][0].Name)
}

func TestAggregateCreators_CacheHit(t *testing.T) {
	cache := &mapCache{}
	korea := &fakeRegionClient{
		region: model.RegionKorea,
		tables: map[string][]model.RawRecord{
			"user_profiles": {{"user_id": "k1", "name": "지은"}},
			"applications":  {},
		},
	}
	clients := region.NewClientsFromMap(map[model.Region]region.Client{
		model.RegionKorea: korea,
	})

	agg := New(clients, Options{Cache: cache})

	first, err := agg.AggregateCreators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	fetchesAfterFirst := len(korea.calls)
	second, err := agg.AggregateCreators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, korea.calls, fetchesAfterFirst, "cache hit must not touch the regions")
}

func TestCreatorsByRegion_Unconfigured(t *testing.T) {
	clients := region.NewClientsFromMap(map[model.Region]region.Client{})
	creators := New(clients, Options{}).CreatorsByRegion(context.Background(), model.RegionJapan)
	assert.NotNil(t, creators)
	assert.Empty(t, creators)
}
