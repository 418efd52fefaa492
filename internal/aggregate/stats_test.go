package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

func TestStats(t *testing.T) {
	result := model.NewAggregateResult()
	result.ByRegion[model.RegionKorea] = []model.Creator{
		{ID: "k1", InstagramURL: "https://www.instagram.com/a", YouTubeURL: "https://www.youtube.com/@a"},
		{ID: "k2", InstagramURL: "https://www.instagram.com/b"},
	}
	result.ByRegion[model.RegionUS] = []model.Creator{
		{ID: "us1", TikTokURL: "https://www.tiktok.com/@c"},
	}
	result.Counts[model.RegionKorea] = 2
	result.Counts[model.RegionUS] = 1
	result.Total = 3

	stats := Stats(result)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByRegion[model.RegionKorea])
	assert.Equal(t, 0, stats.ByRegion[model.RegionJapan])
	assert.Equal(t, 2, stats.ByPlatform["instagram"])
	assert.Equal(t, 1, stats.ByPlatform["youtube"])
	assert.Equal(t, 1, stats.ByPlatform["tiktok"])
}

func TestStats_Nil(t *testing.T) {
	stats := Stats(nil)
	assert.Zero(t, stats.Total)
	assert.Equal(t, 0, stats.ByPlatform["instagram"])
}
