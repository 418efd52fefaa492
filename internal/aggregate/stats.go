package aggregate

import (
	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// Stats summarizes an aggregate result for the dashboard: totals per
// region and how many creators have each platform linked.
func Stats(result *model.AggregateResult) model.CreatorStats {
	stats := model.CreatorStats{
		ByRegion:   make(map[model.Region]int, len(model.AllRegions)),
		ByPlatform: map[string]int{"instagram": 0, "youtube": 0, "tiktok": 0},
	}
	if result == nil {
		return stats
	}

	stats.Total = result.Total
	for _, r := range model.AllRegions {
		stats.ByRegion[r] = result.Counts[r]
	}
	for _, c := range result.All() {
		if c.InstagramURL != "" {
			stats.ByPlatform["instagram"]++
		}
		if c.YouTubeURL != "" {
			stats.ByPlatform["youtube"]++
		}
		if c.TikTokURL != "" {
			stats.ByPlatform["tiktok"]++
		}
	}
	return stats
}
