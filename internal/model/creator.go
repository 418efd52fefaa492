package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Region identifies one of the independently-operated country-scoped
// database partitions.
type Region string

const (
	RegionKorea  Region = "korea"
	RegionJapan  Region = "japan"
	RegionUS     Region = "us"
	RegionTaiwan Region = "taiwan"
)

// AllRegions lists every known region in display order. Aggregate
// results always carry an entry for each of these, configured or not.
var AllRegions = []Region{RegionKorea, RegionJapan, RegionUS, RegionTaiwan}

// ParseRegion resolves a region name including the short forms used by
// the web client ("jp", "usa", "tw").
func ParseRegion(s string) (Region, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "korea", "kr":
		return RegionKorea, nil
	case "japan", "jp":
		return RegionJapan, nil
	case "us", "usa":
		return RegionUS, nil
	case "taiwan", "tw":
		return RegionTaiwan, nil
	}
	return "", eris.Errorf("model: unknown region %q", s)
}

// RawRecord is a row as returned by a regional store. Column names vary
// per region and table; normalization resolves them to Creator fields.
type RawRecord map[string]any

// Creator is the canonical creator record shared by every region.
// Extra carries source columns not covered by normalization so display
// code can still reach them.
type Creator struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	ProfileImage       string    `json:"profile_image"`
	InstagramURL       string    `json:"instagram_url"`
	InstagramFollowers int64     `json:"instagram_followers"`
	YouTubeURL         string    `json:"youtube_url"`
	YouTubeSubscribers int64     `json:"youtube_subscribers"`
	TikTokURL          string    `json:"tiktok_url"`
	TikTokFollowers    int64     `json:"tiktok_followers"`
	Region             Region    `json:"region"`
	CreatedAt          time.Time `json:"created_at,omitzero"`
	Extra              RawRecord `json:"extra,omitempty"`
}

// TotalFollowers sums reach across the three platforms.
func (c Creator) TotalFollowers() int64 {
	return c.InstagramFollowers + c.YouTubeSubscribers + c.TikTokFollowers
}

// AggregateResult is the merged view over all regions. ByRegion holds
// an entry for every region in AllRegions, empty when the region is
// unconfigured or its fetch failed.
type AggregateResult struct {
	ByRegion map[Region][]Creator `json:"by_region"`
	Counts   map[Region]int       `json:"counts"`
	Total    int                  `json:"total"`
}

// NewAggregateResult returns an empty result pre-seeded with every
// known region.
func NewAggregateResult() *AggregateResult {
	r := &AggregateResult{
		ByRegion: make(map[Region][]Creator, len(AllRegions)),
		Counts:   make(map[Region]int, len(AllRegions)),
	}
	for _, region := range AllRegions {
		r.ByRegion[region] = []Creator{}
		r.Counts[region] = 0
	}
	return r
}

// All flattens the per-region sequences in AllRegions order.
func (r *AggregateResult) All() []Creator {
	out := make([]Creator, 0, r.Total)
	for _, region := range AllRegions {
		out = append(out, r.ByRegion[region]...)
	}
	return out
}

// CreatorStats summarizes the directory for the admin dashboard.
type CreatorStats struct {
	Total      int            `json:"total"`
	ByRegion   map[Region]int `json:"by_region"`
	ByPlatform map[string]int `json:"by_platform"`
}
