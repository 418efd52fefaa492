package aggregate

import (
	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// SupplementSource names a region's secondary table used to backfill
// canonical fields the primary fetch left empty, keyed by a creator
// identifier column.
type SupplementSource struct {
	Table    string `yaml:"table" mapstructure:"table"`
	KeyField string `yaml:"key_field" mapstructure:"key_field"`
}

// DefaultSupplements mirrors the production deployment: only the Korea
// project keeps SNS and contact data in a separate applications table.
func DefaultSupplements() map[model.Region]SupplementSource {
	return map[model.Region]SupplementSource{
		model.RegionKorea: {Table: "applications", KeyField: "user_id"},
	}
}

// BuildSupplementIndex keys supplement rows by the given identifier
// column. When multiple rows share a key the first seen wins, matching
// the "most recent application first" ordering of the fetch.
func BuildSupplementIndex(rows []model.RawRecord, keyField string) map[string]model.RawRecord {
	index := make(map[string]model.RawRecord, len(rows))
	for _, row := range rows {
		key := stringField(row, []string{keyField})
		if key == "" {
			continue
		}
		if _, seen := index[key]; seen {
			continue
		}
		index[key] = row
	}
	return index
}

// FillFromSupplement fills only the empty canonical fields of a record
// from its matching supplement row. Fields already resolved by the
// primary fetch are never overwritten. Records with no matching row
// come back unchanged.
func FillFromSupplement(c model.Creator, index map[string]model.RawRecord) model.Creator {
	row, ok := index[c.ID]
	if !ok {
		return c
	}

	if c.Name == "" {
		c.Name = CleanHandle(stringField(row, supplementAliases[fieldName]))
	}
	if c.Email == "" {
		c.Email = stringField(row, supplementAliases[fieldEmail])
	}
	if c.Phone == "" {
		c.Phone = CleanPhone(stringField(row, supplementAliases[fieldPhone]))
	}
	if c.InstagramURL == "" {
		c.InstagramURL = InstagramURL(stringField(row, supplementAliases[fieldInstagramURL]))
	}
	if c.InstagramFollowers == 0 {
		c.InstagramFollowers = intField(row, supplementAliases[fieldInstagramFollowers])
	}
	if c.YouTubeURL == "" {
		c.YouTubeURL = YouTubeURL(stringField(row, supplementAliases[fieldYouTubeURL]))
	}
	if c.YouTubeSubscribers == 0 {
		c.YouTubeSubscribers = intField(row, supplementAliases[fieldYouTubeSubscribers])
	}
	if c.TikTokURL == "" {
		c.TikTokURL = TikTokURL(stringField(row, supplementAliases[fieldTikTokURL]))
	}
	if c.TikTokFollowers == 0 {
		c.TikTokFollowers = intField(row, supplementAliases[fieldTikTokFollowers])
	}

	return c
}
