package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

func TestBuildSupplementIndex(t *testing.T) {
	rows := []model.RawRecord{
		{"user_id": "u1", "instagram_handle": "@newest"},
		{"user_id": "u1", "instagram_handle": "@older"},
		{"user_id": "u2", "phone_number": "010-2"},
		{"user_id": "", "phone_number": "orphan"},
		{"phone_number": "no key at all"},
	}

	index := BuildSupplementIndex(rows, "user_id")

	assert.Len(t, index, 2)
	assert.Equal(t, "@newest", index["u1"]["instagram_handle"])
	assert.Equal(t, "010-2", index["u2"]["phone_number"])
}

func TestFillFromSupplement_FillsOnlyEmptyFields(t *testing.T) {
	index := map[string]model.RawRecord{
		"u1": {
			"name":             "From Application",
			"phone_number":     "010-9999",
			"instagram_handle": "@from_app",
			"followers":        int64(500),
		},
	}

	c := model.Creator{
		ID:           "u1",
		Name:         "From Profile",
		InstagramURL: "https://www.instagram.com/profile_handle",
	}

	filled := FillFromSupplement(c, index)

	// Already-resolved fields are never overwritten.
	assert.Equal(t, "From Profile", filled.Name)
	assert.Equal(t, "https://www.instagram.com/profile_handle", filled.InstagramURL)

	// Empty fields are backfilled, with the same normalization the
	// primary path applies.
	assert.Equal(t, "010-9999", filled.Phone)
	assert.Equal(t, int64(500), filled.InstagramFollowers)
}

func TestFillFromSupplement_NoMatch(t *testing.T) {
	c := model.Creator{ID: "u-unmatched", Name: "Solo"}
	filled := FillFromSupplement(c, map[string]model.RawRecord{})
	assert.Equal(t, c, filled)
}

func TestFillFromSupplement_NormalizesBackfilledURLs(t *testing.T) {
	index := map[string]model.RawRecord{
		"u1": {"tiktok_handle": "@dancer"},
	}
	filled := FillFromSupplement(model.Creator{ID: "u1"}, index)
	assert.Equal(t, "https://www.tiktok.com/@dancer", filled.TikTokURL)
}
