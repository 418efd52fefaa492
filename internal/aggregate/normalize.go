package aggregate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// NormalizeRecord resolves a raw regional row into the canonical
// Creator shape. For each canonical field the ordered alias chain is
// walked and the first non-null, non-empty value wins. Source columns
// not consumed by any alias are kept in Extra for display code.
//
// Normalization is idempotent: feeding a canonical record back through
// produces the same canonical fields.
func NormalizeRecord(raw model.RawRecord, region model.Region) model.Creator {
	c := model.Creator{Region: region}
	if raw == nil {
		return c
	}

	c.ID = stringField(raw, profileAliases[fieldID])
	c.Name = CleanHandle(stringField(raw, profileAliases[fieldName]))
	c.Email = stringField(raw, profileAliases[fieldEmail])
	c.Phone = CleanPhone(stringField(raw, profileAliases[fieldPhone]))
	c.ProfileImage = stringField(raw, profileAliases[fieldProfileImage])
	c.InstagramURL = InstagramURL(stringField(raw, profileAliases[fieldInstagramURL]))
	c.InstagramFollowers = intField(raw, profileAliases[fieldInstagramFollowers])
	c.YouTubeURL = YouTubeURL(stringField(raw, profileAliases[fieldYouTubeURL]))
	c.YouTubeSubscribers = intField(raw, profileAliases[fieldYouTubeSubscribers])
	c.TikTokURL = TikTokURL(stringField(raw, profileAliases[fieldTikTokURL]))
	c.TikTokFollowers = intField(raw, profileAliases[fieldTikTokFollowers])
	c.CreatedAt = timeField(raw, profileAliases[fieldCreatedAt])

	consumed := profileAliases.consumedColumns()
	for col, v := range raw {
		if consumed[col] || v == nil {
			continue
		}
		if c.Extra == nil {
			c.Extra = model.RawRecord{}
		}
		c.Extra[col] = v
	}

	return c
}

// firstNonEmpty walks an alias chain and returns the first value that
// is neither nil nor a blank string.
func firstNonEmpty(raw model.RawRecord, aliases []string) any {
	for _, col := range aliases {
		v, ok := raw[col]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func stringField(raw model.RawRecord, aliases []string) string {
	v := firstNonEmpty(raw, aliases)
	if v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// intField coerces numeric follower counts that arrive as int, float,
// or formatted string depending on the region's column type.
func intField(raw model.RawRecord, aliases []string) int64 {
	v := firstNonEmpty(raw, aliases)
	switch n := v.(type) {
	case nil:
		return 0
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		s := strings.ReplaceAll(width.Fold.String(strings.TrimSpace(n)), ",", "")
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func timeField(raw model.RawRecord, aliases []string) time.Time {
	v := firstNonEmpty(raw, aliases)
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

// CleanPhone folds full-width digits (common in Japan and Taiwan
// profile rows) to ASCII and trims whitespace. Formatting characters
// are kept as entered.
func CleanPhone(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}

// CleanHandle NFC-normalizes and width-folds a display name or handle
// so visually identical CJK input compares equal across regions. Fold
// maps full-width Latin to ASCII and half-width katakana back to the
// standard forms, leaving ordinary CJK text alone.
func CleanHandle(s string) string {
	return strings.TrimSpace(norm.NFC.String(width.Fold.String(s)))
}

// InstagramURL canonicalizes a raw handle-or-URL into a profile URL.
// Empty input returns "", an http(s) URL passes through unchanged, and
// a bare handle (with or without a leading @) becomes
// https://www.instagram.com/<handle>.
func InstagramURL(s string) string {
	return platformURL(s, "https://www.instagram.com/", false)
}

// YouTubeURL canonicalizes a raw handle-or-URL into a channel URL of
// the form https://www.youtube.com/@<handle>.
func YouTubeURL(s string) string {
	return platformURL(s, "https://www.youtube.com/", true)
}

// TikTokURL canonicalizes a raw handle-or-URL into a profile URL of the
// form https://www.tiktok.com/@<handle>.
func TikTokURL(s string) string {
	return platformURL(s, "https://www.tiktok.com/", true)
}

func platformURL(s, base string, atPath bool) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	handle := CleanHandle(strings.TrimPrefix(s, "@"))
	if handle == "" {
		return ""
	}
	if atPath {
		return base + "@" + handle
	}
	return base + handle
}
