// Package aggregate reconciles creator records from the regional
// databases into one canonical view: concurrent fan-out over every
// configured region, alias-table field normalization, and backfill from
// each region's secondary application table.
package aggregate

// aliasTable maps each canonical field to the ordered list of source
// column names it may arrive under. Resolution takes the first
// non-null, non-empty value. The canonical column name always heads its
// own chain, which is what makes normalization idempotent: a record
// already in canonical shape resolves to itself.
type aliasTable map[string][]string

// Canonical field keys.
const (
	fieldID                 = "id"
	fieldName               = "name"
	fieldEmail              = "email"
	fieldPhone              = "phone"
	fieldProfileImage       = "profile_image"
	fieldInstagramURL       = "instagram_url"
	fieldInstagramFollowers = "instagram_followers"
	fieldYouTubeURL         = "youtube_url"
	fieldYouTubeSubscribers = "youtube_subscribers"
	fieldTikTokURL          = "tiktok_url"
	fieldTikTokFollowers    = "tiktok_followers"
	fieldCreatedAt          = "created_at"
)

// profileAliases covers the primary per-region creator tables
// (user_profiles). The variants reflect what each region's schema
// actually calls these columns.
var profileAliases = aliasTable{
	fieldID:                 {"id", "user_id"},
	fieldName:               {"name", "channel_name", "creator_name", "applicant_name"},
	fieldEmail:              {"email", "contact_email"},
	fieldPhone:              {"phone", "phone_number", "mobile"},
	fieldProfileImage:       {"profile_image", "profile_image_url", "avatar_url"},
	fieldInstagramURL:       {"instagram_url", "instagram", "instagram_handle", "instagram_id"},
	fieldInstagramFollowers: {"instagram_followers", "instagram_follower_count", "followers"},
	fieldYouTubeURL:         {"youtube_url", "youtube", "youtube_channel_url", "youtube_channel"},
	fieldYouTubeSubscribers: {"youtube_subscribers", "youtube_subscriber_count", "subscribers"},
	fieldTikTokURL:          {"tiktok_url", "tiktok", "tiktok_handle"},
	fieldTikTokFollowers:    {"tiktok_followers", "tiktok_follower_count"},
	fieldCreatedAt:          {"created_at", "joined_at"},
}

// supplementAliases covers the secondary applications tables used for
// backfill. Kept separate because application rows name SNS columns
// differently from profiles.
var supplementAliases = aliasTable{
	fieldName:               {"name", "applicant_name", "creator_name"},
	fieldEmail:              {"email"},
	fieldPhone:              {"phone", "phone_number"},
	fieldInstagramURL:       {"instagram_url", "instagram_handle"},
	fieldInstagramFollowers: {"instagram_followers", "followers"},
	fieldYouTubeURL:         {"youtube_url", "youtube_channel"},
	fieldYouTubeSubscribers: {"youtube_subscribers"},
	fieldTikTokURL:          {"tiktok_url", "tiktok_handle"},
	fieldTikTokFollowers:    {"tiktok_followers"},
}

// consumedColumns reports every source column an alias table may read,
// so normalization can decide which raw columns are passthrough.
func (t aliasTable) consumedColumns() map[string]bool {
	out := make(map[string]bool)
	for _, aliases := range t {
		for _, col := range aliases {
			out[col] = true
		}
	}
	return out
}
