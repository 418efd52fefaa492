package annotation

import "github.com/mktbiz-byte/cnec-platform/internal/model"

// Tolerances observed by the review screen: the tight window renders
// box markers, the wide one decides whether a comment is "roughly
// current" in the side panel. Both are parameters, never hardcoded at
// call sites.
const (
	DefaultBoxTolerance     = 0.5
	DefaultCommentTolerance = 2.0
)

// VisibleAt returns the feedback entries whose timestamp lies within
// tolerance seconds of now. Annotations are shown only while playback
// is paused; during playback the result is always empty.
func VisibleAt(now float64, paused bool, feedbacks []model.Feedback, tolerance float64) []model.Feedback {
	if !paused {
		return nil
	}
	var visible []model.Feedback
	for _, fb := range feedbacks {
		d := fb.Timestamp - now
		if d < 0 {
			d = -d
		}
		if d <= tolerance {
			visible = append(visible, fb)
		}
	}
	return visible
}

// ProjectToTimeline maps a feedback timestamp to its fractional
// position on the seek bar. A zero duration projects to 0.
func ProjectToTimeline(timestamp, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return clamp01(timestamp / duration)
}
