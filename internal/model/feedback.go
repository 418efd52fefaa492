package model

import "time"

// Role distinguishes the two sides of a video review session. Only the
// company side may create, move, resize, or delete feedback; the
// creator side views and replies.
type Role string

const (
	RoleCompany Role = "company"
	RoleCreator Role = "creator"
)

// VideoStatus tracks the review state of a submission.
type VideoStatus string

const (
	VideoStatusPending           VideoStatus = "pending"
	VideoStatusSubmitted         VideoStatus = "submitted"
	VideoStatusRevisionRequested VideoStatus = "revision_requested"
	VideoStatusApproved          VideoStatus = "approved"
	VideoStatusCompleted         VideoStatus = "completed"
)

// VideoVersion is one uploaded media asset. Version numbers increase
// monotonically per submission; the highest version is the current one.
type VideoVersion struct {
	Version int    `json:"version"`
	URL     string `json:"url"`
	Name    string `json:"name"`
}

// AnnotationBox is a rectangle in fractional coordinates relative to the
// video frame, each component in [0,1], so it stays valid across
// rendering sizes.
type AnnotationBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Reply is a threaded response to one Feedback, kept in insertion order.
type Reply struct {
	Author    string    `json:"author"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Feedback is a persisted, timestamped, spatially-anchored comment on a
// specific video version of a submission.
type Feedback struct {
	ID             string        `json:"id"`
	SubmissionID   string        `json:"submission_id"`
	VideoVersion   int           `json:"video_version"`
	Timestamp      float64       `json:"timestamp"`
	Box            AnnotationBox `json:"box"`
	Comment        string        `json:"comment"`
	Author         string        `json:"author"`
	AttachmentURL  string        `json:"attachment_url,omitempty"`
	AttachmentName string        `json:"attachment_name,omitempty"`
	Replies        []Reply       `json:"replies"`
	CreatedAt      time.Time     `json:"created_at"`
}
