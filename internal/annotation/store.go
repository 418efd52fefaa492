package annotation

import (
	"context"
	"io"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// FeedbackStore is the persistence surface a review session needs. The
// central store satisfies it; tests use in-memory fakes.
type FeedbackStore interface {
	ListFeedback(ctx context.Context, submissionID string, version int) ([]model.Feedback, error)
	InsertFeedback(ctx context.Context, fb *model.Feedback) error
	UpdateFeedbackBox(ctx context.Context, id string, box model.AnnotationBox) error
	DeleteFeedback(ctx context.Context, id string) error
	AppendReply(ctx context.Context, id string, reply model.Reply) error
}

// StatusUpdater records the review-status side effect of saving
// feedback on a submission.
type StatusUpdater interface {
	SetVideoStatus(ctx context.Context, submissionID string, status model.VideoStatus) error
}

// Uploader stores a feedback attachment and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}
