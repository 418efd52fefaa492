// Package store is the central persistence layer: video feedback with
// threaded replies, submission review status, and the creator snapshot
// table refreshed by the sync command. Postgres backs production;
// SQLite serves local development and tests.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// ErrNotFound reports an operation against a feedback id that does not
// exist. Both drivers return it (wrapped), so callers branch with
// errors.Is instead of matching message text.
var ErrNotFound = eris.New("store: feedback not found")

// Store defines the persistence interface for the platform core.
type Store interface {
	// Feedback
	ListFeedback(ctx context.Context, submissionID string, version int) ([]model.Feedback, error)
	InsertFeedback(ctx context.Context, fb *model.Feedback) error
	UpdateFeedbackBox(ctx context.Context, id string, box model.AnnotationBox) error
	DeleteFeedback(ctx context.Context, id string) error
	AppendReply(ctx context.Context, id string, reply model.Reply) error

	// Submissions
	SetVideoStatus(ctx context.Context, submissionID string, status model.VideoStatus) error

	// Creator snapshots
	UpsertCreators(ctx context.Context, creators []model.Creator) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
