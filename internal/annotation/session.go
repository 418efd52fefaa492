package annotation

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// State is the drawing state of a review session.
type State int

const (
	// Idle: no marker in progress.
	Idle State = iota
	// Drawing: pointer-down started a new box and the drag is live.
	Drawing
	// PendingSave: the drag ended with a valid box; the comment form is
	// open and the marker waits for SaveFeedback or Cancel.
	PendingSave
	// Resizing: a corner handle of a persisted feedback is being
	// dragged.
	Resizing
)

var (
	ErrRoleForbidden = eris.New("annotation: operation requires the reviewing role")
	ErrInvalidState  = eris.New("annotation: operation not valid in current state")
	ErrEmptyComment  = eris.New("annotation: comment must not be blank")
	ErrNotFound      = eris.New("annotation: feedback not found")
)

// ActiveMarker is an in-progress, not yet persisted annotation.
type ActiveMarker struct {
	Anchor       Point
	Box          model.AnnotationBox
	Timestamp    float64
	VideoVersion int
}

// Attachment is an optional file saved alongside a feedback comment.
type Attachment struct {
	Name    string
	Content io.Reader
}

// resizeDrag tracks an in-flight corner drag on a persisted feedback.
// originalBox and start never change during the drag so every
// pointer-move recomputes the box from scratch.
type resizeDrag struct {
	feedbackID  string
	handle      Handle
	originalBox model.AnnotationBox
	start       Point
	current     model.AnnotationBox
}

// SessionConfig wires a review session to its collaborators.
type SessionConfig struct {
	SubmissionID string
	Role         model.Role
	Author       string
	Version      model.VideoVersion
	Transport    Transport
	Store        FeedbackStore
	Uploader     Uploader
	Status       StatusUpdater

	// BoxTolerance is the visibility window for box markers.
	// Zero means DefaultBoxTolerance.
	BoxTolerance float64
}

// Session drives one review screen: it owns the loaded feedback list,
// the drawing state machine, and the persistence calls behind each
// user interaction. Sessions are single-goroutine by design, mirroring
// the event-driven UI that calls them.
type Session struct {
	submissionID string
	role         model.Role
	author       string
	version      model.VideoVersion
	transport    Transport
	store        FeedbackStore
	uploader     Uploader
	status       StatusUpdater
	tolerance    float64

	feedbacks []model.Feedback
	state     State
	marker    *ActiveMarker
	resize    *resizeDrag
}

// NewSession loads the feedback for the selected version and returns a
// session in Idle state.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.Store == nil {
		return nil, eris.New("annotation: store is required")
	}
	if cfg.Transport == nil {
		return nil, eris.New("annotation: transport is required")
	}
	tolerance := cfg.BoxTolerance
	if tolerance <= 0 {
		tolerance = DefaultBoxTolerance
	}
	s := &Session{
		submissionID: cfg.SubmissionID,
		role:         cfg.Role,
		author:       cfg.Author,
		version:      cfg.Version,
		transport:    cfg.Transport,
		store:        cfg.Store,
		uploader:     cfg.Uploader,
		status:       cfg.Status,
		tolerance:    tolerance,
	}
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) reload(ctx context.Context) error {
	feedbacks, err := s.store.ListFeedback(ctx, s.submissionID, s.version.Version)
	if err != nil {
		return eris.Wrap(err, "annotation: load feedback")
	}
	s.feedbacks = feedbacks
	return nil
}

// State reports the current drawing state.
func (s *Session) State() State { return s.state }

// Marker returns the in-progress marker, or nil outside Drawing and
// PendingSave.
func (s *Session) Marker() *ActiveMarker { return s.marker }

// Feedbacks returns the loaded feedback for the selected version,
// ordered by timestamp.
func (s *Session) Feedbacks() []model.Feedback { return s.feedbacks }

// Version returns the currently selected video version.
func (s *Session) Version() model.VideoVersion { return s.version }

// VisibleNow returns the feedback visible at the current playhead.
// During a resize drag the dragged feedback carries its live box.
func (s *Session) VisibleNow() []model.Feedback {
	visible := VisibleAt(s.transport.CurrentTime(), !s.transport.IsPlaying(), s.feedbacks, s.tolerance)
	if s.state != Resizing || s.resize == nil {
		return visible
	}
	for i := range visible {
		if visible[i].ID == s.resize.feedbackID {
			visible[i].Box = s.resize.current
		}
	}
	return visible
}

// BeginDraw handles pointer-down on the video frame. Drawing requires
// the reviewing role. Playback is paused as a side effect, so a box can
// never be created while the video runs. When the pointer lands on a
// corner handle of a currently visible feedback the session enters
// Resizing on that feedback instead of starting a new box.
func (s *Session) BeginDraw(p Point) error {
	if s.role != model.RoleCompany {
		return ErrRoleForbidden
	}
	if s.state != Idle {
		return ErrInvalidState
	}
	if s.transport.IsPlaying() {
		s.transport.Pause()
	}
	p = clampPoint(p)

	for _, fb := range VisibleAt(s.transport.CurrentTime(), true, s.feedbacks, s.tolerance) {
		if h := HandleAt(p, fb.Box); h != HandleNone {
			s.state = Resizing
			s.resize = &resizeDrag{
				feedbackID:  fb.ID,
				handle:      h,
				originalBox: fb.Box,
				start:       p,
				current:     fb.Box,
			}
			return nil
		}
	}

	s.state = Drawing
	s.marker = &ActiveMarker{
		Anchor:       p,
		Box:          model.AnnotationBox{X: p.X, Y: p.Y},
		Timestamp:    s.transport.CurrentTime(),
		VideoVersion: s.version.Version,
	}
	return nil
}

// UpdateDraw handles pointer-move. Each call recomputes the full box
// from the anchor (or the resize origin) and the current pointer, so
// repeated calls with the same pointer are idempotent.
func (s *Session) UpdateDraw(p Point) {
	p = clampPoint(p)
	switch s.state {
	case Drawing:
		s.marker.Box = spanBox(s.marker.Anchor, p)
	case Resizing:
		s.resize.current = ResizeBy(s.resize.originalBox, s.resize.handle, p.X-s.resize.start.X, p.Y-s.resize.start.Y)
	}
}

// EndDraw handles pointer-up while drawing. A box exceeding the minimum
// size in both dimensions is promoted to PendingSave and returned;
// anything smaller is discarded and the session returns to Idle.
func (s *Session) EndDraw() *ActiveMarker {
	if s.state != Drawing {
		return nil
	}
	if s.marker.Box.Width <= MinBoxSize || s.marker.Box.Height <= MinBoxSize {
		s.marker = nil
		s.state = Idle
		return nil
	}
	s.state = PendingSave
	return s.marker
}

// Cancel abandons the pending marker without saving.
func (s *Session) Cancel() {
	s.marker = nil
	s.resize = nil
	s.state = Idle
}

// SaveFeedback persists the pending marker with its comment and
// optional attachment, then flags the submission for revision. On any
// error the marker is left intact so the user can retry without losing
// the drawn box or re-entering text.
func (s *Session) SaveFeedback(ctx context.Context, comment string, att *Attachment) (*model.Feedback, error) {
	if s.role != model.RoleCompany {
		return nil, ErrRoleForbidden
	}
	if s.state != PendingSave || s.marker == nil {
		return nil, ErrInvalidState
	}
	if strings.TrimSpace(comment) == "" {
		return nil, ErrEmptyComment
	}

	fb := model.Feedback{
		ID:           uuid.NewString(),
		SubmissionID: s.submissionID,
		VideoVersion: s.marker.VideoVersion,
		Timestamp:    s.marker.Timestamp,
		Box:          s.marker.Box,
		Comment:      strings.TrimSpace(comment),
		Author:       s.author,
		Replies:      []model.Reply{},
		CreatedAt:    time.Now().UTC(),
	}

	if att != nil {
		if s.uploader == nil {
			return nil, eris.New("annotation: no uploader configured for attachment")
		}
		url, err := s.uploader.Upload(ctx, att.Name, att.Content)
		if err != nil {
			return nil, eris.Wrap(err, "annotation: upload attachment")
		}
		fb.AttachmentURL = url
		fb.AttachmentName = att.Name
	}

	if err := s.store.InsertFeedback(ctx, &fb); err != nil {
		return nil, eris.Wrap(err, "annotation: save feedback")
	}

	// The feedback is durable at this point; a failed status update is
	// reported but does not undo the save.
	if s.status != nil {
		if err := s.status.SetVideoStatus(ctx, s.submissionID, model.VideoStatusRevisionRequested); err != nil {
			zap.L().Warn("annotation: status update failed",
				zap.String("submission_id", s.submissionID),
				zap.Error(err),
			)
		}
	}

	s.feedbacks = append(s.feedbacks, fb)
	sort.SliceStable(s.feedbacks, func(i, j int) bool {
		return s.feedbacks[i].Timestamp < s.feedbacks[j].Timestamp
	})
	s.marker = nil
	s.state = Idle
	return &fb, nil
}

// EndResize handles pointer-up after a corner drag, persisting the new
// box. On persistence failure the in-memory box reverts to its original
// geometry and the error is returned.
func (s *Session) EndResize(ctx context.Context) error {
	if s.state != Resizing || s.resize == nil {
		return ErrInvalidState
	}
	drag := s.resize
	s.resize = nil
	s.state = Idle

	if err := s.store.UpdateFeedbackBox(ctx, drag.feedbackID, drag.current); err != nil {
		return eris.Wrap(err, "annotation: update box")
	}
	for i := range s.feedbacks {
		if s.feedbacks[i].ID == drag.feedbackID {
			s.feedbacks[i].Box = drag.current
			break
		}
	}
	return nil
}

// DeleteFeedback permanently removes a feedback and its replies.
// Reviewing role only; confirmation is the UI's concern.
func (s *Session) DeleteFeedback(ctx context.Context, id string) error {
	if s.role != model.RoleCompany {
		return ErrRoleForbidden
	}
	if err := s.store.DeleteFeedback(ctx, id); err != nil {
		return eris.Wrap(err, "annotation: delete feedback")
	}
	for i := range s.feedbacks {
		if s.feedbacks[i].ID == id {
			s.feedbacks = append(s.feedbacks[:i], s.feedbacks[i+1:]...)
			break
		}
	}
	return nil
}

// AddReply appends a threaded reply to a feedback. Either role may
// reply; the comment must not be blank.
func (s *Session) AddReply(ctx context.Context, id, comment string) (*model.Reply, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, ErrEmptyComment
	}
	if strings.TrimSpace(s.author) == "" {
		return nil, eris.New("annotation: reply author must not be blank")
	}

	var target *model.Feedback
	for i := range s.feedbacks {
		if s.feedbacks[i].ID == id {
			target = &s.feedbacks[i]
			break
		}
	}
	if target == nil {
		return nil, ErrNotFound
	}

	reply := model.Reply{
		Author:    s.author,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendReply(ctx, id, reply); err != nil {
		return nil, eris.Wrap(err, "annotation: add reply")
	}
	target.Replies = append(target.Replies, reply)
	return &reply, nil
}

// SelectVersion switches the session to another uploaded version,
// reloading its feedback and dropping any in-progress drag. Feedback
// for other versions stays persisted; this is a filter, not a delete.
func (s *Session) SelectVersion(ctx context.Context, v model.VideoVersion) error {
	s.Cancel()
	s.version = v
	return s.reload(ctx)
}

// Close tears the session down on navigation away: any in-flight drag
// is detached so no pointer state leaks into the next session.
func (s *Session) Close() {
	s.Cancel()
}
