package annotation

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// memStore is an in-memory FeedbackStore with togglable failures.
type memStore struct {
	feedbacks map[string]*model.Feedback
	failWith  error
}

func newMemStore() *memStore {
	return &memStore{feedbacks: map[string]*model.Feedback{}}
}

func (m *memStore) ListFeedback(_ context.Context, submissionID string, version int) ([]model.Feedback, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []model.Feedback
	for _, fb := range m.feedbacks {
		if fb.SubmissionID == submissionID && fb.VideoVersion == version {
			out = append(out, *fb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (m *memStore) InsertFeedback(_ context.Context, fb *model.Feedback) error {
	if m.failWith != nil {
		return m.failWith
	}
	clone := *fb
	m.feedbacks[fb.ID] = &clone
	return nil
}

func (m *memStore) UpdateFeedbackBox(_ context.Context, id string, box model.AnnotationBox) error {
	if m.failWith != nil {
		return m.failWith
	}
	fb, ok := m.feedbacks[id]
	if !ok {
		return ErrNotFound
	}
	fb.Box = box
	return nil
}

func (m *memStore) DeleteFeedback(_ context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	delete(m.feedbacks, id)
	return nil
}

func (m *memStore) AppendReply(_ context.Context, id string, reply model.Reply) error {
	if m.failWith != nil {
		return m.failWith
	}
	fb, ok := m.feedbacks[id]
	if !ok {
		return ErrNotFound
	}
	fb.Replies = append(fb.Replies, reply)
	return nil
}

type statusRecorder struct {
	submissionID string
	status       model.VideoStatus
	calls        int
}

func (r *statusRecorder) SetVideoStatus(_ context.Context, submissionID string, status model.VideoStatus) error {
	r.submissionID = submissionID
	r.status = status
	r.calls++
	return nil
}

type fakeUploader struct {
	uploaded []string
}

func (f *fakeUploader) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	f.uploaded = append(f.uploaded, name)
	return "https://files.example.com/" + name, nil
}

func newTestSession(t *testing.T, role model.Role) (*Session, *memStore, *fakeTransport, *statusRecorder) {
	t.Helper()
	store := newMemStore()
	transport := &fakeTransport{duration: 120}
	status := &statusRecorder{}
	s, err := NewSession(context.Background(), SessionConfig{
		SubmissionID: "sub-1",
		Role:         role,
		Author:       "Reviewer Kim",
		Version:      model.VideoVersion{Version: 2, URL: "https://cdn.example.com/v2.mp4"},
		Transport:    transport,
		Store:        store,
		Uploader:     &fakeUploader{},
		Status:       status,
	})
	require.NoError(t, err)
	return s, store, transport, status
}

func TestBeginDraw_RoleAndPause(t *testing.T) {
	creator, _, _, _ := newTestSession(t, model.RoleCreator)
	assert.ErrorIs(t, creator.BeginDraw(Point{X: 0.5, Y: 0.5}), ErrRoleForbidden)

	company, _, transport, _ := newTestSession(t, model.RoleCompany)
	transport.playing = true
	require.NoError(t, company.BeginDraw(Point{X: 0.5, Y: 0.5}))
	assert.False(t, transport.playing, "drawing must pause playback")
	assert.Equal(t, Drawing, company.State())
}

func TestDrawLifecycle_DegenerateBoxDiscarded(t *testing.T) {
	s, _, _, _ := newTestSession(t, model.RoleCompany)

	require.NoError(t, s.BeginDraw(Point{X: 0.5, Y: 0.5}))
	s.UpdateDraw(Point{X: 0.51, Y: 0.51})

	assert.Nil(t, s.EndDraw())
	assert.Equal(t, Idle, s.State())
	assert.Nil(t, s.Marker())
}

func TestDrawLifecycle_Promoted(t *testing.T) {
	s, _, transport, _ := newTestSession(t, model.RoleCompany)
	transport.current = 12.5

	require.NoError(t, s.BeginDraw(Point{X: 0.2, Y: 0.2}))
	s.UpdateDraw(Point{X: 0.3, Y: 0.25})
	s.UpdateDraw(Point{X: 0.25, Y: 0.25})
	s.UpdateDraw(Point{X: 0.25, Y: 0.25}) // repeated pointer events are idempotent

	marker := s.EndDraw()
	require.NotNil(t, marker)
	assert.Equal(t, PendingSave, s.State())
	assert.InDelta(t, 0.05, marker.Box.Width, 1e-9)
	assert.Equal(t, 12.5, marker.Timestamp)
	assert.Equal(t, 2, marker.VideoVersion)
}

func TestSaveFeedback(t *testing.T) {
	s, store, transport, status := newTestSession(t, model.RoleCompany)
	transport.current = 12.5

	require.NoError(t, s.BeginDraw(Point{X: 0.2, Y: 0.2}))
	s.UpdateDraw(Point{X: 0.4, Y: 0.4})
	require.NotNil(t, s.EndDraw())

	_, err := s.SaveFeedback(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyComment)
	assert.Equal(t, PendingSave, s.State(), "validation failure keeps the marker")

	fb, err := s.SaveFeedback(context.Background(), "logo is cropped here", &Attachment{
		Name:    "reference.png",
		Content: strings.NewReader("png-bytes"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, fb.ID)
	assert.Equal(t, "https://files.example.com/reference.png", fb.AttachmentURL)
	assert.Equal(t, 12.5, fb.Timestamp)

	assert.Equal(t, Idle, s.State())
	assert.Nil(t, s.Marker())
	assert.Len(t, store.feedbacks, 1)

	assert.Equal(t, 1, status.calls)
	assert.Equal(t, "sub-1", status.submissionID)
	assert.Equal(t, model.VideoStatusRevisionRequested, status.status)
}

func TestSaveFeedback_FailureKeepsMarker(t *testing.T) {
	s, store, _, status := newTestSession(t, model.RoleCompany)

	require.NoError(t, s.BeginDraw(Point{X: 0.2, Y: 0.2}))
	s.UpdateDraw(Point{X: 0.4, Y: 0.4})
	require.NotNil(t, s.EndDraw())

	store.failWith = assert.AnError
	_, err := s.SaveFeedback(context.Background(), "try again later", nil)
	require.Error(t, err)

	assert.Equal(t, PendingSave, s.State())
	assert.NotNil(t, s.Marker(), "failed save must leave the marker for retry")
	assert.Zero(t, status.calls)

	store.failWith = nil
	_, err = s.SaveFeedback(context.Background(), "try again later", nil)
	require.NoError(t, err)
	assert.Len(t, store.feedbacks, 1)
}

func TestResizeExistingFeedback(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.InsertFeedback(context.Background(), &model.Feedback{
		ID:           "f1",
		SubmissionID: "sub-1",
		VideoVersion: 2,
		Timestamp:    10,
		Box:          model.AnnotationBox{X: 0.2, Y: 0.2, Width: 0.4, Height: 0.4},
	}))
	transport := &fakeTransport{duration: 120, current: 10}
	s, err := NewSession(context.Background(), SessionConfig{
		SubmissionID: "sub-1",
		Role:         model.RoleCompany,
		Author:       "Reviewer Kim",
		Version:      model.VideoVersion{Version: 2},
		Transport:    transport,
		Store:        store,
	})
	require.NoError(t, err)

	// Pointer-down on the SE handle of the visible feedback enters
	// Resizing instead of Drawing.
	require.NoError(t, s.BeginDraw(Point{X: 0.6, Y: 0.6}))
	assert.Equal(t, Resizing, s.State())

	s.UpdateDraw(Point{X: 0.7, Y: 0.7})
	require.NoError(t, s.EndResize(context.Background()))

	assert.Equal(t, Idle, s.State())
	assert.InDelta(t, 0.5, store.feedbacks["f1"].Box.Width, 1e-9)
	assert.InDelta(t, 0.5, s.Feedbacks()[0].Box.Width, 1e-9)
}

func TestDeleteFeedback_RoleEnforced(t *testing.T) {
	s, store, _, _ := newTestSession(t, model.RoleCompany)
	require.NoError(t, s.BeginDraw(Point{X: 0.2, Y: 0.2}))
	s.UpdateDraw(Point{X: 0.4, Y: 0.4})
	require.NotNil(t, s.EndDraw())
	fb, err := s.SaveFeedback(context.Background(), "remove the banner", nil)
	require.NoError(t, err)

	creator, _, _, _ := newTestSession(t, model.RoleCreator)
	assert.ErrorIs(t, creator.DeleteFeedback(context.Background(), fb.ID), ErrRoleForbidden)

	require.NoError(t, s.DeleteFeedback(context.Background(), fb.ID))
	assert.Empty(t, store.feedbacks)
	assert.Empty(t, s.Feedbacks())
}

func TestAddReply(t *testing.T) {
	s, store, _, _ := newTestSession(t, model.RoleCompany)
	require.NoError(t, s.BeginDraw(Point{X: 0.2, Y: 0.2}))
	s.UpdateDraw(Point{X: 0.4, Y: 0.4})
	require.NotNil(t, s.EndDraw())
	fb, err := s.SaveFeedback(context.Background(), "color grading is off", nil)
	require.NoError(t, err)

	_, err = s.AddReply(context.Background(), fb.ID, "  ")
	assert.ErrorIs(t, err, ErrEmptyComment)

	_, err = s.AddReply(context.Background(), "missing", "hello?")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.AddReply(context.Background(), fb.ID, "will fix in v3")
	require.NoError(t, err)
	second, err := s.AddReply(context.Background(), fb.ID, "fixed now")
	require.NoError(t, err)

	replies := store.feedbacks[fb.ID].Replies
	require.Len(t, replies, 2)
	assert.Equal(t, first.Comment, replies[0].Comment)
	assert.Equal(t, second.Comment, replies[1].Comment)
}

func TestSelectVersion_FiltersNotDeletes(t *testing.T) {
	store := newMemStore()
	for _, fb := range []*model.Feedback{
		{ID: "v1-a", SubmissionID: "sub-1", VideoVersion: 1, Timestamp: 5},
		{ID: "v2-a", SubmissionID: "sub-1", VideoVersion: 2, Timestamp: 8},
	} {
		require.NoError(t, store.InsertFeedback(context.Background(), fb))
	}
	s, err := NewSession(context.Background(), SessionConfig{
		SubmissionID: "sub-1",
		Role:         model.RoleCreator,
		Author:       "Creator Lee",
		Version:      model.VideoVersion{Version: 2},
		Transport:    &fakeTransport{duration: 60},
		Store:        store,
	})
	require.NoError(t, err)
	require.Len(t, s.Feedbacks(), 1)
	assert.Equal(t, "v2-a", s.Feedbacks()[0].ID)

	require.NoError(t, s.SelectVersion(context.Background(), model.VideoVersion{Version: 1}))
	require.Len(t, s.Feedbacks(), 1)
	assert.Equal(t, "v1-a", s.Feedbacks()[0].ID)
	assert.Equal(t, Idle, s.State())

	// Both versions still exist in the store.
	assert.Len(t, store.feedbacks, 2)
}

func TestVisibleNow_PausedOnly(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.InsertFeedback(context.Background(), &model.Feedback{
		ID: "f1", SubmissionID: "sub-1", VideoVersion: 1, Timestamp: 10,
	}))
	transport := &fakeTransport{duration: 60, current: 10.2}
	s, err := NewSession(context.Background(), SessionConfig{
		SubmissionID: "sub-1",
		Role:         model.RoleCreator,
		Author:       "Creator Lee",
		Version:      model.VideoVersion{Version: 1},
		Transport:    transport,
		Store:        store,
	})
	require.NoError(t, err)

	assert.Len(t, s.VisibleNow(), 1)

	transport.playing = true
	assert.Empty(t, s.VisibleNow())
}
