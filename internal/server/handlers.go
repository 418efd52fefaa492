package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mktbiz-byte/cnec-platform/internal/aggregate"
	"github.com/mktbiz-byte/cnec-platform/internal/annotation"
	"github.com/mktbiz-byte/cnec-platform/internal/model"
	"github.com/mktbiz-byte/cnec-platform/internal/store"
)

// maxAttachmentBytes caps multipart feedback attachments.
const maxAttachmentBytes = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	configured, breakers := s.aggregator.RegionHealth()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"regions":  configured,
		"breakers": breakers,
	})
}

// handleReviewConfig tells the review screen which tolerances and
// geometry limits this deployment runs with.
func (s *Server) handleReviewConfig(w http.ResponseWriter, r *http.Request) {
	boxTol := s.cfg.BoxTolerance
	if boxTol <= 0 {
		boxTol = annotation.DefaultBoxTolerance
	}
	commentTol := s.cfg.CommentTolerance
	if commentTol <= 0 {
		commentTol = annotation.DefaultCommentTolerance
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"box_tolerance_secs":     boxTol,
		"comment_tolerance_secs": commentTol,
		"min_box_size":           annotation.MinBoxSize,
	})
}

func (s *Server) handleListCreators(w http.ResponseWriter, r *http.Request) {
	result, err := s.aggregator.AggregateCreators(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreatorStats(w http.ResponseWriter, r *http.Request) {
	result, err := s.aggregator.AggregateCreators(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, aggregate.Stats(result))
}

func (s *Server) handleCreatorsByRegion(w http.ResponseWriter, r *http.Request) {
	region, err := model.ParseRegion(chi.URLParam(r, "region"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown region")
		return
	}
	writeJSON(w, http.StatusOK, s.aggregator.CreatorsByRegion(r.Context(), region))
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "id")
	version := 1
	if v := r.URL.Query().Get("version"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid version")
			return
		}
		version = parsed
	}

	feedbacks, err := s.store.ListFeedback(r.Context(), submissionID, version)
	if err != nil {
		zap.L().Error("server: list feedback", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list feedback failed")
		return
	}
	if feedbacks == nil {
		feedbacks = []model.Feedback{}
	}
	writeJSON(w, http.StatusOK, feedbacks)
}

type createFeedbackRequest struct {
	VideoVersion int                 `json:"video_version"`
	Timestamp    float64             `json:"timestamp"`
	Box          model.AnnotationBox `json:"box"`
	Comment      string              `json:"comment"`
	Author       string              `json:"author"`
}

// handleCreateFeedback accepts either a JSON body or a multipart form
// with a "payload" JSON field and an optional "attachment" file.
func (s *Server) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "id")

	var req createFeedbackRequest
	var attachmentURL, attachmentName string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxAttachmentBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		if err := json.Unmarshal([]byte(r.FormValue("payload")), &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		file, header, err := r.FormFile("attachment")
		if err == nil {
			defer file.Close()
			if s.uploader == nil {
				writeError(w, http.StatusBadRequest, "attachments not supported")
				return
			}
			url, err := s.uploader.Upload(r.Context(), header.Filename, file)
			if err != nil {
				zap.L().Error("server: upload attachment", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "attachment upload failed")
				return
			}
			attachmentURL = url
			attachmentName = header.Filename
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Comment) == "" {
		writeError(w, http.StatusBadRequest, "comment must not be blank")
		return
	}
	if msg, ok := validateBox(req.Box); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Timestamp < 0 {
		writeError(w, http.StatusBadRequest, "timestamp must not be negative")
		return
	}
	if req.VideoVersion < 1 {
		req.VideoVersion = 1
	}

	fb := model.Feedback{
		ID:             uuid.NewString(),
		SubmissionID:   submissionID,
		VideoVersion:   req.VideoVersion,
		Timestamp:      req.Timestamp,
		Box:            req.Box,
		Comment:        strings.TrimSpace(req.Comment),
		Author:         req.Author,
		AttachmentURL:  attachmentURL,
		AttachmentName: attachmentName,
		Replies:        []model.Reply{},
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.InsertFeedback(r.Context(), &fb); err != nil {
		zap.L().Error("server: insert feedback", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save feedback failed")
		return
	}

	if err := s.store.SetVideoStatus(r.Context(), submissionID, model.VideoStatusRevisionRequested); err != nil {
		zap.L().Warn("server: status update failed",
			zap.String("submission_id", submissionID),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusCreated, fb)
}

func (s *Server) handleUpdateBox(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var box model.AnnotationBox
	if err := json.NewDecoder(r.Body).Decode(&box); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg, ok := validateBox(box); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.store.UpdateFeedbackBox(r.Context(), id, box); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "feedback not found")
			return
		}
		zap.L().Error("server: update box", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update box failed")
		return
	}
	writeJSON(w, http.StatusOK, box)
}

func (s *Server) handleDeleteFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteFeedback(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "feedback not found")
			return
		}
		zap.L().Error("server: delete feedback", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete feedback failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addReplyRequest struct {
	Author  string `json:"author"`
	Comment string `json:"comment"`
}

func (s *Server) handleAddReply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req addReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Author) == "" || strings.TrimSpace(req.Comment) == "" {
		writeError(w, http.StatusBadRequest, "author and comment must not be blank")
		return
	}

	reply := model.Reply{
		Author:    strings.TrimSpace(req.Author),
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendReply(r.Context(), id, reply); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "feedback not found")
			return
		}
		zap.L().Error("server: append reply", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "add reply failed")
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// validateBox applies the same geometry rules the drawing engine
// enforces at promotion time.
func validateBox(box model.AnnotationBox) (string, bool) {
	if box.X < 0 || box.Y < 0 || box.X+box.Width > 1 || box.Y+box.Height > 1 {
		return "box must lie within the frame", false
	}
	if box.Width <= annotation.MinBoxSize || box.Height <= annotation.MinBoxSize {
		return "box is below the minimum size", false
	}
	return "", true
}
