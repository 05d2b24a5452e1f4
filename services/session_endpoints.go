package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/krshsl/prepmate/models"
	"github.com/krshsl/prepmate/repository"
)

type SessionEndpoints struct {
	repo     *repository.GORMRepository
	timeouts *SessionTimeoutService
	reports  *ReportService
}

func NewSessionEndpoints(repo *repository.GORMRepository, timeouts *SessionTimeoutService, reports *ReportService) *SessionEndpoints {
	return &SessionEndpoints{
		repo:     repo,
		timeouts: timeouts,
		reports:  reports,
	}
}

type CreateSessionRequest struct {
	InterviewID string `json:"interview_id" validate:"required,uuid"`
}

type GetSessionsResponse struct {
	Sessions []models.InterviewSession `json:"sessions"`
	Count    int                       `json:"count"`
}

type BulkDeleteRequest struct {
	SessionIDs []string `json:"session_ids" validate:"required,min=1,max=100,dive,uuid"`
}

func (e *SessionEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", e.CreateSessionHandler)
		r.Get("/", e.GetSessionsHandler)
		r.Delete("/bulk", e.BulkDeleteSessionsHandler)
		r.Get("/{id}", e.GetSessionHandler)
		r.Delete("/{id}", e.DeleteSessionHandler)
		r.Post("/{id}/end", e.EndSessionHandler)
		r.Post("/{id}/frames", e.AddFramesHandler)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/session/{id}", e.GetReportHandler)
		r.Post("/session/{id}/generate", e.GenerateReportHandler)
	})
}

// ownedSession loads a session of the current user, writing the error response when missing
func (e *SessionEndpoints) ownedSession(w http.ResponseWriter, r *http.Request, user *models.User) (*models.InterviewSession, bool) {
	sessionID := chi.URLParam(r, "id")
	session, err := e.repo.GetInterviewSessionWithDetails(r.Context(), sessionID, user.ID)
	if err != nil {
		writeError(w, fmt.Errorf("failed to get session: %w", err), nil)
		return nil, false
	}
	if session == nil {
		writeError(w, fmt.Errorf("%w: session %s", ErrNotFound, sessionID), nil)
		return nil, false
	}
	return session, true
}

func (e *SessionEndpoints) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req CreateSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	interview, err := e.repo.GetInterviewByID(r.Context(), req.InterviewID, user.ID)
	if err != nil {
		writeError(w, fmt.Errorf("failed to validate interview: %w", err), nil)
		return
	}
	if interview == nil || !interview.IsActive {
		writeError(w, fmt.Errorf("%w: interview %s", ErrNotFound, req.InterviewID), nil)
		return
	}

	session := models.InterviewSession{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		InterviewID: interview.ID,
		Status:      models.SessionStatusActive,
		StartedAt:   time.Now(),
	}
	if err := e.repo.CreateInterviewSession(r.Context(), &session); err != nil {
		writeError(w, fmt.Errorf("failed to create session: %w", err), nil)
		return
	}
	session.Interview = *interview

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": session,
		"message": "Session created successfully",
	})
	slog.Info("Interview session created", "session_id", session.ID, "user_id", user.ID, "interview_id", interview.ID)
}

func (e *SessionEndpoints) GetSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	sessions, err := e.repo.GetInterviewSessions(r.Context(), user.ID)
	if err != nil {
		writeError(w, fmt.Errorf("failed to get sessions: %w", err), nil)
		return
	}

	writeJSON(w, http.StatusOK, GetSessionsResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

func (e *SessionEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	session, ok := e.ownedSession(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (e *SessionEndpoints) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	session, ok := e.ownedSession(w, r, user)
	if !ok {
		return
	}

	e.timeouts.EndSession(session.ID)
	if err := e.repo.DeleteInterviewSession(r.Context(), session.ID); err != nil {
		writeError(w, fmt.Errorf("failed to delete session: %w", err), nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	slog.Info("Interview session deleted", "session_id", session.ID, "user_id", user.ID)
}

func (e *SessionEndpoints) BulkDeleteSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req BulkDeleteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sessions, err := e.repo.GetInterviewSessions(r.Context(), user.ID)
	if err != nil {
		writeError(w, fmt.Errorf("failed to verify sessions: %w", err), nil)
		return
	}
	owned := make(map[string]bool, len(sessions))
	for _, session := range sessions {
		owned[session.ID] = true
	}
	for _, sessionID := range req.SessionIDs {
		if !owned[sessionID] {
			writeError(w, fmt.Errorf("%w: session %s does not belong to the user", ErrForbidden, sessionID), nil)
			return
		}
	}

	for _, sessionID := range req.SessionIDs {
		e.timeouts.EndSession(sessionID)
	}
	deleted, err := e.repo.BulkDeleteInterviewSessions(r.Context(), req.SessionIDs)
	if err != nil {
		writeError(w, fmt.Errorf("failed to delete sessions: %w", err), nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Sessions deleted successfully",
		"deleted_count": deleted,
	})
	slog.Info("Bulk interview sessions deleted", "deleted_count", deleted, "user_id", user.ID)
}

// EndSessionHandler completes an active session and returns its report
func (e *SessionEndpoints) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	session, ok := e.ownedSession(w, r, user)
	if !ok {
		return
	}

	if session.Status == models.SessionStatusAbandoned {
		writeError(w, fmt.Errorf("%w: session was abandoned", ErrConflict), nil)
		return
	}

	ended, err := e.timeouts.Finish(r.Context(), session.ID, models.SessionStatusCompleted)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	report, err := e.reports.Generate(r.Context(), session.ID, false)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": ended,
		"report":  report,
	})
}

// AddFramesHandler appends webcam analysis frames to an active session
func (e *SessionEndpoints) AddFramesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req FramesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, ok := e.ownedSession(w, r, user)
	if !ok {
		return
	}
	if session.Status != models.SessionStatusActive {
		writeError(w, fmt.Errorf("%w: session is %s", ErrConflict, session.Status), nil)
		return
	}

	session.Frames = appendFrames(session.Frames, req.Frames)
	if err := e.repo.UpdateInterviewSession(r.Context(), session); err != nil {
		writeError(w, fmt.Errorf("failed to store frames: %w", err), nil)
		return
	}
	e.timeouts.UpdateActivity(session.ID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"frames": len(session.Frames),
	})
}

// GetReportHandler returns the report, starting generation when a completed session has none
func (e *SessionEndpoints) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	session, ok := e.ownedSession(w, r, user)
	if !ok {
		return
	}

	report, err := e.repo.GetInterviewReport(r.Context(), session.ID)
	if err != nil {
		writeError(w, fmt.Errorf("failed to get report: %w", err), nil)
		return
	}

	if report == nil {
		if session.Status != models.SessionStatusCompleted {
			writeError(w, fmt.Errorf("%w: session is %s, no report available", ErrNotFound, session.Status), nil)
			return
		}
		e.reports.GenerateAsync(session.ID)
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"status":     "generating",
			"message":    "Report generation has been triggered. Please check back shortly.",
			"session_id": session.ID,
		})
		return
	}

	scores, err := e.repo.GetPerformanceScores(r.Context(), session.ID)
	if err != nil {
		writeError(w, fmt.Errorf("failed to get performance scores: %w", err), nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"report":             report,
		"performance_scores": scores,
		"status":             "ready",
	})
}

// GenerateReportHandler regenerates the report of a completed session
func (e *SessionEndpoints) GenerateReportHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	session, ok := e.ownedSession(w, r, user)
	if !ok {
		return
	}
	if session.Status != models.SessionStatusCompleted {
		writeError(w, fmt.Errorf("%w: session must be completed to generate a report", ErrInvalidArgument), nil)
		return
	}
	if len(session.Transcripts) == 0 {
		writeError(w, fmt.Errorf("%w: no transcripts available for report generation", ErrInvalidArgument), nil)
		return
	}

	report, err := e.reports.Generate(r.Context(), session.ID, true)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"report": report,
		"status": "ready",
	})
	slog.Info("Report generated on request", "session_id", session.ID, "user_id", user.ID)
}
