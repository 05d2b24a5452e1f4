package services

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/krshsl/prepmate/models"
	"github.com/krshsl/prepmate/repository"
)

// InterviewEndpoints manages interviewer personas for the voice flow
type InterviewEndpoints struct {
	repo *repository.GORMRepository
}

type InterviewRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Role        string `json:"role" validate:"max=255"`
	Description string `json:"description"`
	Personality string `json:"personality" validate:"required"`
	Industry    string `json:"industry" validate:"max=100"`
	Level       string `json:"level" validate:"omitempty,oneof=junior mid senior executive"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female"`
	IsPublic    bool   `json:"is_public"`
}

type GetInterviewsResponse struct {
	Interviews []models.Interview `json:"interviews"`
	Count      int                `json:"count"`
}

func NewInterviewEndpoints(repo *repository.GORMRepository) *InterviewEndpoints {
	return &InterviewEndpoints{repo: repo}
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Post("/", e.CreateInterviewHandler)
		r.Get("/", e.GetInterviewsHandler)
		r.Get("/{id}", e.GetInterviewHandler)
		r.Put("/{id}", e.UpdateInterviewHandler)
		r.Delete("/{id}", e.DeleteInterviewHandler)
	})
}

// apply copies request fields onto a persona. Only admins publish personas;
// public personas have no owner.
func (req *InterviewRequest) apply(interview *models.Interview, user *models.User) {
	interview.Name = req.Name
	interview.Role = req.Role
	interview.Description = req.Description
	interview.Personality = req.Personality
	interview.Industry = req.Industry
	interview.Level = req.Level
	interview.Gender = req.Gender
	interview.IsPublic = req.IsPublic && user.Role == models.RoleAdmin
	if interview.IsPublic {
		interview.UserID = nil
	} else {
		interview.UserID = &user.ID
	}
}

func (e *InterviewEndpoints) CreateInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req InterviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	interview := models.Interview{
		ID:       uuid.New().String(),
		IsActive: true,
	}
	req.apply(&interview, user)

	if err := e.repo.CreateInterview(r.Context(), &interview); err != nil {
		writeError(w, fmt.Errorf("failed to create interview: %w", err), nil)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"interview": interview,
		"message":   "Interview created successfully",
	})
	slog.Info("Interview created", "interview_id", interview.ID, "user_id", user.ID, "name", interview.Name)
}

func (e *InterviewEndpoints) GetInterviewsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	// Public personas plus the user's own
	interviews, err := e.repo.GetInterviews(r.Context(), user.ID, true)
	if err != nil {
		writeError(w, fmt.Errorf("failed to get interviews: %w", err), nil)
		return
	}

	writeJSON(w, http.StatusOK, GetInterviewsResponse{
		Interviews: interviews,
		Count:      len(interviews),
	})
}

// visibleInterview loads a persona the user may see, writing the error response when missing
func (e *InterviewEndpoints) visibleInterview(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Interview, bool) {
	interviewID := chi.URLParam(r, "id")
	interview, err := e.repo.GetInterviewByID(r.Context(), interviewID, user.ID)
	if err != nil {
		writeError(w, fmt.Errorf("failed to get interview: %w", err), nil)
		return nil, false
	}
	if interview == nil {
		writeError(w, fmt.Errorf("%w: interview %s", ErrNotFound, interviewID), nil)
		return nil, false
	}
	return interview, true
}

func (e *InterviewEndpoints) GetInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	interview, ok := e.visibleInterview(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"interview": interview})
}

// canModify reports whether user may edit or delete the persona
func canModify(interview *models.Interview, user *models.User) bool {
	if interview.UserID == nil {
		return user.Role == models.RoleAdmin
	}
	return *interview.UserID == user.ID
}

func (e *InterviewEndpoints) UpdateInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	interview, ok := e.visibleInterview(w, r, user)
	if !ok {
		return
	}
	if !canModify(interview, user) {
		writeError(w, fmt.Errorf("%w: not authorized to update this interview", ErrForbidden), nil)
		return
	}

	var req InterviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	req.apply(interview, user)

	if err := e.repo.UpdateInterview(r.Context(), interview); err != nil {
		writeError(w, fmt.Errorf("failed to update interview: %w", err), nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interview": interview,
		"message":   "Interview updated successfully",
	})
	slog.Info("Interview updated", "interview_id", interview.ID, "user_id", user.ID)
}

func (e *InterviewEndpoints) DeleteInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	interview, ok := e.visibleInterview(w, r, user)
	if !ok {
		return
	}
	if !canModify(interview, user) {
		writeError(w, fmt.Errorf("%w: not authorized to delete this interview", ErrForbidden), nil)
		return
	}

	if err := e.repo.DeleteInterview(r.Context(), interview.ID); err != nil {
		writeError(w, fmt.Errorf("failed to delete interview: %w", err), nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Interview deleted successfully"})
	slog.Info("Interview deleted", "interview_id", interview.ID, "user_id", user.ID)
}
