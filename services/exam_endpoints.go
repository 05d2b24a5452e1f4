package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/prepmate/models"
)

type ExamEndpoints struct {
	exams *ExamService
}

func NewExamEndpoints(exams *ExamService) *ExamEndpoints {
	return &ExamEndpoints{exams: exams}
}

// RegisterRoutes mounts the exam routes; aiLimit guards the routes that call the model
func (e *ExamEndpoints) RegisterRoutes(r chi.Router, aiLimit func(http.Handler) http.Handler) {
	r.Route("/exams", func(r chi.Router) {
		r.With(aiLimit).Post("/", e.CreateHandler)
		r.Get("/", e.ListHandler)
		r.Get("/{id}", e.GetHandler)
		r.Delete("/{id}", e.DeleteHandler)
		r.Post("/{id}/frames", e.FramesHandler)
		r.With(aiLimit).Post("/{id}/submit", e.SubmitHandler)
	})
}

// examView hides answers and grades until the exam is evaluated
func examView(exam *models.ExamInterview) *models.ExamInterview {
	if exam.Status == models.ExamStatusEvaluated {
		return exam
	}
	view := *exam
	view.Questions = make([]models.ExamQuestion, len(exam.Questions))
	for i, q := range exam.Questions {
		view.Questions[i] = models.ExamQuestion{Text: q.Text, Answer: q.Answer}
	}
	return &view
}

func (e *ExamEndpoints) CreateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req CreateExamRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	exam, err := e.exams.Create(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"exam":     examView(exam),
		"deadline": exam.Deadline(),
	})
}

func (e *ExamEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	exams, err := e.exams.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	views := make([]*models.ExamInterview, 0, len(exams))
	for i := range exams {
		views = append(views, examView(&exams[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exams": views,
		"count": len(views),
	})
}

func (e *ExamEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	exam, err := e.exams.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exam":     examView(exam),
		"deadline": exam.Deadline(),
	})
}

func (e *ExamEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	if err := e.exams.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *ExamEndpoints) FramesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req FramesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	exam, err := e.exams.AddFrames(r.Context(), user.ID, chi.URLParam(r, "id"), req.Frames)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"frames":        len(exam.Frames),
		"face_analysis": exam.FaceAnalysis,
	})
}

func (e *ExamEndpoints) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req SubmitExamRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	exam, err := e.exams.Submit(r.Context(), user.ID, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exam": exam})
}
