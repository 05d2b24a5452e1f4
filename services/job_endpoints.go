package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
)

type JobEndpoints struct {
	jobs *JobService
}

func NewJobEndpoints(jobs *JobService) *JobEndpoints {
	return &JobEndpoints{jobs: jobs}
}

// RegisterRoutes mounts the job interview routes; aiLimit guards the routes that call the model
func (e *JobEndpoints) RegisterRoutes(r chi.Router, aiLimit func(http.Handler) http.Handler) {
	r.Route("/job-interviews", func(r chi.Router) {
		r.With(aiLimit).Post("/", e.CreateHandler)
		r.Get("/", e.ListHandler)
		r.Get("/{id}", e.GetHandler)
		r.Delete("/{id}", e.DeleteHandler)
		r.Get("/{id}/next", e.NextHandler)
		r.With(aiLimit).Post("/{id}/answers", e.AnswerHandler)
		r.Post("/{id}/frames", e.FramesHandler)
		r.Get("/{id}/report", e.ReportHandler)
		r.Get("/{id}/report.xlsx", e.ReportXLSXHandler)
	})
}

func (e *JobEndpoints) CreateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req CreateJobRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	job, err := e.jobs.Create(r.Context(), user, req)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"job_interview": job})
}

func (e *JobEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	jobs, err := e.jobs.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_interviews": jobs,
		"count":          len(jobs),
	})
}

func (e *JobEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	job, err := e.jobs.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job_interview": job})
}

func (e *JobEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	if err := e.jobs.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NextHandler returns the next question, or 204 once all are answered
func (e *JobEndpoints) NextHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	next, err := e.jobs.Next(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (e *JobEndpoints) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req SubmitAnswerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := e.jobs.SubmitAnswer(r.Context(), user.ID, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *JobEndpoints) FramesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	var req FramesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	job, err := e.jobs.AddFrames(r.Context(), user.ID, chi.URLParam(r, "id"), req.Frames)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"frames":  len(job.Frames),
		"metrics": job.Metrics,
	})
}

func (e *JobEndpoints) ReportHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	report, err := e.jobs.Report(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (e *JobEndpoints) ReportXLSXHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	report, err := e.jobs.Report(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}

	name := unsafeFilename.ReplaceAllString(report.JobTitle, "_") + "-report.xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if err := report.WriteXLSX(w); err != nil {
		slog.Error("Failed to export job report", "error", err, "job_interview_id", report.ID)
	}
}
