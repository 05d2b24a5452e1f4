package services

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/prepmate/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func examRouter(svc *ExamService, user *models.User) http.Handler {
	r := chi.NewRouter()
	r.Use(asUser(user))
	NewExamEndpoints(svc).RegisterRoutes(r, allowAll)
	return r
}

func TestExamEndpointsLifecycle(t *testing.T) {
	svc, _, _ := newTestExamService(newStubGenerator(map[string]string{
		markerExamQuestions:  `{"questions": ["Q1", "Q2"]}`,
		markerExamEvaluation: `{"evaluations": [{"index": 0, "score": 8, "feedback": "Good"}, {"index": 1, "score": 6, "feedback": "Fine"}], "summary": "Decent"}`,
	}))
	owner := examRouter(svc, testUser())

	rec := doJSON(t, owner, http.MethodPost, "/exams/", `{"topic": "Go", "difficulty": "medium", "question_count": 2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Exam models.ExamInterview `json:"exam"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	id := created.Exam.ID
	require.NotEmpty(t, id)
	assert.Len(t, created.Exam.Questions, 2)

	stranger := &models.User{ID: "user-2", Email: "other@example.com"}
	rec = doJSON(t, examRouter(svc, stranger), http.MethodGet, "/exams/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, owner, http.MethodPost, "/exams/"+id+"/submit", `{"answers": [{"index": 0, "answer": "A"}, {"index": 1, "answer": "B"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var graded struct {
		Exam models.ExamInterview `json:"exam"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&graded))
	assert.Equal(t, models.ExamStatusEvaluated, graded.Exam.Status)
	assert.Equal(t, 70.0, graded.Exam.Score)

	rec = doJSON(t, owner, http.MethodPost, "/exams/"+id+"/submit", `{"answers": [{"index": 0, "answer": "again"}]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, owner, http.MethodDelete, "/exams/"+id, "")
	assert.Less(t, rec.Code, 300)
	rec = doJSON(t, owner, http.MethodGet, "/exams/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExamEndpointsValidation(t *testing.T) {
	svc, _, _ := newTestExamService(newStubGenerator(nil))
	router := examRouter(svc, testUser())

	rec := doJSON(t, router, http.MethodPost, "/exams/", `{"topic": "Go", "difficulty": "impossible"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/exams/", `{"difficulty": "easy"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
