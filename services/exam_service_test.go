package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/krshsl/prepmate/analysis"
	"github.com/krshsl/prepmate/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memExamStore struct {
	mu    sync.Mutex
	exams map[string]models.ExamInterview
}

func newMemExamStore() *memExamStore {
	return &memExamStore{exams: make(map[string]models.ExamInterview)}
}

func cloneExam(exam models.ExamInterview) models.ExamInterview {
	exam.Questions = append([]models.ExamQuestion(nil), exam.Questions...)
	exam.Frames = append([]analysis.Frame(nil), exam.Frames...)
	return exam
}

func (s *memExamStore) CreateExamInterview(_ context.Context, exam *models.ExamInterview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[exam.ID] = cloneExam(*exam)
	return nil
}

func (s *memExamStore) GetExamInterview(_ context.Context, examID, userID string) (*models.ExamInterview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exam, ok := s.exams[examID]
	if !ok || exam.UserID != userID {
		return nil, nil
	}
	exam = cloneExam(exam)
	return &exam, nil
}

func (s *memExamStore) ListExamInterviews(_ context.Context, userID string) ([]models.ExamInterview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExamInterview
	for _, exam := range s.exams {
		if exam.UserID == userID {
			out = append(out, cloneExam(exam))
		}
	}
	return out, nil
}

func (s *memExamStore) UpdateExamInterview(_ context.Context, exam *models.ExamInterview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[exam.ID] = cloneExam(*exam)
	return nil
}

func (s *memExamStore) DeleteExamInterview(_ context.Context, examID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exam, ok := s.exams[examID]
	if !ok || exam.UserID != userID {
		return false, nil
	}
	delete(s.exams, examID)
	return true, nil
}

const (
	markerExamQuestions  = "written exam questions about"
	markerExamEvaluation = "Grade this written exam"
)

// newTestExamService returns a service whose clock is controlled by the returned pointer
func newTestExamService(gen Generator) (*ExamService, *memExamStore, *time.Time) {
	store := newMemExamStore()
	svc := NewExamService(store, gen, testPrompts(), testInterviewConfig())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, store, &now
}

func TestExamServiceCreateFallback(t *testing.T) {
	svc, _, _ := newTestExamService(newStubGenerator(nil))

	exam, err := svc.Create(context.Background(), "user-1", CreateExamRequest{Topic: "Go concurrency", Difficulty: "medium"})
	require.NoError(t, err)

	assert.Len(t, exam.Questions, 5)
	assert.Equal(t, 30, exam.TimeLimitMinutes)
	assert.Equal(t, models.ExamStatusInProgress, exam.Status)
	for _, q := range exam.Questions {
		assert.Contains(t, q.Text, "Go concurrency")
	}
}

func TestExamServiceCreateWithModelQuestions(t *testing.T) {
	gen := newStubGenerator(map[string]string{
		markerExamQuestions: `{"questions": ["What is a goroutine?", "  ", "Explain channels.", "Extra"]}`,
	})
	svc, _, _ := newTestExamService(gen)

	exam, err := svc.Create(context.Background(), "user-1", CreateExamRequest{
		Topic:            "Go",
		Difficulty:       "easy",
		QuestionCount:    2,
		TimeLimitMinutes: 10,
	})
	require.NoError(t, err)

	require.Len(t, exam.Questions, 2)
	assert.Equal(t, "What is a goroutine?", exam.Questions[0].Text)
	assert.Equal(t, "Explain channels.", exam.Questions[1].Text)
	assert.Equal(t, 10, exam.TimeLimitMinutes)
}

func TestExamServiceSubmitOnTime(t *testing.T) {
	gen := newStubGenerator(map[string]string{
		markerExamQuestions: `{"questions": ["Q1", "Q2"]}`,
		markerExamEvaluation: `{"evaluations": [
			{"index": 0, "score": 9, "feedback": "Good"},
			{"index": 1, "score": 7, "feedback": "Ignored because empty"},
			{"index": 7, "score": 10}
		], "summary": "Solid grasp"}`,
	})
	svc, store, now := newTestExamService(gen)
	ctx := context.Background()

	exam, err := svc.Create(ctx, "user-1", CreateExamRequest{Topic: "Go", Difficulty: "hard", QuestionCount: 2})
	require.NoError(t, err)

	*now = now.Add(20 * time.Minute)
	graded, err := svc.Submit(ctx, "user-1", exam.ID, SubmitExamRequest{
		Answers: []ExamAnswer{{Index: 0, Answer: " goroutines are cheap threads "}},
		Frames:  []analysis.Frame{{Timestamp: 1, FaceDetected: true, Dominant: "neutral"}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExamStatusEvaluated, graded.Status)
	assert.False(t, graded.Late)
	assert.Equal(t, "goroutines are cheap threads", graded.Questions[0].Answer)
	assert.Equal(t, 9.0, graded.Questions[0].Score)
	assert.Equal(t, 0.0, graded.Questions[1].Score)
	assert.Equal(t, "No answer was given.", graded.Questions[1].Feedback)
	assert.Equal(t, 45.0, graded.Score)
	assert.Equal(t, "Solid grasp", graded.Summary)
	assert.Equal(t, 1, graded.FaceAnalysis.Data().TotalFrames)

	stored, err := store.GetExamInterview(ctx, exam.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExamStatusEvaluated, stored.Status)

	_, err = svc.Submit(ctx, "user-1", exam.ID, SubmitExamRequest{Answers: []ExamAnswer{{Index: 0, Answer: "again"}}})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestExamServiceLateSubmissionIsFlagged(t *testing.T) {
	svc, _, now := newTestExamService(newStubGenerator(nil))
	ctx := context.Background()

	exam, err := svc.Create(ctx, "user-1", CreateExamRequest{Topic: "SQL", Difficulty: "easy", QuestionCount: 1, TimeLimitMinutes: 5})
	require.NoError(t, err)

	*now = now.Add(7 * time.Minute)
	graded, err := svc.Submit(ctx, "user-1", exam.ID, SubmitExamRequest{Answers: []ExamAnswer{{Index: 0, Answer: "SELECT 1"}}})
	require.NoError(t, err)

	assert.True(t, graded.Late)
	assert.Equal(t, 0.0, graded.Score)
	assert.Equal(t, "Your answers were recorded but could not be evaluated automatically.", graded.Summary)
}

func TestExamServiceSubmitRejectsUnknownIndex(t *testing.T) {
	svc, _, _ := newTestExamService(newStubGenerator(nil))
	ctx := context.Background()

	exam, err := svc.Create(ctx, "user-1", CreateExamRequest{Topic: "SQL", Difficulty: "easy", QuestionCount: 1})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "user-1", exam.ID, SubmitExamRequest{Answers: []ExamAnswer{{Index: 3, Answer: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Submit(ctx, "user-2", exam.ID, SubmitExamRequest{Answers: []ExamAnswer{{Index: 0, Answer: "x"}}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExamServiceFramesAfterDeadline(t *testing.T) {
	svc, _, now := newTestExamService(newStubGenerator(nil))
	ctx := context.Background()

	exam, err := svc.Create(ctx, "user-1", CreateExamRequest{Topic: "SQL", Difficulty: "easy", TimeLimitMinutes: 5})
	require.NoError(t, err)

	*now = now.Add(5*time.Minute + 30*time.Second)
	updated, err := svc.AddFrames(ctx, "user-1", exam.ID, []analysis.Frame{{Timestamp: 1, FaceDetected: true}})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.FaceAnalysis.Data().FaceFrames)

	*now = now.Add(time.Minute)
	_, err = svc.AddFrames(ctx, "user-1", exam.ID, []analysis.Frame{{Timestamp: 2, FaceDetected: true}})
	assert.ErrorIs(t, err, ErrTimeLimit)
}

// flakyExamStore fails the update numbered failOn, counting from 1
type flakyExamStore struct {
	*memExamStore
	updates int
	failOn  int
}

func (s *flakyExamStore) UpdateExamInterview(ctx context.Context, exam *models.ExamInterview) error {
	s.updates++
	if s.updates == s.failOn {
		return errors.New("db blip")
	}
	return s.memExamStore.UpdateExamInterview(ctx, exam)
}

func TestExamServiceSubmitResumesAfterFailedEvaluationSave(t *testing.T) {
	gen := newStubGenerator(map[string]string{
		markerExamQuestions:  `{"questions": ["Q1"]}`,
		markerExamEvaluation: `{"evaluations": [{"index": 0, "score": 6, "feedback": "OK"}], "summary": "Fair"}`,
	})
	store := &flakyExamStore{memExamStore: newMemExamStore(), failOn: 2}
	svc := NewExamService(store, gen, testPrompts(), testInterviewConfig())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	exam, err := svc.Create(ctx, "user-1", CreateExamRequest{Topic: "Go", Difficulty: "easy", QuestionCount: 1})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "user-1", exam.ID, SubmitExamRequest{Answers: []ExamAnswer{{Index: 0, Answer: "stored answer"}}})
	require.Error(t, err)
	stored, err := store.GetExamInterview(ctx, exam.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExamStatusSubmitted, stored.Status)

	graded, err := svc.Submit(ctx, "user-1", exam.ID, SubmitExamRequest{Answers: []ExamAnswer{{Index: 0, Answer: "changed"}}})
	require.NoError(t, err)
	assert.Equal(t, models.ExamStatusEvaluated, graded.Status)
	assert.Equal(t, "stored answer", graded.Questions[0].Answer)
	assert.Equal(t, 60.0, graded.Score)

	_, err = svc.Submit(ctx, "user-1", exam.ID, SubmitExamRequest{Answers: []ExamAnswer{{Index: 0, Answer: "again"}}})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestExamServiceConcurrentSubmitsGradeOnce(t *testing.T) {
	gen := newStubGenerator(map[string]string{
		markerExamQuestions:  `{"questions": ["Q1"]}`,
		markerExamEvaluation: `{"evaluations": [{"index": 0, "score": 7}], "summary": "Good"}`,
	})
	svc, _, _ := newTestExamService(gen)
	ctx := context.Background()

	exam, err := svc.Create(ctx, "user-1", CreateExamRequest{Topic: "Go", Difficulty: "easy", QuestionCount: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(ctx, "user-1", exam.ID, SubmitExamRequest{Answers: []ExamAnswer{{Index: 0, Answer: "A"}}})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, gen.calls(), "one question prompt and one evaluation prompt")
}
