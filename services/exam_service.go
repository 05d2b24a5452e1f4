package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/prepmate/analysis"
	"github.com/krshsl/prepmate/models"
	"gorm.io/datatypes"
)

// ExamStore is the persistence of exam interviews
type ExamStore interface {
	CreateExamInterview(ctx context.Context, exam *models.ExamInterview) error
	GetExamInterview(ctx context.Context, examID, userID string) (*models.ExamInterview, error)
	ListExamInterviews(ctx context.Context, userID string) ([]models.ExamInterview, error)
	UpdateExamInterview(ctx context.Context, exam *models.ExamInterview) error
	DeleteExamInterview(ctx context.Context, examID, userID string) (bool, error)
}

type CreateExamRequest struct {
	Topic            string `json:"topic" validate:"required,max=255"`
	Difficulty       string `json:"difficulty" validate:"required,oneof=easy medium hard"`
	QuestionCount    int    `json:"question_count" validate:"omitempty,min=1,max=20"`
	TimeLimitMinutes int    `json:"time_limit_minutes" validate:"omitempty,min=1,max=180"`
}

type ExamAnswer struct {
	Index  int    `json:"index" validate:"min=0"`
	Answer string `json:"answer" validate:"max=20000"`
}

type SubmitExamRequest struct {
	Answers []ExamAnswer     `json:"answers" validate:"required,dive"`
	Frames  []analysis.Frame `json:"frames" validate:"max=2000"`
}

// ExamService runs timed written exams
type ExamService struct {
	store   ExamStore
	gen     Generator
	prompts *Prompts
	cfg     InterviewConfig
	locks   *keyedMutex
	now     func() time.Time
}

func NewExamService(store ExamStore, gen Generator, prompts *Prompts, cfg InterviewConfig) *ExamService {
	cfg.ExamQuestionCount = atLeast(cfg.ExamQuestionCount, 1)
	return &ExamService{
		store:   store,
		gen:     gen,
		prompts: prompts,
		cfg:     cfg,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

var fallbackExamQuestions = []string{
	"Explain the core concepts of %s and why they matter.",
	"Describe a real-world problem you would solve using %s, and walk through your approach.",
	"What are common pitfalls when working with %s, and how do you avoid them?",
	"Compare two approaches or tools used in %s and discuss their trade-offs.",
	"How would you explain %s to someone new to the field?",
	"Describe how you would test or validate work done in %s.",
}

func fallbackQuestions(topic string, count int) []string {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, fmt.Sprintf(fallbackExamQuestions[i%len(fallbackExamQuestions)], topic))
	}
	return out
}

// Create generates the questions and starts the exam clock
func (s *ExamService) Create(ctx context.Context, userID string, req CreateExamRequest) (*models.ExamInterview, error) {
	count := req.QuestionCount
	if count == 0 {
		count = s.cfg.ExamQuestionCount
	}
	limit := req.TimeLimitMinutes
	if limit == 0 {
		limit = s.cfg.ExamTimeLimitMinutes
	}

	texts := s.generateQuestions(ctx, req.Topic, req.Difficulty, count)
	questions := make([]models.ExamQuestion, 0, len(texts))
	for _, text := range texts {
		questions = append(questions, models.ExamQuestion{Text: text})
	}

	exam := &models.ExamInterview{
		ID:               uuid.New().String(),
		UserID:           userID,
		Topic:            req.Topic,
		Difficulty:       req.Difficulty,
		Questions:        questions,
		TimeLimitMinutes: limit,
		Status:           models.ExamStatusInProgress,
		StartedAt:        s.now(),
	}
	if err := s.store.CreateExamInterview(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	slog.Info("Exam created", "exam_id", exam.ID, "user_id", userID, "topic", req.Topic, "questions", len(questions))
	return exam, nil
}

func (s *ExamService) generateQuestions(ctx context.Context, topic, difficulty string, count int) []string {
	prompt, err := s.prompts.Render(PromptExamQuestions, map[string]interface{}{
		"Count":      count,
		"Topic":      topic,
		"Difficulty": difficulty,
	})
	if err != nil {
		slog.Error("Failed to render exam prompt", "error", err)
		return fallbackQuestions(topic, count)
	}

	var answer struct {
		Questions []string `json:"questions"`
	}
	if !askJSON(ctx, s.gen, "exam_questions", prompt, &answer) {
		return fallbackQuestions(topic, count)
	}

	var out []string
	for _, q := range answer.Questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
		if len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		LLMFallbacksTotal.WithLabelValues("exam_questions").Inc()
		return fallbackQuestions(topic, count)
	}
	return out
}

// Get returns an exam of the user
func (s *ExamService) Get(ctx context.Context, userID, examID string) (*models.ExamInterview, error) {
	exam, err := s.store.GetExamInterview(ctx, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam == nil {
		return nil, fmt.Errorf("%w: exam %s", ErrNotFound, examID)
	}
	return exam, nil
}

func (s *ExamService) List(ctx context.Context, userID string) ([]models.ExamInterview, error) {
	exams, err := s.store.ListExamInterviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, nil
}

func (s *ExamService) Delete(ctx context.Context, userID, examID string) error {
	deleted, err := s.store.DeleteExamInterview(ctx, examID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: exam %s", ErrNotFound, examID)
	}
	return nil
}

// AddFrames stores webcam frames while the exam is running
func (s *ExamService) AddFrames(ctx context.Context, userID, examID string, frames []analysis.Frame) (*models.ExamInterview, error) {
	unlock := s.locks.Lock(examID)
	defer unlock()

	exam, err := s.Get(ctx, userID, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != models.ExamStatusInProgress {
		return nil, fmt.Errorf("%w: exam is %s", ErrConflict, exam.Status)
	}
	if s.now().After(exam.Deadline().Add(s.cfg.ExamGrace)) {
		return nil, fmt.Errorf("%w: exam ended at %s", ErrTimeLimit, exam.Deadline().Format(time.RFC3339))
	}

	exam.Frames = appendFrames(exam.Frames, frames)
	exam.FaceAnalysis = datatypes.NewJSONType(analysis.Aggregate(exam.Frames))
	if err := s.store.UpdateExamInterview(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to store frames: %w", err)
	}
	return exam, nil
}

type examEvaluationItem struct {
	Index  int
	Text   string
	Answer string
}

type examEvaluationAnswer struct {
	Evaluations []struct {
		Index    int     `json:"index"`
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	} `json:"evaluations"`
	Summary string `json:"summary"`
}

// Submit records the answers and grades the exam. Answers arriving after the
// time limit plus grace are accepted and flagged late. An exam whose answers
// were stored but not graded is graded on the next call, keeping the stored
// answers.
func (s *ExamService) Submit(ctx context.Context, userID, examID string, req SubmitExamRequest) (*models.ExamInterview, error) {
	unlock := s.locks.Lock(examID)
	defer unlock()

	exam, err := s.Get(ctx, userID, examID)
	if err != nil {
		return nil, err
	}

	switch exam.Status {
	case models.ExamStatusInProgress:
		for _, a := range req.Answers {
			if a.Index < 0 || a.Index >= len(exam.Questions) {
				return nil, fmt.Errorf("%w: no question at index %d", ErrInvalidArgument, a.Index)
			}
			exam.Questions[a.Index].Answer = strings.TrimSpace(a.Answer)
		}

		now := s.now()
		exam.SubmittedAt = &now
		exam.Late = now.After(exam.Deadline().Add(s.cfg.ExamGrace))
		exam.Frames = appendFrames(exam.Frames, req.Frames)
		exam.Status = models.ExamStatusSubmitted
		if err := s.store.UpdateExamInterview(ctx, exam); err != nil {
			return nil, fmt.Errorf("failed to store answers: %w", err)
		}
	case models.ExamStatusSubmitted:
		slog.Info("Resuming evaluation of submitted exam", "exam_id", exam.ID, "user_id", userID)
	default:
		return nil, fmt.Errorf("%w: exam already %s", ErrConflict, exam.Status)
	}

	s.evaluate(ctx, exam)
	exam.FaceAnalysis = datatypes.NewJSONType(analysis.Aggregate(exam.Frames))
	exam.Status = models.ExamStatusEvaluated
	if err := s.store.UpdateExamInterview(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to store evaluation: %w", err)
	}

	InterviewsCompletedTotal.WithLabelValues("exam").Inc()
	slog.Info("Exam evaluated", "exam_id", exam.ID, "user_id", userID, "score", exam.Score, "late", exam.Late)
	return exam, nil
}

// evaluate scores every question; unanswered questions always score 0
func (s *ExamService) evaluate(ctx context.Context, exam *models.ExamInterview) {
	for i := range exam.Questions {
		exam.Questions[i].Score = 0
		exam.Questions[i].Feedback = "Automatic evaluation was unavailable for this answer."
	}
	exam.Summary = "Your answers were recorded but could not be evaluated automatically."

	items := make([]examEvaluationItem, 0, len(exam.Questions))
	for i, q := range exam.Questions {
		items = append(items, examEvaluationItem{Index: i, Text: q.Text, Answer: q.Answer})
	}

	prompt, err := s.prompts.Render(PromptExamEvaluation, map[string]interface{}{
		"Topic":      exam.Topic,
		"Difficulty": exam.Difficulty,
		"Questions":  items,
	})
	var answer examEvaluationAnswer
	if err != nil {
		slog.Error("Failed to render exam evaluation prompt", "error", err)
	} else if askJSON(ctx, s.gen, "exam_evaluation", prompt, &answer) {
		for _, ev := range answer.Evaluations {
			if ev.Index < 0 || ev.Index >= len(exam.Questions) {
				continue
			}
			exam.Questions[ev.Index].Score = round1(clamp(ev.Score, 0, 10))
			if fb := strings.TrimSpace(ev.Feedback); fb != "" {
				exam.Questions[ev.Index].Feedback = fb
			}
		}
		if summary := strings.TrimSpace(answer.Summary); summary != "" {
			exam.Summary = summary
		}
	}

	var total float64
	for i := range exam.Questions {
		if exam.Questions[i].Answer == "" {
			exam.Questions[i].Score = 0
			exam.Questions[i].Feedback = "No answer was given."
		}
		total += exam.Questions[i].Score
	}
	exam.Score = 0
	if len(exam.Questions) > 0 {
		exam.Score = round1(total / float64(len(exam.Questions)) * 10)
	}
}
