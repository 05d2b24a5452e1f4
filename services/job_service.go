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

// JobStore is the persistence of job interviews
type JobStore interface {
	CreateJobInterview(ctx context.Context, job *models.JobInterview) error
	GetJobInterview(ctx context.Context, jobID, userID string) (*models.JobInterview, error)
	ListJobInterviews(ctx context.Context, userID string) ([]models.JobInterview, error)
	UpdateJobInterview(ctx context.Context, job *models.JobInterview) error
	DeleteJobInterview(ctx context.Context, jobID, userID string) (bool, error)
}

type CreateJobRequest struct {
	JobTitle       string   `json:"job_title" validate:"required,max=255"`
	Company        string   `json:"company" validate:"max=255"`
	JobDescription string   `json:"job_description" validate:"required,max=20000"`
	UseResume      bool     `json:"use_resume"`
	Rounds         []string `json:"rounds" validate:"omitempty,max=5,dive,required,max=50"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer" validate:"max=20000"`
}

// AnswerResult is the outcome of one answered question
type AnswerResult struct {
	Question      models.JobQuestion   `json:"question"`
	CrossQuestion *models.JobQuestion  `json:"cross_question,omitempty"`
	Completed     bool                 `json:"completed"`
	Interview     *models.JobInterview `json:"interview"`
}

// NextQuestion locates the next unanswered question
type NextQuestion struct {
	RoundIndex    int                `json:"round_index"`
	RoundName     string             `json:"round_name"`
	QuestionIndex int                `json:"question_index"`
	Question      models.JobQuestion `json:"question"`
	Answered      int                `json:"answered"`
	Total         int                `json:"total"`
}

var defaultRoundNames = []string{"Technical", "Behavioral", "HR"}

var fallbackRoundQuestions = map[string][]string{
	"technical": {
		"Walk me through the most technically challenging project you have worked on that is relevant to the %s role.",
		"Which tools and technologies from this job description have you used, and how deeply?",
		"How would you approach debugging a production issue you have never seen before?",
		"Describe how you keep the quality of your work high under deadline pressure.",
		"What would you focus on during your first month as a %s?",
	},
	"behavioral": {
		"Tell me about a time you disagreed with a teammate. How did you resolve it?",
		"Describe a situation where you had to learn something new quickly.",
		"Tell me about a mistake you made at work and what you learned from it.",
		"Give an example of a goal you set and how you achieved it.",
		"Describe a time you had to balance several competing priorities.",
	},
	"hr": {
		"Why are you interested in this %s position?",
		"Where do you see yourself in three to five years?",
		"What kind of work environment helps you do your best work?",
		"What are your salary expectations and notice period?",
		"Do you have any questions for us about the role or the team?",
	},
}

var genericRoundQuestions = []string{
	"What experience do you have that is most relevant to the %s role?",
	"Describe a recent accomplishment you are proud of.",
	"How do you approach problems you have not solved before?",
	"What are your main strengths and areas for growth?",
	"Why do you think you are a good fit for this position?",
}

// fallbackRound builds a round of canned questions for a round name
func fallbackRound(name, jobTitle string, count int) models.Round {
	kind := strings.ToLower(strings.TrimSpace(name))
	templates, ok := fallbackRoundQuestions[kind]
	if !ok {
		templates = genericRoundQuestions
	}
	questions := make([]models.JobQuestion, 0, count)
	for i := 0; i < count; i++ {
		text := templates[i%len(templates)]
		if strings.Contains(text, "%s") {
			text = fmt.Sprintf(text, jobTitle)
		}
		questions = append(questions, models.JobQuestion{ID: uuid.New().String(), Text: text})
	}
	return models.Round{Name: name, Type: kind, Questions: questions}
}

// JobService runs multi-round job interviews with adaptive follow-ups
type JobService struct {
	store   JobStore
	gen     Generator
	prompts *Prompts
	cfg     InterviewConfig
	locks   *keyedMutex
	now     func() time.Time
}

func NewJobService(store JobStore, gen Generator, prompts *Prompts, cfg InterviewConfig) *JobService {
	cfg.QuestionsPerRound = atLeast(cfg.QuestionsPerRound, 1)
	return &JobService{
		store:   store,
		gen:     gen,
		prompts: prompts,
		cfg:     cfg,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// Create generates the rounds for a job posting
func (s *JobService) Create(ctx context.Context, user *models.User, req CreateJobRequest) (*models.JobInterview, error) {
	if req.UseResume && !user.HasResume() {
		return nil, fmt.Errorf("%w: upload a resume before using it in an interview", ErrInvalidArgument)
	}

	names := req.Rounds
	if len(names) == 0 {
		names = defaultRoundNames
	}
	resume := ""
	if req.UseResume {
		resume = user.ResumeText
	}

	job := &models.JobInterview{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		JobTitle:       req.JobTitle,
		Company:        req.Company,
		JobDescription: req.JobDescription,
		ResumeText:     resume,
		Rounds:         s.generateRounds(ctx, req, names, resume),
		Status:         models.JobStatusInProgress,
	}
	if err := s.store.CreateJobInterview(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job interview: %w", err)
	}
	return job, nil
}

func (s *JobService) generateRounds(ctx context.Context, req CreateJobRequest, names []string, resume string) []models.Round {
	perRound := s.cfg.QuestionsPerRound
	fallback := func() []models.Round {
		rounds := make([]models.Round, 0, len(names))
		for _, name := range names {
			rounds = append(rounds, fallbackRound(name, req.JobTitle, perRound))
		}
		return rounds
	}

	prompt, err := s.prompts.Render(PromptJobRounds, map[string]interface{}{
		"JobTitle":          req.JobTitle,
		"Company":           req.Company,
		"JobDescription":    req.JobDescription,
		"Resume":            resume,
		"RoundNames":        names,
		"QuestionsPerRound": perRound,
	})
	if err != nil {
		slog.Error("Failed to render job rounds prompt", "error", err)
		return fallback()
	}

	var answer struct {
		Rounds []struct {
			Name      string   `json:"name"`
			Type      string   `json:"type"`
			Questions []string `json:"questions"`
		} `json:"rounds"`
	}
	if !askJSON(ctx, s.gen, "job_rounds", prompt, &answer) {
		return fallback()
	}

	var rounds []models.Round
	for _, r := range answer.Rounds {
		round := models.Round{Name: strings.TrimSpace(r.Name), Type: strings.ToLower(strings.TrimSpace(r.Type))}
		for _, q := range r.Questions {
			if q = strings.TrimSpace(q); q == "" {
				continue
			}
			round.Questions = append(round.Questions, models.JobQuestion{ID: uuid.New().String(), Text: q})
			if len(round.Questions) == perRound {
				break
			}
		}
		if round.Name == "" || len(round.Questions) == 0 {
			continue
		}
		if round.Type == "" {
			round.Type = strings.ToLower(round.Name)
		}
		rounds = append(rounds, round)
	}
	if len(rounds) == 0 {
		LLMFallbacksTotal.WithLabelValues("job_rounds").Inc()
		return fallback()
	}
	return rounds
}

// Get returns a job interview of the user
func (s *JobService) Get(ctx context.Context, userID, jobID string) (*models.JobInterview, error) {
	job, err := s.store.GetJobInterview(ctx, jobID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job interview: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job interview %s", ErrNotFound, jobID)
	}
	return job, nil
}

func (s *JobService) List(ctx context.Context, userID string) ([]models.JobInterview, error) {
	jobs, err := s.store.ListJobInterviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job interviews: %w", err)
	}
	return jobs, nil
}

func (s *JobService) Delete(ctx context.Context, userID, jobID string) error {
	deleted, err := s.store.DeleteJobInterview(ctx, jobID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete job interview: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: job interview %s", ErrNotFound, jobID)
	}
	return nil
}

// Next returns the next unanswered question, or nil once everything is answered
func (s *JobService) Next(ctx context.Context, userID, jobID string) (*NextQuestion, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	ri, qi, ok := job.NextUnanswered()
	if !ok || job.Status == models.JobStatusCompleted {
		return nil, nil
	}
	return &NextQuestion{
		RoundIndex:    ri,
		RoundName:     job.Rounds[ri].Name,
		QuestionIndex: qi,
		Question:      job.Rounds[ri].Questions[qi],
		Answered:      answeredCount(job),
		Total:         job.QuestionCount(),
	}, nil
}

func answeredCount(job *models.JobInterview) int {
	n := 0
	for _, r := range job.Rounds {
		for _, q := range r.Questions {
			if q.Answered() {
				n++
			}
		}
	}
	return n
}

// SubmitAnswer scores an answer, adds a follow-up for weak answers and
// finishes the interview once every question has been answered.
func (s *JobService) SubmitAnswer(ctx context.Context, userID, jobID string, req SubmitAnswerRequest) (*AnswerResult, error) {
	answer := strings.TrimSpace(req.Answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer must not be empty", ErrInvalidArgument)
	}

	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusCompleted {
		return nil, fmt.Errorf("%w: job interview already completed", ErrConflict)
	}
	ri, qi := job.Locate(req.QuestionID)
	if ri < 0 {
		return nil, fmt.Errorf("%w: question %s", ErrNotFound, req.QuestionID)
	}
	if job.Rounds[ri].Questions[qi].Answered() {
		return nil, fmt.Errorf("%w: question %s already answered", ErrConflict, req.QuestionID)
	}

	round := job.Rounds[ri]
	q := &job.Rounds[ri].Questions[qi]
	now := s.now()
	q.Answer = answer
	q.AnsweredAt = &now
	q.Score, q.Feedback = s.evaluateAnswer(ctx, job, round.Name, q.Text, answer)

	result := &AnswerResult{Question: *q}
	if q.Score < s.cfg.CrossQuestionThreshold && job.CrossQuestionCount < s.cfg.MaxCrossQuestions {
		cross := models.JobQuestion{
			ID:       uuid.New().String(),
			Text:     s.crossQuestion(ctx, job, *q),
			IsCross:  true,
			ParentID: q.ID,
		}
		job.InsertAfter(ri, qi, cross)
		job.CrossQuestionCount++
		result.CrossQuestion = &cross
	}

	if job.AllAnswered() {
		s.complete(ctx, job)
		result.Completed = true
	}

	if err := s.store.UpdateJobInterview(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}
	if result.Completed {
		InterviewsCompletedTotal.WithLabelValues("job").Inc()
		slog.Info("Job interview completed", "job_interview_id", job.ID, "user_id", userID, "score", job.OverallScore)
	}
	result.Interview = job
	return result, nil
}

func (s *JobService) evaluateAnswer(ctx context.Context, job *models.JobInterview, roundName, question, answer string) (float64, string) {
	score, feedback := 5.0, "Your answer was recorded. Detailed feedback is not available right now."

	prompt, err := s.prompts.Render(PromptAnswerEvaluation, map[string]interface{}{
		"JobTitle":  job.JobTitle,
		"RoundName": roundName,
		"Question":  question,
		"Answer":    answer,
	})
	if err != nil {
		slog.Error("Failed to render answer evaluation prompt", "error", err)
		return score, feedback
	}

	var res struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if !askJSON(ctx, s.gen, "answer_evaluation", prompt, &res) {
		return score, feedback
	}
	if fb := strings.TrimSpace(res.Feedback); fb != "" {
		feedback = fb
	}
	return round1(clamp(res.Score, 0, 10)), feedback
}

func (s *JobService) crossQuestion(ctx context.Context, job *models.JobInterview, q models.JobQuestion) string {
	fallback := "Could you expand on your previous answer with a concrete example from your experience?"

	prompt, err := s.prompts.Render(PromptCrossQuestion, map[string]interface{}{
		"JobTitle": job.JobTitle,
		"Question": q.Text,
		"Answer":   q.Answer,
		"Feedback": q.Feedback,
	})
	if err != nil {
		slog.Error("Failed to render cross question prompt", "error", err)
		return fallback
	}

	var res struct {
		Question string `json:"question"`
	}
	if !askJSON(ctx, s.gen, "cross_question", prompt, &res) {
		return fallback
	}
	if text := strings.TrimSpace(res.Question); text != "" {
		return text
	}
	LLMFallbacksTotal.WithLabelValues("cross_question").Inc()
	return fallback
}

type jobSummaryItem struct {
	Round    string
	IsCross  bool
	Question string
	Answer   string
	Score    float64
	Feedback string
}

// complete writes the final evaluation and marks the interview completed
func (s *JobService) complete(ctx context.Context, job *models.JobInterview) {
	var items []jobSummaryItem
	var total float64
	for _, r := range job.Rounds {
		for _, q := range r.Questions {
			items = append(items, jobSummaryItem{
				Round:    r.Name,
				IsCross:  q.IsCross,
				Question: q.Text,
				Answer:   q.Answer,
				Score:    q.Score,
				Feedback: q.Feedback,
			})
			total += q.Score
		}
	}

	metrics := job.Metrics.Data()
	job.OverallScore = round1(total / float64(len(items)) * 10)
	job.Summary = "You answered every question. Review the feedback on each answer to see where to improve."
	job.Strengths = ""
	job.Improvements = ""

	prompt, err := s.prompts.Render(PromptJobSummary, map[string]interface{}{
		"JobTitle": job.JobTitle,
		"Company":  job.Company,
		"Items":    items,
		"Metrics":  metrics,
	})
	var res struct {
		OverallScore float64 `json:"overall_score"`
		Summary      string  `json:"summary"`
		Strengths    string  `json:"strengths"`
		Improvements string  `json:"improvements"`
	}
	if err != nil {
		slog.Error("Failed to render job summary prompt", "error", err)
	} else if askJSON(ctx, s.gen, "job_summary", prompt, &res) {
		job.OverallScore = round1(clamp(res.OverallScore, 0, 100))
		if summary := strings.TrimSpace(res.Summary); summary != "" {
			job.Summary = summary
		}
		job.Strengths = strings.TrimSpace(res.Strengths)
		job.Improvements = strings.TrimSpace(res.Improvements)
	}

	now := s.now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
}

// AddFrames stores webcam frames and recomputes the behavioural metrics
func (s *JobService) AddFrames(ctx context.Context, userID, jobID string, frames []analysis.Frame) (*models.JobInterview, error) {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusInProgress {
		return nil, fmt.Errorf("%w: job interview is %s", ErrConflict, job.Status)
	}

	job.Frames = appendFrames(job.Frames, frames)
	job.Metrics = datatypes.NewJSONType(analysis.Aggregate(job.Frames))
	if err := s.store.UpdateJobInterview(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to store frames: %w", err)
	}
	return job, nil
}
