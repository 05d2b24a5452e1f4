package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/krshsl/prepmate/models"
)

var errModelDown = errors.New("model unavailable")

// stubGenerator answers prompts by the first matching marker. Prompts with
// no matching marker fail, which makes callers take their fallback.
type stubGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	prompts []string
}

func newStubGenerator(replies map[string]string) *stubGenerator {
	return &stubGenerator{replies: replies}
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateJSON(ctx, prompt)
}

func (g *stubGenerator) GenerateJSON(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	for marker, reply := range g.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "", errModelDown
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// memJobStore keeps job interviews in memory, copying on read and write
type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]models.JobInterview
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]models.JobInterview)}
}

func cloneJob(job models.JobInterview) models.JobInterview {
	rounds := make([]models.Round, len(job.Rounds))
	for i, r := range job.Rounds {
		r.Questions = append([]models.JobQuestion(nil), r.Questions...)
		rounds[i] = r
	}
	job.Rounds = rounds
	return job
}

func (s *memJobStore) CreateJobInterview(_ context.Context, job *models.JobInterview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (s *memJobStore) GetJobInterview(_ context.Context, jobID, userID string) (*models.JobInterview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, nil
	}
	job = cloneJob(job)
	return &job, nil
}

func (s *memJobStore) ListJobInterviews(_ context.Context, userID string) ([]models.JobInterview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobInterview
	for _, job := range s.jobs {
		if job.UserID == userID {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

func (s *memJobStore) UpdateJobInterview(_ context.Context, job *models.JobInterview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (s *memJobStore) DeleteJobInterview(_ context.Context, jobID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.UserID != userID {
		return false, nil
	}
	delete(s.jobs, jobID)
	return true, nil
}

func testPrompts() *Prompts {
	p, err := DefaultPrompts()
	if err != nil {
		panic(err)
	}
	return p
}

func testInterviewConfig() InterviewConfig {
	return InterviewConfig{
		CrossQuestionThreshold: 6,
		MaxCrossQuestions:      3,
		QuestionsPerRound:      3,
		ExamQuestionCount:      5,
		ExamTimeLimitMinutes:   30,
		ExamGrace:              time.Minute,
	}
}
