package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/krshsl/prepmate/analysis"
	"github.com/krshsl/prepmate/models"
	"gorm.io/datatypes"
)

// ReportStore is the persistence the voice interview report needs
type ReportStore interface {
	GetInterviewSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	GetInterview(ctx context.Context, interviewID string) (*models.Interview, error)
	GetInterviewTranscripts(ctx context.Context, sessionID string) ([]models.InterviewTranscript, error)
	GetInterviewReport(ctx context.Context, sessionID string) (*models.InterviewReport, error)
	SaveInterviewReport(ctx context.Context, report *models.InterviewReport) error
	ReplacePerformanceScores(ctx context.Context, sessionID string, scores []models.PerformanceScore) error
}

// ReportService produces the end-of-session report for voice interviews
type ReportService struct {
	store ReportStore
	gen   Generator
	tmpl  *Prompts
	locks *keyedMutex
}

func NewReportService(store ReportStore, gen Generator, prompts *Prompts) *ReportService {
	return &ReportService{
		store: store,
		gen:   gen,
		tmpl:  prompts,
		locks: newKeyedMutex(),
	}
}

type sessionReportPrompt struct {
	Name            string
	Level           string
	Industry        string
	Personality     string
	ScoringGuidance string
	Tone            string
	Transcript      []string
}

// sessionReportAnswer is the JSON the model is asked for
type sessionReportAnswer struct {
	Summary         string  `json:"summary"`
	Strengths       string  `json:"strengths"`
	Weaknesses      string  `json:"weaknesses"`
	Recommendations string  `json:"recommendations"`
	OverallScore    float64 `json:"overallScore"`
	Metrics         []struct {
		Metric string  `json:"metric"`
		Score  float64 `json:"score"`
	} `json:"metrics"`
}

// Generate builds, stores and returns the report for a session. When a report
// already exists it is returned unchanged unless force is set.
func (s *ReportService) Generate(ctx context.Context, sessionID string, force bool) (*models.InterviewReport, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if !force {
		existing, err := s.store.GetInterviewReport(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing report: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	session, err := s.store.GetInterviewSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	interview, err := s.store.GetInterview(ctx, session.InterviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	if interview == nil {
		return nil, fmt.Errorf("%w: interview %s", ErrNotFound, session.InterviewID)
	}

	transcripts, err := s.store.GetInterviewTranscripts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcripts: %w", err)
	}

	answer := s.analyse(ctx, interview, transcripts)

	report := &models.InterviewReport{
		SessionID:       sessionID,
		Summary:         answer.Summary,
		Strengths:       answer.Strengths,
		Weaknesses:      answer.Weaknesses,
		Recommendations: answer.Recommendations,
		OverallScore:    answer.OverallScore,
	}
	report.FaceAnalysis = datatypes.NewJSONType(analysis.Aggregate(session.Frames))

	if err := s.store.SaveInterviewReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	if err := s.store.ReplacePerformanceScores(ctx, sessionID, performanceScores(sessionID, answer)); err != nil {
		slog.Error("Failed to save performance scores", "session_id", sessionID, "error", err)
	}

	slog.Info("Session report generated", "session_id", sessionID, "overall_score", report.OverallScore, "turns", len(transcripts))
	return report, nil
}

// GenerateAsync runs Generate in the background with its own deadline
func (s *ReportService) GenerateAsync(sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.Generate(ctx, sessionID, false); err != nil {
			slog.Error("Background report generation failed", "session_id", sessionID, "error", err)
		}
	}()
}

// analyse asks the model for the report, falling back to a neutral one
func (s *ReportService) analyse(ctx context.Context, interview *models.Interview, transcripts []models.InterviewTranscript) sessionReportAnswer {
	answer := sessionReportAnswer{
		Summary:         "The interview could not be analysed automatically.",
		Strengths:       "No strengths identified",
		Weaknesses:      "No weaknesses identified",
		Recommendations: "Practise answering out loud and try another session.",
		OverallScore:    50,
	}

	lines := make([]string, 0, len(transcripts))
	answers := 0
	for _, t := range transcripts {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if t.Speaker == models.SpeakerUser {
			answers++
		}
		lines = append(lines, t.Speaker+": "+t.Content)
	}
	if answers == 0 {
		answer.Summary = "The candidate did not answer any questions."
		answer.OverallScore = 0
		return answer
	}

	prompt, err := s.tmpl.Render(PromptSessionReport, sessionReportPrompt{
		Name:            interview.Name,
		Level:           interview.Level,
		Industry:        interview.Industry,
		Personality:     interview.Personality,
		ScoringGuidance: scoringGuidance(interview.Personality),
		Tone:            personalityTone(interview.Personality),
		Transcript:      lines,
	})
	if err != nil {
		slog.Error("Failed to render report prompt", "error", err)
		return answer
	}

	var parsed sessionReportAnswer
	if !askJSON(ctx, s.gen, "session_report", prompt, &parsed) {
		return answer
	}

	parsed.OverallScore = round1(clamp(parsed.OverallScore, 0, 100))
	if parsed.Summary == "" {
		parsed.Summary = "No summary provided"
	}
	if parsed.Strengths == "" {
		parsed.Strengths = answer.Strengths
	}
	if parsed.Weaknesses == "" {
		parsed.Weaknesses = answer.Weaknesses
	}
	if parsed.Recommendations == "" {
		parsed.Recommendations = "No recommendations provided"
	}
	return parsed
}

// performanceScores uses the model's metrics when present and otherwise
// derives the standard four from the overall score.
func performanceScores(sessionID string, answer sessionReportAnswer) []models.PerformanceScore {
	var scores []models.PerformanceScore
	for _, m := range answer.Metrics {
		name := strings.TrimSpace(m.Metric)
		if name == "" {
			continue
		}
		scores = append(scores, models.PerformanceScore{
			SessionID: sessionID,
			Metric:    name,
			Score:     round1(clamp(m.Score, 0, 100)),
			MaxScore:  100,
			Weight:    1,
		})
	}
	if len(scores) > 0 {
		return scores
	}

	base := answer.OverallScore
	derived := []struct {
		metric     string
		adjustment float64
	}{
		{"Communication", 0.1},
		{"Technical Knowledge", -0.05},
		{"Problem Solving", 0},
		{"Professionalism", 0.05},
	}
	for _, d := range derived {
		scores = append(scores, models.PerformanceScore{
			SessionID: sessionID,
			Metric:    d.metric,
			Score:     round1(clamp(base+base*d.adjustment, 0, 100)),
			MaxScore:  100,
			Weight:    1,
		})
	}
	return scores
}

func scoringGuidance(personality string) string {
	p := strings.ToLower(personality)
	switch {
	case containsAny(p, "strict", "tough", "demanding"):
		return "Be very strict and demanding. Only give high scores (80+) for exceptional performance. Average performance should score 50-70."
	case containsAny(p, "encouraging", "supportive", "friendly"):
		return "Be encouraging and supportive. Focus on potential and growth. Give higher scores (70+) for good effort and communication."
	case containsAny(p, "technical", "analytical"):
		return "Focus heavily on technical accuracy and problem-solving skills. Be precise in evaluation."
	default:
		return "Be balanced and fair in your evaluation. Consider both technical skills and communication."
	}
}

func personalityTone(personality string) string {
	p := strings.ToLower(personality)
	switch {
	case containsAny(p, "strict", "tough"):
		return "Be direct and honest in your feedback. Don't sugarcoat areas for improvement."
	case containsAny(p, "encouraging", "supportive"):
		return "Be positive and constructive. Focus on growth opportunities and potential."
	case containsAny(p, "technical", "analytical"):
		return "Be precise and detailed in your analysis. Focus on technical accuracy and methodology."
	default:
		return "Be professional and balanced in your tone."
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
