package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/krshsl/prepmate/models"

	"google.golang.org/genai"
)

const (
	DefaultModelName     = "gemini-2.5-flash"
	MaxConversationTurns = 20 // turns before the history is folded into a summary
	historyWindow        = 10
	providerGemini       = "gemini"
)

// Generator produces text from a prompt. GenerateJSON asks the model for a
// JSON response; callers still run the result through DecodeJSON.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Transcriber turns recorded speech into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// DocumentReader extracts plain text from an uploaded document
type DocumentReader interface {
	ExtractDocumentText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// GeminiService handles all Gemini AI operations. The SDK client is created
// on first use so the server starts without network access.
type GeminiService struct {
	apiKey          string
	model           string
	retryMaxElapsed time.Duration
	prompts         *Prompts

	clientOnce sync.Once
	client     *genai.Client
	clientErr  error

	// Per-session conversation state for the live voice interview
	sessionCaches map[string]*SessionCache
	cacheMutex    sync.RWMutex
}

// SessionCache holds the rolling conversation state of a voice interview
type SessionCache struct {
	ConversationSummary string
	TurnCount           int
	LastActivity        time.Time
	Interview           *models.Interview
}

func NewGeminiService(cfg AIConfig, prompts *Prompts) *GeminiService {
	model := cfg.GeminiModel
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiService{
		apiKey:          cfg.GeminiAPIKey,
		model:           model,
		retryMaxElapsed: cfg.RetryMaxElapsed,
		prompts:         prompts,
		sessionCaches:   make(map[string]*SessionCache),
	}
}

func (g *GeminiService) genaiClient(ctx context.Context) (*genai.Client, error) {
	g.clientOnce.Do(func() {
		g.client, g.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if g.clientErr != nil {
			slog.Error("Failed to create genai client", "error", g.clientErr)
		}
	})
	if g.clientErr != nil {
		return nil, fmt.Errorf("%w: genai client: %v", ErrUpstream, g.clientErr)
	}
	return g.client, nil
}

func (g *GeminiService) backoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxInterval = 5 * time.Second
	expo.MaxElapsedTime = g.retryMaxElapsed
	if expo.MaxElapsedTime <= 0 {
		expo.MaxElapsedTime = 30 * time.Second
	}
	return expo
}

// retryable reports whether a Gemini error is worth another attempt
func retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// generateContent calls the model with retries and records metrics
func (g *GeminiService) generateContent(ctx context.Context, operation string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	client, err := g.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	var text string
	op := func() error {
		result, err := client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			slog.Warn("Gemini call failed, retrying", "operation", operation, "error", err)
			return err
		}
		text = result.Text()
		return nil
	}

	err = backoff.Retry(op, backoff.WithContext(g.backoffConfig(), ctx))
	observeAI(providerGemini, operation, start, err)
	if err != nil {
		return "", fmt.Errorf("%w: gemini %s: %v", ErrUpstream, operation, err)
	}
	return text, nil
}

// Generate returns the model's text response to a single prompt
func (g *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	return g.generateContent(ctx, "generate", genai.Text(prompt), nil)
}

// GenerateJSON asks the model to answer with application/json
func (g *GeminiService) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	return g.generateContent(ctx, "generate_json", genai.Text(prompt), config)
}

// Transcribe converts speech to text. mimeType is sniffed when empty.
func (g *GeminiService) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrInvalidArgument)
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(audio).String()
	}
	// Browsers record opus in a webm container; drop codec parameters
	mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])

	prompt, err := g.prompts.Render(PromptTranscribe, nil)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: audio}},
		}, genai.RoleUser),
	}

	transcript, err := g.generateContent(ctx, "transcribe", contents, nil)
	if err != nil {
		return "", err
	}
	transcript = strings.TrimSpace(transcript)
	slog.Info("Audio transcribed", "size", len(audio), "mime", mimeType, "transcript_length", len(transcript))
	return transcript, nil
}

// ExtractDocumentText reads a PDF or Word document through the model
func (g *GeminiService) ExtractDocumentText(ctx context.Context, data []byte, mimeType string) (string, error) {
	prompt, err := g.prompts.Render(PromptResumeExtract, nil)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		}, genai.RoleUser),
	}
	text, err := g.generateContent(ctx, "extract_document", contents, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GetOrCreateSessionCache gets or creates the conversation state for a session
func (g *GeminiService) GetOrCreateSessionCache(sessionID string, interview *models.Interview) *SessionCache {
	g.cacheMutex.Lock()
	defer g.cacheMutex.Unlock()

	if cache, exists := g.sessionCaches[sessionID]; exists {
		cache.LastActivity = time.Now()
		return cache
	}

	sessionCache := &SessionCache{
		LastActivity: time.Now(),
		Interview:    interview,
	}
	g.sessionCaches[sessionID] = sessionCache
	slog.Info("Created session cache", "session_id", sessionID, "interview", interview.Name)
	return sessionCache
}

type interviewerPromptData struct {
	Name        string
	Role        string
	Personality string
	Description string
	Industry    string
	Level       string
	Summary     string
}

// GenerateInterviewResponse produces the interviewer's next spoken turn
func (g *GeminiService) GenerateInterviewResponse(ctx context.Context, sessionID string, interview *models.Interview, userMessage string, history []models.InterviewTranscript) (string, error) {
	sessionCache := g.GetOrCreateSessionCache(sessionID, interview)

	g.cacheMutex.RLock()
	turns := sessionCache.TurnCount
	g.cacheMutex.RUnlock()
	if turns >= MaxConversationTurns {
		slog.Info("Conversation too long, creating summary", "session_id", sessionID, "turns", turns)
		if err := g.summarizeConversation(ctx, sessionID, history); err != nil {
			slog.Error("Failed to summarize conversation", "error", err, "session_id", sessionID)
		}
	}

	g.cacheMutex.RLock()
	summary := sessionCache.ConversationSummary
	g.cacheMutex.RUnlock()

	contents := buildConversationContents(history, summary)
	if strings.TrimSpace(userMessage) != "" {
		contents = append(contents, genai.NewContentFromText(userMessage, genai.RoleUser))
	} else {
		contents = append(contents, genai.NewContentFromText("[Candidate sent empty or unintelligible audio]", genai.RoleUser))
	}

	systemInstruction, err := g.prompts.Render(PromptInterviewer, interviewerPromptData{
		Name:        interview.Name,
		Role:        interview.Role,
		Personality: interview.Personality,
		Description: interview.Description,
		Industry:    interview.Industry,
		Level:       interview.Level,
		Summary:     summary,
	})
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}
	response, err := g.generateContent(ctx, "interview_turn", contents, config)
	if err != nil {
		return "", err
	}

	g.cacheMutex.Lock()
	sessionCache.TurnCount++
	sessionCache.LastActivity = time.Now()
	turns = sessionCache.TurnCount
	g.cacheMutex.Unlock()

	slog.Info("Generated interview response", "session_id", sessionID, "turns", turns, "response_length", len(response))
	return response, nil
}

func buildConversationContents(transcripts []models.InterviewTranscript, summary string) []*genai.Content {
	var contents []*genai.Content

	if summary != "" {
		contents = append(contents, genai.NewContentFromText(
			fmt.Sprintf("Previous conversation summary: %s", summary),
			genai.RoleModel,
		))
	}

	startIdx := 0
	if len(transcripts) > historyWindow {
		startIdx = len(transcripts) - historyWindow
	}

	for _, transcript := range transcripts[startIdx:] {
		if strings.TrimSpace(transcript.Content) == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if transcript.Speaker == models.SpeakerAgent {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(transcript.Content, role))
	}

	return contents
}

func (g *GeminiService) summarizeConversation(ctx context.Context, sessionID string, transcripts []models.InterviewTranscript) error {
	var conversation strings.Builder
	for _, transcript := range transcripts {
		fmt.Fprintf(&conversation, "%s: %s\n", transcript.Speaker, transcript.Content)
	}

	summary, err := g.Generate(ctx, fmt.Sprintf(`Summarize the following interview conversation concisely, focusing on
key topics discussed, the candidate's answers and any areas that need follow-up.

Conversation:
%s

Provide a clear, concise summary (max 300 words).`, conversation.String()))
	if err != nil {
		return fmt.Errorf("failed to generate summary: %w", err)
	}

	g.cacheMutex.Lock()
	defer g.cacheMutex.Unlock()
	if sessionCache, exists := g.sessionCaches[sessionID]; exists {
		sessionCache.ConversationSummary = summary
		sessionCache.TurnCount = 0
		slog.Info("Updated session cache with summary", "session_id", sessionID, "summary_length", len(summary))
	}
	return nil
}

// RunCacheJanitor drops conversation state idle for more than two hours until ctx ends
func (g *GeminiService) RunCacheJanitor(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.cacheMutex.Lock()
			for sessionID, cache := range g.sessionCaches {
				if now.Sub(cache.LastActivity) > 2*time.Hour {
					delete(g.sessionCaches, sessionID)
					slog.Info("Cleaned up stale session cache", "session_id", sessionID)
				}
			}
			g.cacheMutex.Unlock()
		}
	}
}

// ClearSessionCache removes a session cache (called when interview ends)
func (g *GeminiService) ClearSessionCache(sessionID string) {
	g.cacheMutex.Lock()
	defer g.cacheMutex.Unlock()

	delete(g.sessionCaches, sessionID)
	slog.Info("Cleared session cache", "session_id", sessionID)
}
