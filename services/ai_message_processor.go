package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/krshsl/prepmate/models"
	"github.com/krshsl/prepmate/repository"
	ws "github.com/krshsl/prepmate/websocket"
)

const (
	minAudioSize = 8 * 1024 // smaller recordings are treated as silence
	turnTimeout  = 90 * time.Second
)

// AIMessageProcessor runs the voice interview conversation for connected clients
type AIMessageProcessor struct {
	geminiService  *GeminiService
	tts            *ElevenLabsService
	audioCache     *AudioCache
	timeoutService *SessionTimeoutService
	repo           *repository.GORMRepository
	locks          *keyedMutex
}

func NewAIMessageProcessor(
	geminiService *GeminiService,
	tts *ElevenLabsService,
	audioCache *AudioCache,
	timeoutService *SessionTimeoutService,
	repo *repository.GORMRepository,
) *AIMessageProcessor {
	return &AIMessageProcessor{
		geminiService:  geminiService,
		tts:            tts,
		audioCache:     audioCache,
		timeoutService: timeoutService,
		repo:           repo,
		locks:          newKeyedMutex(),
	}
}

// isEmptyAnswer reports whether a transcript carries no usable answer:
// blank, a single character, a bracketed noise tag or one word repeated.
func isEmptyAnswer(text string) bool {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if len([]rune(trimmed)) < 2 {
		return true
	}
	if strings.HasPrefix(lower, "[") && strings.HasSuffix(lower, "]") {
		return true
	}

	words := strings.Fields(lower)
	if len(words) > 1 {
		allSame := true
		for _, w := range words[1:] {
			if w != words[0] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}

	if len(words) <= 5 {
		for _, pat := range []string{"vocalization", "humming", "mumbling", "inaudible", "noise", "unintelligible", "silence"} {
			if strings.Contains(lower, pat) {
				return true
			}
		}
	}
	return false
}

// loadInterview returns the session's persona
func (p *AIMessageProcessor) loadInterview(ctx context.Context, sessionID string) (*models.Interview, error) {
	session, err := p.repo.GetInterviewSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	interview, err := p.repo.GetInterview(ctx, session.InterviewID)
	if err != nil {
		return nil, err
	}
	if interview == nil {
		return nil, fmt.Errorf("%w: interview %s", ErrNotFound, session.InterviewID)
	}
	return interview, nil
}

func (p *AIMessageProcessor) saveTranscript(ctx context.Context, sessionID, speaker, content string) {
	transcript := &models.InterviewTranscript{
		SessionID: sessionID,
		TurnOrder: p.timeoutService.NextTurn(sessionID),
		Speaker:   speaker,
		Content:   content,
		Timestamp: time.Now(),
	}
	if err := p.repo.CreateInterviewTranscript(ctx, transcript); err != nil {
		slog.Error("Failed to save transcript", "error", err, "session_id", sessionID, "speaker", speaker)
	}
}

// speak sends the agent's words as text and, when text to speech is configured, as audio
func (p *AIMessageProcessor) speak(ctx context.Context, client *ws.Client, interview *models.Interview, text string) {
	client.SendText(ws.TypeText, text)

	if !p.tts.Enabled() {
		return
	}
	audio, err := p.audioCache.Speak(ctx, p.tts, text, VoiceForInterview(interview))
	if err != nil {
		slog.Error("Failed to generate speech", "error", err, "session_id", client.SessionID)
		return
	}
	client.SendJSON(ws.Message{
		Type:            ws.TypeAudio,
		AudioDataBase64: base64.StdEncoding.EncodeToString(audio),
		MimeType:        "audio/mpeg",
		SessionID:       client.SessionID,
	})
}

func (p *AIMessageProcessor) sendError(client *ws.Client, message string) {
	client.SendText(ws.TypeError, message)
}

// AutoStartInterview greets the candidate when a session has no transcript yet
func (p *AIMessageProcessor) AutoStartInterview(client *ws.Client) {
	unlock := p.locks.Lock(client.SessionID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	existing, err := p.repo.GetInterviewTranscripts(ctx, client.SessionID)
	if err != nil {
		slog.Error("Failed to check existing transcripts", "error", err, "session_id", client.SessionID)
		return
	}
	if len(existing) > 0 {
		slog.Info("Interview already started", "session_id", client.SessionID, "existing_transcripts", len(existing))
		return
	}

	interview, err := p.loadInterview(ctx, client.SessionID)
	if err != nil {
		slog.Error("Failed to load interview for auto-start", "error", err, "session_id", client.SessionID)
		p.sendError(client, "Failed to retrieve interviewer details")
		return
	}

	topic := interview.Role
	if topic == "" {
		topic = interview.Industry
	}
	welcome := fmt.Sprintf("Hello! I'm %s, and I'll be conducting your %s interview today. Let's start with a brief introduction. Could you tell me about yourself and what brings you to this interview?",
		interview.Name, strings.TrimSpace(topic))

	p.saveTranscript(ctx, client.SessionID, models.SpeakerAgent, welcome)
	p.speak(ctx, client, interview, welcome)
	slog.Info("Auto-started interview", "session_id", client.SessionID, "interview", interview.Name)
}

// handleEmpty applies the three strikes rule for unusable answers
func (p *AIMessageProcessor) handleEmpty(ctx context.Context, client *ws.Client, interview *models.Interview) {
	count := p.timeoutService.IncrementEmptyResponse(client.SessionID)
	if count >= MaxEmptyResponses {
		p.saveTranscript(ctx, client.SessionID, models.SpeakerAgent, PhraseEarlyEnd)
		p.speak(ctx, client, interview, PhraseEarlyEnd)
		client.SendText(ws.TypeEndSession, "Session ended")
		go p.timeoutService.ConcludeSession(context.Background(), client.SessionID, "empty response limit reached")
		return
	}
	p.speak(ctx, client, interview, fmt.Sprintf("%s (Warning %d/%d)", PhraseEmptyAnswer, count, MaxEmptyResponses))
}

// respond records the candidate's answer and replies as the interviewer
func (p *AIMessageProcessor) respond(ctx context.Context, client *ws.Client, answer string) {
	interview, err := p.loadInterview(ctx, client.SessionID)
	if err != nil {
		slog.Error("Failed to load interview", "error", err, "session_id", client.SessionID)
		p.sendError(client, "Failed to retrieve interview session")
		return
	}

	if isEmptyAnswer(answer) {
		p.handleEmpty(ctx, client, interview)
		return
	}
	p.timeoutService.ResetEmptyResponse(client.SessionID)

	client.SendText(ws.TypeUserMessage, answer)
	history, err := p.repo.GetInterviewTranscripts(ctx, client.SessionID)
	if err != nil {
		slog.Error("Failed to get conversation history", "error", err, "session_id", client.SessionID)
		history = nil
	}
	p.saveTranscript(ctx, client.SessionID, models.SpeakerUser, answer)

	reply, err := p.geminiService.GenerateInterviewResponse(ctx, client.SessionID, interview, answer, history)
	if err != nil {
		slog.Error("Failed to generate AI response", "error", err, "session_id", client.SessionID)
		p.sendError(client, "Failed to generate AI response")
		return
	}

	p.saveTranscript(ctx, client.SessionID, models.SpeakerAgent, reply)
	p.speak(ctx, client, interview, reply)
}

// ProcessTextMessage handles a typed answer
func (p *AIMessageProcessor) ProcessTextMessage(client *ws.Client, content string) {
	unlock := p.locks.Lock(client.SessionID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	p.timeoutService.UpdateActivity(client.SessionID)
	p.respond(ctx, client, content)
}

// ProcessCodeMessage handles a code submission as an answer
func (p *AIMessageProcessor) ProcessCodeMessage(client *ws.Client, content, language string) {
	if strings.TrimSpace(content) == "" {
		p.ProcessTextMessage(client, "")
		return
	}
	if language == "" {
		language = "text"
	}
	p.ProcessTextMessage(client, fmt.Sprintf("Code submission in %s:\n%s", language, content))
}

// ProcessAudioMessage transcribes a recorded answer and handles it like text
func (p *AIMessageProcessor) ProcessAudioMessage(client *ws.Client, audio []byte, mimeType string) {
	unlock := p.locks.Lock(client.SessionID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	p.timeoutService.UpdateActivity(client.SessionID)

	if len(audio) < minAudioSize {
		slog.Info("Audio below minimum size, treating as silence", "session_id", client.SessionID, "audio_size", len(audio))
		p.respond(ctx, client, "")
		return
	}

	transcript, err := p.geminiService.Transcribe(ctx, audio, mimeType)
	if err != nil {
		slog.Error("Failed to transcribe audio", "error", err, "session_id", client.SessionID)
		p.sendError(client, "Failed to transcribe audio")
		return
	}
	p.respond(ctx, client, transcript)
}

// ProcessAudioChunk buffers chunked recordings and processes them once complete
func (p *AIMessageProcessor) ProcessAudioChunk(client *ws.Client, chunk []byte, chunkIndex, totalChunks int, isLastChunk bool, mimeType string) {
	if err := p.timeoutService.AddAudioChunk(client.SessionID, chunk, chunkIndex, totalChunks); err != nil {
		slog.Error("Failed to store audio chunk", "error", err, "session_id", client.SessionID)
		p.sendError(client, "Invalid audio chunk")
		return
	}
	if !isLastChunk {
		return
	}

	audio, err := p.timeoutService.ReconstructAudio(client.SessionID)
	if err != nil {
		slog.Error("Failed to reconstruct audio from chunks", "error", err, "session_id", client.SessionID)
		p.sendError(client, "Failed to reconstruct audio from chunks")
		return
	}
	p.ProcessAudioMessage(client, audio, mimeType)
}
