package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/krshsl/prepmate/models"
)

const (
	DefaultSessionTimeout = 5 * time.Minute
	MaxEmptyResponses     = 3
	maxAudioChunks        = 200
)

// SessionStore is the persistence the timeout service needs
type SessionStore interface {
	GetInterviewSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	UpdateInterviewSession(ctx context.Context, session *models.InterviewSession) error
}

// SessionTimeoutService tracks live voice sessions, concludes the ones that
// go idle and owns the per-session state of the websocket flow.
type SessionTimeoutService struct {
	store          SessionStore
	reports        *ReportService
	timeout        time.Duration
	onEnd          []func(sessionID string)
	activeSessions map[string]*ActiveSession
	mutex          sync.RWMutex
	now            func() time.Time
}

type ActiveSession struct {
	SessionID    string
	UserID       string
	InterviewID  string
	LastActivity time.Time
	TurnCount    int
	// Audio chunking support
	AudioChunks map[int][]byte
	TotalChunks int
	// Penalty tracking
	EmptyResponseCount int
}

func NewSessionTimeoutService(store SessionStore, reports *ReportService, timeout time.Duration) *SessionTimeoutService {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionTimeoutService{
		store:          store,
		reports:        reports,
		timeout:        timeout,
		activeSessions: make(map[string]*ActiveSession),
		now:            time.Now,
	}
}

// OnEnd registers a callback run whenever a session stops being tracked
func (s *SessionTimeoutService) OnEnd(fn func(sessionID string)) {
	s.onEnd = append(s.onEnd, fn)
}

// RegisterSession starts tracking a session; turns is the number of transcript
// turns already stored.
func (s *SessionTimeoutService) RegisterSession(sessionID, userID, interviewID string, turns int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existing, ok := s.activeSessions[sessionID]; ok {
		existing.LastActivity = s.now()
		return
	}
	s.activeSessions[sessionID] = &ActiveSession{
		SessionID:    sessionID,
		UserID:       userID,
		InterviewID:  interviewID,
		LastActivity: s.now(),
		TurnCount:    turns,
		AudioChunks:  make(map[int][]byte),
	}
	slog.Info("Session registered for timeout tracking", "session_id", sessionID, "user_id", userID)
}

// IsActive reports whether a session is being tracked
func (s *SessionTimeoutService) IsActive(sessionID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.activeSessions[sessionID]
	return ok
}

func (s *SessionTimeoutService) UpdateActivity(sessionID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if session, exists := s.activeSessions[sessionID]; exists {
		session.LastActivity = s.now()
	}
}

// NextTurn reserves the next transcript turn number for a session
func (s *SessionTimeoutService) NextTurn(sessionID string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, exists := s.activeSessions[sessionID]
	if !exists {
		return 0
	}
	session.TurnCount++
	session.LastActivity = s.now()
	return session.TurnCount
}

// IncrementEmptyResponse records an empty or unintelligible answer and returns the count
func (s *SessionTimeoutService) IncrementEmptyResponse(sessionID string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if session, exists := s.activeSessions[sessionID]; exists {
		session.EmptyResponseCount++
		slog.Info("Empty response recorded", "session_id", sessionID, "count", session.EmptyResponseCount)
		return session.EmptyResponseCount
	}
	return 0
}

func (s *SessionTimeoutService) ResetEmptyResponse(sessionID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if session, exists := s.activeSessions[sessionID]; exists {
		session.EmptyResponseCount = 0
	}
}

// EndSession stops tracking a session without touching the database
func (s *SessionTimeoutService) EndSession(sessionID string) {
	s.mutex.Lock()
	_, exists := s.activeSessions[sessionID]
	delete(s.activeSessions, sessionID)
	s.mutex.Unlock()

	if !exists {
		return
	}
	for _, fn := range s.onEnd {
		fn(sessionID)
	}
	slog.Info("Session removed from timeout tracking", "session_id", sessionID)
}

// Finish marks the session ended in the database and stops tracking it.
// Finishing an already ended session returns it unchanged.
func (s *SessionTimeoutService) Finish(ctx context.Context, sessionID, status string) (*models.InterviewSession, error) {
	defer s.EndSession(sessionID)

	session, err := s.store.GetInterviewSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if session.Status != models.SessionStatusActive {
		return session, nil
	}

	now := s.now()
	session.Status = status
	session.EndedAt = &now
	session.Duration = int(now.Sub(session.StartedAt).Seconds())
	if err := s.store.UpdateInterviewSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session status: %w", err)
	}

	if status == models.SessionStatusCompleted {
		InterviewsCompletedTotal.WithLabelValues("voice").Inc()
	}
	slog.Info("Session finished", "session_id", sessionID, "status", status, "duration", session.Duration)
	return session, nil
}

// ConcludeSession completes a session and generates its report. Sessions in
// which the candidate never spoke are marked abandoned and get no report.
func (s *SessionTimeoutService) ConcludeSession(ctx context.Context, sessionID, reason string) {
	s.mutex.RLock()
	active, exists := s.activeSessions[sessionID]
	var turns int
	if exists {
		turns = active.TurnCount
	}
	s.mutex.RUnlock()

	status := models.SessionStatusCompleted
	if exists && turns <= 1 {
		status = models.SessionStatusAbandoned
	}

	slog.Info("Concluding session", "session_id", sessionID, "reason", reason, "status", status)
	if _, err := s.Finish(ctx, sessionID, status); err != nil {
		slog.Error("Failed to conclude session", "session_id", sessionID, "error", err)
		return
	}
	if status != models.SessionStatusCompleted || s.reports == nil {
		return
	}
	if _, err := s.reports.Generate(ctx, sessionID, false); err != nil {
		slog.Error("Failed to generate report for concluded session", "session_id", sessionID, "error", err)
	}
}

// Run checks for idle sessions every interval until ctx is cancelled
func (s *SessionTimeoutService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkTimeouts(ctx)
		}
	}
}

// expired returns the sessions idle for longer than the timeout
func (s *SessionTimeoutService) expired() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := s.now()
	var ids []string
	for id, session := range s.activeSessions {
		if now.Sub(session.LastActivity) > s.timeout {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *SessionTimeoutService) checkTimeouts(ctx context.Context) {
	for _, sessionID := range s.expired() {
		slog.Info("Session timed out", "session_id", sessionID, "timeout", s.timeout)
		reportCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		s.ConcludeSession(reportCtx, sessionID, "inactivity timeout")
		cancel()
	}
}

// AddAudioChunk stores one chunk of a recording split by the client
func (s *SessionTimeoutService) AddAudioChunk(sessionID string, chunkData []byte, chunkIndex, totalChunks int) error {
	if totalChunks <= 0 || totalChunks > maxAudioChunks || chunkIndex < 0 || chunkIndex >= totalChunks {
		return fmt.Errorf("%w: chunk %d of %d", ErrInvalidArgument, chunkIndex, totalChunks)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, exists := s.activeSessions[sessionID]
	if !exists {
		return fmt.Errorf("%w: session %s is not active", ErrNotFound, sessionID)
	}
	// a different chunk count means a new recording started
	if session.TotalChunks != 0 && session.TotalChunks != totalChunks {
		session.AudioChunks = make(map[int][]byte)
	}
	chunk := make([]byte, len(chunkData))
	copy(chunk, chunkData)
	session.AudioChunks[chunkIndex] = chunk
	session.TotalChunks = totalChunks
	session.LastActivity = s.now()
	return nil
}

// ReconstructAudio joins the stored chunks in order. The chunks are cleared
// even when the recording is incomplete.
func (s *SessionTimeoutService) ReconstructAudio(sessionID string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, exists := s.activeSessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("%w: session %s is not active", ErrNotFound, sessionID)
	}

	chunks, total := session.AudioChunks, session.TotalChunks
	// an incomplete recording is dropped as well
	session.AudioChunks = make(map[int][]byte)
	session.TotalChunks = 0

	if len(chunks) != total {
		return nil, fmt.Errorf("%w: incomplete chunks: have %d, expected %d", ErrInvalidArgument, len(chunks), total)
	}

	totalSize := 0
	for i := 0; i < total; i++ {
		chunk, ok := chunks[i]
		if !ok {
			return nil, fmt.Errorf("%w: missing chunk %d", ErrInvalidArgument, i)
		}
		totalSize += len(chunk)
	}

	audio := make([]byte, 0, totalSize)
	for i := 0; i < total; i++ {
		audio = append(audio, chunks[i]...)
	}
	return audio, nil
}
