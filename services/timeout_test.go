package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/krshsl/prepmate/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSessionStore backs both the timeout and the report services
type memSessionStore struct {
	mu          sync.Mutex
	sessions    map[string]models.InterviewSession
	interviews  map[string]models.Interview
	transcripts map[string][]models.InterviewTranscript
	reports     map[string]models.InterviewReport
	scores      map[string][]models.PerformanceScore
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions:    make(map[string]models.InterviewSession),
		interviews:  make(map[string]models.Interview),
		transcripts: make(map[string][]models.InterviewTranscript),
		reports:     make(map[string]models.InterviewReport),
		scores:      make(map[string][]models.PerformanceScore),
	}
}

func (s *memSessionStore) GetInterviewSession(_ context.Context, sessionID string) (*models.InterviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *memSessionStore) UpdateInterviewSession(_ context.Context, session *models.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *memSessionStore) GetInterview(_ context.Context, interviewID string) (*models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	interview, ok := s.interviews[interviewID]
	if !ok {
		return nil, nil
	}
	return &interview, nil
}

func (s *memSessionStore) GetInterviewTranscripts(_ context.Context, sessionID string) ([]models.InterviewTranscript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.InterviewTranscript(nil), s.transcripts[sessionID]...), nil
}

func (s *memSessionStore) GetInterviewReport(_ context.Context, sessionID string) (*models.InterviewReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[sessionID]
	if !ok {
		return nil, nil
	}
	return &report, nil
}

func (s *memSessionStore) SaveInterviewReport(_ context.Context, report *models.InterviewReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.SessionID] = *report
	return nil
}

func (s *memSessionStore) ReplacePerformanceScores(_ context.Context, sessionID string, scores []models.PerformanceScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[sessionID] = scores
	return nil
}

func (s *memSessionStore) addSession(id string, turns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interviews["interview-1"] = models.Interview{ID: "interview-1", Name: "Sarah Chen", Personality: "Strict and demanding", Level: "senior", Industry: "Technology"}
	s.sessions[id] = models.InterviewSession{
		ID:          id,
		UserID:      "user-1",
		InterviewID: "interview-1",
		Status:      models.SessionStatusActive,
		StartedAt:   time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	for i, content := range turns {
		speaker := models.SpeakerAgent
		if i%2 == 1 {
			speaker = models.SpeakerUser
		}
		s.transcripts[id] = append(s.transcripts[id], models.InterviewTranscript{SessionID: id, TurnOrder: i + 1, Speaker: speaker, Content: content})
	}
}

func newTestTimeoutService(store *memSessionStore, gen Generator) (*SessionTimeoutService, *time.Time) {
	reports := NewReportService(store, gen, testPrompts())
	svc := NewSessionTimeoutService(store, reports, time.Minute)
	now := time.Date(2026, 2, 1, 9, 10, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestSessionTimeoutTurnsAndEmptyResponses(t *testing.T) {
	svc, _ := newTestTimeoutService(newMemSessionStore(), newStubGenerator(nil))

	assert.Equal(t, 0, svc.NextTurn("missing"))

	svc.RegisterSession("s1", "user-1", "interview-1", 2)
	assert.True(t, svc.IsActive("s1"))
	assert.Equal(t, 3, svc.NextTurn("s1"))
	assert.Equal(t, 4, svc.NextTurn("s1"))

	svc.RegisterSession("s1", "user-1", "interview-1", 0)
	assert.Equal(t, 5, svc.NextTurn("s1"), "re-registering keeps the turn count")

	assert.Equal(t, 1, svc.IncrementEmptyResponse("s1"))
	assert.Equal(t, 2, svc.IncrementEmptyResponse("s1"))
	svc.ResetEmptyResponse("s1")
	assert.Equal(t, 1, svc.IncrementEmptyResponse("s1"))
}

func TestSessionTimeoutAudioChunks(t *testing.T) {
	svc, _ := newTestTimeoutService(newMemSessionStore(), newStubGenerator(nil))
	svc.RegisterSession("s1", "user-1", "interview-1", 0)

	assert.ErrorIs(t, svc.AddAudioChunk("other", []byte("x"), 0, 1), ErrNotFound)
	assert.ErrorIs(t, svc.AddAudioChunk("s1", []byte("x"), 2, 2), ErrInvalidArgument)
	assert.ErrorIs(t, svc.AddAudioChunk("s1", []byte("x"), 0, 0), ErrInvalidArgument)

	require.NoError(t, svc.AddAudioChunk("s1", []byte("world"), 1, 2))
	require.NoError(t, svc.AddAudioChunk("s1", []byte("hello "), 0, 2))
	audio, err := svc.ReconstructAudio("s1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(audio))

	audio, err = svc.ReconstructAudio("s1")
	require.NoError(t, err)
	assert.Empty(t, audio, "chunks are cleared after reconstruction")
}

func TestSessionTimeoutAudioChunksRecoverAfterLostChunk(t *testing.T) {
	svc, _ := newTestTimeoutService(newMemSessionStore(), newStubGenerator(nil))
	svc.RegisterSession("s1", "user-1", "interview-1", 0)

	for _, i := range []int{0, 1, 3} {
		require.NoError(t, svc.AddAudioChunk("s1", []byte{byte('a' + i)}, i, 4))
	}
	_, err := svc.ReconstructAudio("s1")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	for _, rec := range []string{"xy", "pq"} {
		require.NoError(t, svc.AddAudioChunk("s1", []byte{rec[0]}, 0, 2))
		require.NoError(t, svc.AddAudioChunk("s1", []byte{rec[1]}, 1, 2))
		audio, err := svc.ReconstructAudio("s1")
		require.NoError(t, err)
		assert.Equal(t, rec, string(audio))
	}
}

func TestSessionTimeoutAudioChunksNewRecordingReplacesPartialOne(t *testing.T) {
	svc, _ := newTestTimeoutService(newMemSessionStore(), newStubGenerator(nil))
	svc.RegisterSession("s1", "user-1", "interview-1", 0)

	require.NoError(t, svc.AddAudioChunk("s1", []byte("a"), 0, 3))
	require.NoError(t, svc.AddAudioChunk("s1", []byte("b"), 2, 3))

	require.NoError(t, svc.AddAudioChunk("s1", []byte("x"), 0, 2))
	require.NoError(t, svc.AddAudioChunk("s1", []byte("y"), 1, 2))
	audio, err := svc.ReconstructAudio("s1")
	require.NoError(t, err)
	assert.Equal(t, "xy", string(audio))
}

func TestSessionTimeoutAbandonsSilentSessions(t *testing.T) {
	store := newMemSessionStore()
	store.addSession("s1", "Hello! Welcome to your interview.")
	svc, now := newTestTimeoutService(store, newStubGenerator(nil))

	var ended []string
	svc.OnEnd(func(id string) { ended = append(ended, id) })
	svc.RegisterSession("s1", "user-1", "interview-1", 1)

	*now = now.Add(30 * time.Second)
	svc.checkTimeouts(context.Background())
	assert.True(t, svc.IsActive("s1"))

	*now = now.Add(2 * time.Minute)
	svc.checkTimeouts(context.Background())
	assert.False(t, svc.IsActive("s1"))
	assert.Equal(t, []string{"s1"}, ended)

	session, _ := store.GetInterviewSession(context.Background(), "s1")
	assert.Equal(t, models.SessionStatusAbandoned, session.Status)
	require.NotNil(t, session.EndedAt)
	assert.Equal(t, 750, session.Duration)
	assert.Empty(t, store.reports)
}

func TestSessionTimeoutConcludesWithReport(t *testing.T) {
	store := newMemSessionStore()
	store.addSession("s1", "Tell me about yourself.", "I build Go services.", "Why Go?", "Simplicity and speed.")
	svc, now := newTestTimeoutService(store, newStubGenerator(nil))
	svc.RegisterSession("s1", "user-1", "interview-1", 4)

	*now = now.Add(5 * time.Minute)
	svc.checkTimeouts(context.Background())

	session, _ := store.GetInterviewSession(context.Background(), "s1")
	assert.Equal(t, models.SessionStatusCompleted, session.Status)

	report, ok := store.reports["s1"]
	require.True(t, ok)
	assert.Equal(t, 50.0, report.OverallScore)
	assert.Len(t, store.scores["s1"], 4)
}

func TestSessionFinishIsIdempotent(t *testing.T) {
	store := newMemSessionStore()
	store.addSession("s1")
	svc, now := newTestTimeoutService(store, newStubGenerator(nil))
	svc.RegisterSession("s1", "user-1", "interview-1", 0)

	first, err := svc.Finish(context.Background(), "s1", models.SessionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, first.Status)

	*now = now.Add(time.Hour)
	second, err := svc.Finish(context.Background(), "s1", models.SessionStatusAbandoned)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, second.Status)
	assert.Equal(t, first.Duration, second.Duration)

	_, err = svc.Finish(context.Background(), "missing", models.SessionStatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
}
