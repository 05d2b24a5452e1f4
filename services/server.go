package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/krshsl/prepmate/models"
	"github.com/krshsl/prepmate/repository"
	ws "github.com/krshsl/prepmate/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const timeoutCheckInterval = 30 * time.Second

// Server holds all server dependencies
type Server struct {
	config *Config
	repo   *repository.GORMRepository
	redis  *redis.Client

	geminiService      *GeminiService
	elevenLabsService  *ElevenLabsService
	audioCache         *AudioCache
	reportService      *ReportService
	timeoutService     *SessionTimeoutService
	aiMessageProcessor *AIMessageProcessor
	websocketHandler   *WebSocketHandler
	authService        *AuthService

	authEndpoints      *AuthEndpoints
	oauthEndpoints     *GoogleOAuthEndpoints
	interviewEndpoints *InterviewEndpoints
	sessionEndpoints   *SessionEndpoints
	examEndpoints      *ExamEndpoints
	jobEndpoints       *JobEndpoints
	profileEndpoints   *ProfileEndpoints
	waitlistEndpoints  *WaitlistEndpoints
	speechEndpoints    *SpeechEndpoints

	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewServer wires every service on top of the repository
func NewServer(config *Config, repo *repository.GORMRepository) (*Server, error) {
	if config.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}

	s := &Server{
		config: config,
		repo:   repo,
		wsHub:  ws.NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}

	prompts, err := DefaultPrompts()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	var states StateStore = NewMemoryStateStore()
	if config.Redis.URL != "" {
		opts, err := redis.ParseURL(config.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		s.redis = redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		states = NewRedisStateStore(s.redis)
		slog.Info("Redis state store initialized")
	} else {
		slog.Warn("REDIS_URL not set, OAuth state is kept in memory")
	}

	// AI services
	if config.AI.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, AI features will use fallbacks")
	}
	s.geminiService = NewGeminiService(config.AI, prompts)
	s.elevenLabsService = NewElevenLabsService(config.AI)
	if !s.elevenLabsService.Enabled() {
		slog.Warn("ELEVENLABS_API_KEY not set, interviews are text only")
	}
	s.audioCache = NewAudioCache(config.AI.AudioCacheDir)

	// Voice interview flow
	s.reportService = NewReportService(repo, s.geminiService, prompts)
	s.timeoutService = NewSessionTimeoutService(repo, s.reportService, config.WebSocket.SessionTimeout)
	s.timeoutService.OnEnd(s.geminiService.ClearSessionCache)
	s.aiMessageProcessor = NewAIMessageProcessor(s.geminiService, s.elevenLabsService, s.audioCache, s.timeoutService, repo)
	s.websocketHandler = NewWebSocketHandler(s.aiMessageProcessor, s.timeoutService)

	// Endpoints
	s.authService = NewAuthService(repo, config.JWT.Secret)
	s.authEndpoints = NewAuthEndpoints(s.authService)
	if config.OAuth.GoogleClientID != "" {
		s.oauthEndpoints = NewGoogleOAuthEndpoints(config.OAuth, states, s.authService)
		slog.Info("Google OAuth enabled")
	}
	s.interviewEndpoints = NewInterviewEndpoints(repo)
	s.sessionEndpoints = NewSessionEndpoints(repo, s.timeoutService, s.reportService)
	s.examEndpoints = NewExamEndpoints(NewExamService(repo, s.geminiService, prompts, config.Interview))
	s.jobEndpoints = NewJobEndpoints(NewJobService(repo, s.geminiService, prompts, config.Interview))
	s.profileEndpoints = NewProfileEndpoints(repo, s.geminiService, config.Uploads)
	s.speechEndpoints = NewSpeechEndpoints(s.elevenLabsService, s.geminiService, s.audioCache)

	var mailer Mailer
	if smtp := NewSMTPMailer(config.Mail); smtp.Enabled() {
		mailer = smtp
	}
	s.waitlistEndpoints = NewWaitlistEndpoints(repo, mailer)

	return s, nil
}

// requireAdmin authenticates and then checks the admin role
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return s.authService.Middleware(RequireAdmin(next))
}

func perMinute(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(limit, time.Minute)
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	aiLimit := perMinute(s.config.RateLimit.AIPerMinute)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		r.Route("/auth", func(r chi.Router) {
			r.Use(perMinute(s.config.RateLimit.AuthPerMinute))
			s.authEndpoints.RegisterRoutes(r)
			if s.oauthEndpoints != nil {
				s.oauthEndpoints.RegisterRoutes(r)
			}
		})

		s.waitlistEndpoints.RegisterRoutes(r, s.requireAdmin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			r.Get("/ws", s.websocketHandlerFunc)
			s.interviewEndpoints.RegisterRoutes(r)
			s.sessionEndpoints.RegisterRoutes(r)
			s.examEndpoints.RegisterRoutes(r, aiLimit)
			s.jobEndpoints.RegisterRoutes(r, aiLimit)
			s.profileEndpoints.RegisterRoutes(r)
			r.With(aiLimit).Group(s.speechEndpoints.RegisterRoutes)
		})
	})

	return r
}

// Start serves HTTP and runs the background loops until SIGINT or SIGTERM
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.wsHub.Run(ctx)
	go s.timeoutService.Run(ctx, timeoutCheckInterval)
	go s.geminiService.RunCacheJanitor(ctx)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("Server error", "error", err)
		stop()
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Warn("Failed to close redis client", "error", err)
		}
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, dbStatus, redisStatus := "ok", "up", "not configured"
	if err := s.repo.Ping(ctx); err != nil {
		dbStatus = "down"
		status = "degraded"
	}
	if s.redis != nil {
		redisStatus = "up"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "down"
			status = "degraded"
		}
	}

	code := http.StatusOK
	if dbStatus == "down" {
		code = http.StatusServiceUnavailable
	}
	cachedFiles, _, err := s.audioCache.Stats()
	if err != nil {
		slog.Warn("Failed to read audio cache stats", "error", err)
	}
	writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"redis":          redisStatus,
		"active_sockets": s.wsHub.Count(),
		"cached_audio":   cachedFiles,
		"text_to_speech": s.elevenLabsService.Enabled(),
	})
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "API v1", "version": "1.0.0"})
}

// websocketHandlerFunc attaches a socket to an active session of the user
func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, ErrUnauthorized, nil)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, fmt.Errorf("%w: session_id is required", ErrInvalidArgument), nil)
		return
	}
	session, err := s.repo.GetInterviewSessionWithDetails(r.Context(), sessionID, user.ID)
	if err != nil {
		writeError(w, fmt.Errorf("failed to get session: %w", err), nil)
		return
	}
	if session == nil {
		writeError(w, fmt.Errorf("%w: session %s", ErrNotFound, sessionID), nil)
		return
	}
	if session.Status != models.SessionStatusActive {
		writeError(w, fmt.Errorf("%w: session is %s", ErrConflict, session.Status), nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID, "session_id", sessionID)
	s.timeoutService.RegisterSession(sessionID, user.ID, session.InterviewID, len(session.Transcripts))

	client := s.wsHub.RegisterClient(conn, user.ID, sessionID)
	client.MessageHandler = s.websocketHandler.HandleWebSocketMessage

	go client.ReadPump()
	go client.WritePump()
	go s.websocketHandler.HandleWebSocketConnection(client)

	<-client.Done()
	slog.Info("WebSocket connection closed", "user_id", user.ID, "session_id", sessionID)
}
