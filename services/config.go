package services

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	OAuth     OAuthConfig
	Uploads   UploadConfig
	Mail      MailConfig
	Log       LogConfig
	Interview InterviewConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey      string
	GeminiModel       string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	AudioCacheDir     string
	RetryMaxElapsed   time.Duration
}

type JWTConfig struct {
	Secret string
}

type WebSocketConfig struct {
	AllowedOrigins string
	SessionTimeout time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	AuthPerMinute int
	AIPerMinute   int
}

type RedisConfig struct {
	URL string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	FrontendURL        string
}

type UploadConfig struct {
	Dir       string
	MaxSizeMB int64
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// InterviewConfig tunes the exam and job interview flows
type InterviewConfig struct {
	CrossQuestionThreshold float64 // answers scoring below this (0-10) get a follow-up
	MaxCrossQuestions      int
	QuestionsPerRound      int
	ExamQuestionCount      int
	ExamTimeLimitMinutes   int
	ExamGrace              time.Duration
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("websocket.session_timeout", "5m")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.retry_max_elapsed", "30s")
	viper.SetDefault("elevenlabs.api_key", "")
	viper.SetDefault("elevenlabs.voice_id", "")
	viper.SetDefault("elevenlabs.cache_dir", "audio_cache")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("cors.allowed_origins", "http://localhost:5173")
	viper.SetDefault("ratelimit.auth_per_minute", 20)
	viper.SetDefault("ratelimit.ai_per_minute", 30)
	viper.SetDefault("redis.url", "")
	viper.SetDefault("oauth.google_redirect_url", "http://localhost:8080/api/v1/auth/google/callback")
	viper.SetDefault("oauth.frontend_url", "http://localhost:5173")
	viper.SetDefault("uploads.dir", "uploads")
	viper.SetDefault("uploads.max_size_mb", 5)
	viper.SetDefault("mail.port", 587)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.max_size_mb", 50)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 28)
	viper.SetDefault("interview.cross_question_threshold", 6)
	viper.SetDefault("interview.max_cross_questions", 3)
	viper.SetDefault("interview.questions_per_round", 3)
	viper.SetDefault("interview.exam_question_count", 5)
	viper.SetDefault("interview.exam_time_limit_minutes", 30)
	viper.SetDefault("interview.exam_grace", "1m")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("websocket.session_timeout", "WEBSOCKET_SESSION_TIMEOUT")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("gemini.retry_max_elapsed", "GEMINI_RETRY_MAX_ELAPSED")
	viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	viper.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	viper.BindEnv("elevenlabs.cache_dir", "ELEVENLABS_CACHE_DIR")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")
	viper.BindEnv("ratelimit.auth_per_minute", "RATE_LIMIT_AUTH_PER_MINUTE")
	viper.BindEnv("ratelimit.ai_per_minute", "RATE_LIMIT_AI_PER_MINUTE")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("oauth.google_client_id", "GOOGLE_CLIENT_ID")
	viper.BindEnv("oauth.google_client_secret", "GOOGLE_CLIENT_SECRET")
	viper.BindEnv("oauth.google_redirect_url", "GOOGLE_REDIRECT_URL")
	viper.BindEnv("oauth.frontend_url", "FRONTEND_URL")
	viper.BindEnv("uploads.dir", "UPLOADS_DIR")
	viper.BindEnv("uploads.max_size_mb", "UPLOADS_MAX_SIZE_MB")
	viper.BindEnv("mail.host", "SMTP_HOST")
	viper.BindEnv("mail.port", "SMTP_PORT")
	viper.BindEnv("mail.username", "SMTP_USERNAME")
	viper.BindEnv("mail.password", "SMTP_PASSWORD")
	viper.BindEnv("mail.from", "SMTP_FROM")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.file", "LOG_FILE")
	viper.BindEnv("log.max_size_mb", "LOG_MAX_SIZE_MB")
	viper.BindEnv("log.max_backups", "LOG_MAX_BACKUPS")
	viper.BindEnv("log.max_age_days", "LOG_MAX_AGE_DAYS")
	viper.BindEnv("interview.cross_question_threshold", "CROSS_QUESTION_THRESHOLD")
	viper.BindEnv("interview.max_cross_questions", "MAX_CROSS_QUESTIONS")
	viper.BindEnv("interview.questions_per_round", "QUESTIONS_PER_ROUND")
	viper.BindEnv("interview.exam_question_count", "EXAM_QUESTION_COUNT")
	viper.BindEnv("interview.exam_time_limit_minutes", "EXAM_TIME_LIMIT_MINUTES")
	viper.BindEnv("interview.exam_grace", "EXAM_GRACE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey:      viper.GetString("gemini.api_key"),
			GeminiModel:       viper.GetString("gemini.model"),
			ElevenLabsKey:     viper.GetString("elevenlabs.api_key"),
			ElevenLabsVoiceID: viper.GetString("elevenlabs.voice_id"),
			AudioCacheDir:     viper.GetString("elevenlabs.cache_dir"),
			RetryMaxElapsed:   viper.GetDuration("gemini.retry_max_elapsed"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
			SessionTimeout: viper.GetDuration("websocket.session_timeout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(viper.GetString("cors.allowed_origins")),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: viper.GetInt("ratelimit.auth_per_minute"),
			AIPerMinute:   viper.GetInt("ratelimit.ai_per_minute"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     viper.GetString("oauth.google_client_id"),
			GoogleClientSecret: viper.GetString("oauth.google_client_secret"),
			GoogleRedirectURL:  viper.GetString("oauth.google_redirect_url"),
			FrontendURL:        viper.GetString("oauth.frontend_url"),
		},
		Uploads: UploadConfig{
			Dir:       viper.GetString("uploads.dir"),
			MaxSizeMB: viper.GetInt64("uploads.max_size_mb"),
		},
		Mail: MailConfig{
			Host:     viper.GetString("mail.host"),
			Port:     viper.GetInt("mail.port"),
			Username: viper.GetString("mail.username"),
			Password: viper.GetString("mail.password"),
			From:     viper.GetString("mail.from"),
		},
		Log: LogConfig{
			Level:      viper.GetString("log.level"),
			File:       viper.GetString("log.file"),
			MaxSizeMB:  viper.GetInt("log.max_size_mb"),
			MaxBackups: viper.GetInt("log.max_backups"),
			MaxAgeDays: viper.GetInt("log.max_age_days"),
		},
		Interview: InterviewConfig{
			CrossQuestionThreshold: viper.GetFloat64("interview.cross_question_threshold"),
			MaxCrossQuestions:      viper.GetInt("interview.max_cross_questions"),
			QuestionsPerRound:      atLeast(viper.GetInt("interview.questions_per_round"), 1),
			ExamQuestionCount:      atLeast(viper.GetInt("interview.exam_question_count"), 1),
			ExamTimeLimitMinutes:   viper.GetInt("interview.exam_time_limit_minutes"),
			ExamGrace:              viper.GetDuration("interview.exam_grace"),
		},
	}
}

func atLeast(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}

// splitList parses a comma-separated value, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
