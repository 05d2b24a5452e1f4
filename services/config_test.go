package services

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.GeminiModel)
	assert.Equal(t, 30*time.Second, cfg.AI.RetryMaxElapsed)
	assert.Equal(t, 5*time.Minute, cfg.WebSocket.SessionTimeout)
	assert.True(t, cfg.Database.Seed)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, int64(5), cfg.Uploads.MaxSizeMB)
	assert.Equal(t, 6.0, cfg.Interview.CrossQuestionThreshold)
	assert.Equal(t, 3, cfg.Interview.MaxCrossQuestions)
	assert.Equal(t, time.Minute, cfg.Interview.ExamGrace)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("DATABASE_SEED", "false")
	t.Setenv("MAX_CROSS_QUESTIONS", "5")
	t.Setenv("CROSS_QUESTION_THRESHOLD", "4.5")
	t.Setenv("EXAM_GRACE", "90s")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Database.Seed)
	assert.Equal(t, 5, cfg.Interview.MaxCrossQuestions)
	assert.Equal(t, 4.5, cfg.Interview.CrossQuestionThreshold)
	assert.Equal(t, 90*time.Second, cfg.Interview.ExamGrace)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b "))
}

func TestLoadConfigClampsQuestionCounts(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("QUESTIONS_PER_ROUND", "0")
	t.Setenv("EXAM_QUESTION_COUNT", "-3")

	cfg := LoadConfig()

	assert.Equal(t, 1, cfg.Interview.QuestionsPerRound)
	assert.Equal(t, 1, cfg.Interview.ExamQuestionCount)
}
