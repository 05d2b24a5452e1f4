package main

import (
	"net/http/httptest"
	"testing"

	"github.com/krshsl/prepmate/services"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestWebSocketOriginFromConfig(t *testing.T) {
	cases := []struct {
		configured string
		origin     string
		allowed    bool
	}{
		{"http://localhost:5173,https://prepmate.app", "https://prepmate.app", true},
		{"http://localhost:5173, https://prepmate.app", "https://prepmate.app", true},
		{"http://localhost:5173", "http://localhost:8080", false},
		{"https://prepmate.app", "https://evil.example.com", false},
		{"", "http://localhost:5173", false},
	}

	for _, tc := range cases {
		t.Run(tc.configured+"/"+tc.origin, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			t.Setenv("WEBSOCKET_ALLOWED_ORIGINS", tc.configured)

			cfg := services.LoadConfig()
			req := httptest.NewRequest("GET", "/api/v1/ws?session_id=s1", nil)
			req.Header.Set("Origin", tc.origin)

			assert.Equal(t, tc.allowed, services.CheckOrigin(req, cfg.WebSocket.AllowedOrigins))
		})
	}
}

func TestGormLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"error":  logger.Error,
		"warn":   logger.Warn,
		"info":   logger.Info,
		"silent": logger.Silent,
		"":       logger.Silent,
	} {
		assert.Equal(t, want, gormLogLevel(in), in)
	}
}
