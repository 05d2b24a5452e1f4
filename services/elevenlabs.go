package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	elevenLabsBaseURL   = "https://api.elevenlabs.io/v1/text-to-speech/"
	elevenLabsModel     = "eleven_turbo_v2" // low latency, suits live conversation
	DefaultVoiceID      = "pNInz6obpgDQGcFmaJgB"
	providerElevenLabs  = "elevenlabs"
	maxSpeechTextLength = 2500
)

// Synthesizer turns text into spoken audio (audio/mpeg)
type Synthesizer interface {
	TextToSpeech(ctx context.Context, text, voiceID string) (io.ReadCloser, error)
}

type ElevenLabsService struct {
	apiKey       string
	defaultVoice string
	baseURL      string
	client       *http.Client
}

type ElevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func NewElevenLabsService(cfg AIConfig) *ElevenLabsService {
	voice := cfg.ElevenLabsVoiceID
	if voice == "" {
		voice = DefaultVoiceID
	}
	return &ElevenLabsService{
		apiKey:       cfg.ElevenLabsKey,
		defaultVoice: voice,
		baseURL:      elevenLabsBaseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Enabled reports whether an API key is configured
func (e *ElevenLabsService) Enabled() bool {
	return e != nil && e.apiKey != ""
}

// TextToSpeech streams MP3 audio for text. An empty voiceID uses the configured default.
func (e *ElevenLabsService) TextToSpeech(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("%w: text to speech is not configured", ErrUpstream)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidArgument)
	}
	if len(text) > maxSpeechTextLength {
		return nil, fmt.Errorf("%w: text longer than %d characters", ErrInvalidArgument, maxSpeechTextLength)
	}
	if voiceID == "" {
		voiceID = e.defaultVoice
	}

	request := ElevenLabsRequest{
		Text:    text,
		ModelID: elevenLabsModel,
		VoiceSettings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+voiceID, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		observeAI(providerElevenLabs, "tts", start, err)
		return nil, fmt.Errorf("%w: elevenlabs request: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		err = fmt.Errorf("%w: elevenlabs API error: %d - %s", ErrUpstream, resp.StatusCode, string(body))
		observeAI(providerElevenLabs, "tts", start, err)
		return nil, err
	}

	observeAI(providerElevenLabs, "tts", start, nil)
	slog.Info("Generated audio from ElevenLabs", "text_length", len(text), "voice_id", voiceID)
	return resp.Body, nil
}
