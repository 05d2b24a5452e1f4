package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const maxSpeechUploadBytes = 10 << 20

type SpeechEndpoints struct {
	tts   Synthesizer
	stt   Transcriber
	cache *AudioCache
}

func NewSpeechEndpoints(tts Synthesizer, stt Transcriber, cache *AudioCache) *SpeechEndpoints {
	return &SpeechEndpoints{tts: tts, stt: stt, cache: cache}
}

type TTSRequest struct {
	Text    string `json:"text" validate:"required,max=2500"`
	VoiceID string `json:"voice_id" validate:"omitempty,alphanum,max=64"`
}

func (e *SpeechEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(r chi.Router) {
		r.Post("/tts", e.TTSHandler)
		r.Post("/stt", e.STTHandler)
	})
}

// TTSHandler returns the spoken form of text as MP3
func (e *SpeechEndpoints) TTSHandler(w http.ResponseWriter, r *http.Request) {
	var req TTSRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	voice := req.VoiceID
	if voice == "" {
		voice = DefaultVoiceID
	}

	audio, err := e.cache.Speak(r.Context(), e.tts, req.Text, voice)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		slog.Warn("Failed to write speech response", "error", err)
	}
}

// STTHandler transcribes the multipart "audio" upload
func (e *SpeechEndpoints) STTHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSpeechUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxSpeechUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Errorf("%w: audio larger than %d MB", ErrInvalidArgument, maxSpeechUploadBytes>>20), nil)
			return
		}
		writeError(w, fmt.Errorf("%w: invalid multipart form", ErrInvalidArgument), nil)
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, fmt.Errorf("%w: audio file is required", ErrInvalidArgument), nil)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxSpeechUploadBytes))
	if err != nil {
		writeError(w, fmt.Errorf("failed to read audio: %w", err), nil)
		return
	}
	if len(audio) == 0 {
		writeError(w, fmt.Errorf("%w: audio file is empty", ErrInvalidArgument), nil)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	text, err := e.stt.Transcribe(r.Context(), audio, mimeType)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"text": text})
}
