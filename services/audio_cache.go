package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Phrases the interviewer says often enough to keep their audio on disk
const (
	PhraseGreeting       = "Hello! Welcome to your interview. Let's get started."
	PhraseEmptyAnswer    = "I didn't catch that. Could you please answer the question?"
	PhraseTimeoutWarning = "Are you still there? The session will end soon if there is no response."
	PhraseConclusion     = "Thank you for your time today. The interview is now complete."
	PhraseEarlyEnd       = "I appreciate your time, but it seems like this might not be the right moment for a serious interview discussion. I'll end our session here. Thank you."
)

var cachedPhrases = map[string]bool{
	PhraseGreeting:       true,
	PhraseEmptyAnswer:    true,
	PhraseTimeoutWarning: true,
	PhraseConclusion:     true,
	PhraseEarlyEnd:       true,
	"Great answer! Let's move on to the next question.":       true,
	"Thank you for that response. Here's your next question.": true,
	"That's an interesting point. Can you elaborate?":         true,
	"I see. Could you provide a specific example?":            true,
	"Take a moment to think about your response.":             true,
}

// AudioCache keeps synthesized audio for fixed interviewer phrases on the filesystem
type AudioCache struct {
	cacheDir string
	mutex    sync.RWMutex
}

func NewAudioCache(cacheDir string) *AudioCache {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		slog.Error("Failed to create cache directory", "dir", cacheDir, "error", err)
	}
	return &AudioCache{cacheDir: cacheDir}
}

func (ac *AudioCache) cachePath(text, voiceID string) string {
	hash := sha256.Sum256([]byte(voiceID + ":" + text))
	return filepath.Join(ac.cacheDir, hex.EncodeToString(hash[:])+".mp3")
}

// Cacheable reports whether text is one of the fixed phrases
func (ac *AudioCache) Cacheable(text string) bool {
	return cachedPhrases[text]
}

// Get returns cached audio for a fixed phrase
func (ac *AudioCache) Get(text, voiceID string) ([]byte, bool) {
	if !ac.Cacheable(text) {
		return nil, false
	}

	ac.mutex.RLock()
	defer ac.mutex.RUnlock()

	path := ac.cachePath(text, voiceID)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed to read cached audio", "path", path, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores audio for a fixed phrase; other text is ignored
func (ac *AudioCache) Set(text, voiceID string, audio []byte) error {
	if !ac.Cacheable(text) {
		return nil
	}

	ac.mutex.Lock()
	defer ac.mutex.Unlock()

	path := ac.cachePath(text, voiceID)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return fmt.Errorf("failed to write cached audio: %w", err)
	}
	slog.Debug("Cached phrase audio", "voice_id", voiceID, "size", len(audio))
	return nil
}

// Speak returns audio for text, from the cache when possible
func (ac *AudioCache) Speak(ctx context.Context, tts Synthesizer, text, voiceID string) ([]byte, error) {
	if data, ok := ac.Get(text, voiceID); ok {
		return data, nil
	}

	stream, err := tts.TextToSpeech(ctx, text, voiceID)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if err := ac.Set(text, voiceID, audio); err != nil {
		slog.Warn("Failed to cache audio", "error", err)
	}
	return audio, nil
}

// Stats returns the number and total size of cached files
func (ac *AudioCache) Stats() (int, int64, error) {
	ac.mutex.RLock()
	defer ac.mutex.RUnlock()

	entries, err := os.ReadDir(ac.cacheDir)
	if err != nil {
		return 0, 0, err
	}

	var total int64
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp3" {
			continue
		}
		count++
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
	}
	return count, total, nil
}
