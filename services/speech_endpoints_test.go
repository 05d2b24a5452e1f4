package services

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTranscriber struct {
	mimeType string
	err      error
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio []byte, mimeType string) (string, error) {
	s.mimeType = mimeType
	if s.err != nil {
		return "", s.err
	}
	return "heard " + string(audio), nil
}

func speechRouter(t *testing.T, stt Transcriber) (http.Handler, *countingSynthesizer) {
	t.Helper()
	tts := &countingSynthesizer{}
	r := chi.NewRouter()
	NewSpeechEndpoints(tts, stt, NewAudioCache(t.TempDir())).RegisterRoutes(r)
	return r, tts
}

func TestSpeechTTS(t *testing.T) {
	router, tts := speechRouter(t, &stubTranscriber{})

	rec := doJSON(t, router, http.MethodPost, "/speech/tts", `{"text": "Hello there"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, DefaultVoiceID+":Hello there", rec.Body.String())
	assert.Equal(t, 1, tts.calls)

	rec = doJSON(t, router, http.MethodPost, "/speech/tts", `{"text": "Hi", "voice_id": "abc123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123:Hi", rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/speech/tts", `{"text": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/speech/tts", `{"text": "Hi", "voice_id": "../etc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func postAudio(t *testing.T, h http.Handler, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part := textproto.MIMEHeader{}
	part.Set("Content-Disposition", `form-data; name="audio"; filename="clip.webm"`)
	part.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(part)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/speech/stt", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSpeechSTT(t *testing.T) {
	stt := &stubTranscriber{}
	router, _ := speechRouter(t, stt)

	rec := postAudio(t, router, "audio/webm", []byte("bytes"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "heard bytes", resp["text"])
	assert.Equal(t, "audio/webm", stt.mimeType)

	rec = postAudio(t, router, "application/octet-stream", []byte("bytes"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, stt.mimeType, "generic content types are left for sniffing")

	rec = postAudio(t, router, "audio/webm", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpeechSTTUpstreamFailure(t *testing.T) {
	router, _ := speechRouter(t, &stubTranscriber{err: ErrUpstream})

	rec := postAudio(t, router, "audio/webm", []byte("bytes"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
