package services

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	ws "github.com/krshsl/prepmate/websocket"
)

type WebSocketHandler struct {
	aiMessageProcessor *AIMessageProcessor
	timeoutService     *SessionTimeoutService
}

func NewWebSocketHandler(aiMessageProcessor *AIMessageProcessor, timeoutService *SessionTimeoutService) *WebSocketHandler {
	return &WebSocketHandler{
		aiMessageProcessor: aiMessageProcessor,
		timeoutService:     timeoutService,
	}
}

// HandleWebSocketConnection starts the interview for a freshly connected client
func (h *WebSocketHandler) HandleWebSocketConnection(client *ws.Client) {
	slog.Info("WebSocket connection handled", "user_id", client.UserID, "session_id", client.SessionID)
	h.aiMessageProcessor.AutoStartInterview(client)
}

// audioPayload returns binary audio or decodes the base64 form
func audioPayload(msg ws.Message) ([]byte, bool) {
	if len(msg.AudioData) > 0 {
		return msg.AudioData, true
	}
	if msg.AudioDataBase64 == "" {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(msg.AudioDataBase64)
	if err != nil {
		slog.Error("Failed to decode base64 audio data", "error", err)
		return nil, false
	}
	return decoded, true
}

// HandleWebSocketMessage routes an inbound message to the processor
func (h *WebSocketHandler) HandleWebSocketMessage(client *ws.Client, msg ws.Message) {
	slog.Debug("WebSocket message received", "type", msg.Type, "user_id", client.UserID, "session_id", client.SessionID)

	switch msg.Type {
	case ws.TypeText:
		h.aiMessageProcessor.ProcessTextMessage(client, msg.Content)
	case ws.TypeCode:
		h.aiMessageProcessor.ProcessCodeMessage(client, msg.Content, msg.Language)
	case ws.TypeAudio:
		audio, ok := audioPayload(msg)
		if !ok {
			client.SendText(ws.TypeError, "No audio data provided")
			return
		}
		h.aiMessageProcessor.ProcessAudioMessage(client, audio, msg.MimeType)
	case ws.TypeAudioChunk:
		chunk, ok := audioPayload(msg)
		if !ok {
			client.SendText(ws.TypeError, "No audio chunk data provided")
			return
		}
		h.aiMessageProcessor.ProcessAudioChunk(client, chunk, msg.ChunkIndex, msg.TotalChunks, msg.IsLastChunk, msg.MimeType)
	case ws.TypeEndSession:
		slog.Info("Received end_session request", "session_id", client.SessionID)
		client.SendText(ws.TypeEndSession, "Thank you for your time. We'll wrap up the session and prepare your report.")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		h.timeoutService.ConcludeSession(ctx, client.SessionID, "candidate ended the interview")

		// Give the writer a moment to flush the goodbye before closing
		time.AfterFunc(200*time.Millisecond, func() { client.Conn.Close() })
	default:
		slog.Warn("Unknown message type", "type", msg.Type, "session_id", client.SessionID)
	}
}
