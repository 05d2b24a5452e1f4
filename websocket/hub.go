package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 10 * 1024 * 1024 // large enough for a recorded answer
	sendBuffer     = 256
)

// Message types exchanged with the browser
const (
	TypeText        = "text"
	TypeCode        = "code"
	TypeAudio       = "audio"
	TypeAudioChunk  = "audio_chunk"
	TypeUserMessage = "user_message"
	TypeEndSession  = "end_session"
	TypeError       = "error"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    string
	SessionID string
	// MessageHandler is called for every inbound message in its own goroutine
	MessageHandler func(*Client, Message)

	closeOnce sync.Once
	done      chan struct{}
}

type Message struct {
	Type            string `json:"type"`
	Content         string `json:"content,omitempty"`
	Language        string `json:"language,omitempty"`
	AudioData       []byte `json:"audio_data,omitempty"`
	AudioDataBase64 string `json:"audio_data_base64,omitempty"`
	MimeType        string `json:"mime_type,omitempty"`
	ChunkIndex      int    `json:"chunk_index,omitempty"`
	TotalChunks     int    `json:"total_chunks,omitempty"`
	IsLastChunk     bool   `json:"is_last_chunk,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run serves register and unregister requests until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "session_id", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "session_id", client.SessionID)
		}
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient attaches a connection for an existing interview session
func (h *Hub) RegisterClient(conn *websocket.Conn, userID, sessionID string) *Client {
	client := &Client{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		UserID:    userID,
		SessionID: sessionID,
		done:      make(chan struct{}),
	}

	h.register <- client
	return client
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the client is unregistered
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendJSON queues v for the client. Messages to a closed or saturated client are dropped.
func (c *Client) SendJSON(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal message", "error", err, "session_id", c.SessionID)
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Send <- data:
		return true
	case <-c.done:
		return false
	default:
		slog.Warn("Dropping message, client channel full", "session_id", c.SessionID)
		return false
	}
}

// SendText sends a message with text content
func (c *Client) SendText(messageType, content string) bool {
	return c.SendJSON(Message{Type: messageType, Content: content, SessionID: c.SessionID})
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "session_id", c.SessionID)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err, "session_id", c.SessionID)
			continue
		}

		if c.MessageHandler != nil {
			go c.MessageHandler(c, msg)
		} else {
			slog.Warn("No message handler, dropping message", "type", msg.Type, "session_id", c.SessionID)
		}
	}
}

// WritePump writes queued messages as separate frames and pings the peer
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
