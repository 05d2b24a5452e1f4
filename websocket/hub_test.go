package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubEchoRoundTrip(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.RegisterClient(conn, "user-1", "session-1")
		client.MessageHandler = func(c *Client, msg Message) {
			c.SendText(TypeText, "echo: "+msg.Content)
		}
		go client.WritePump()
		go client.ReadPump()
		<-client.Done()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeUserMessage, Content: "hello"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, TypeText, reply.Type)
	assert.Equal(t, "echo: hello", reply.Content)
	assert.Equal(t, "session-1", reply.SessionID)
	assert.Equal(t, 1, hub.Count())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSendJSONAfterClose(t *testing.T) {
	client := &Client{Send: make(chan []byte, 1), done: make(chan struct{})}

	assert.True(t, client.SendText(TypeText, "first"))
	assert.False(t, client.SendText(TypeText, "dropped, buffer full"))

	client.close()
	client.close()
	assert.False(t, client.SendText(TypeText, "after close"))

	select {
	case <-client.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}
