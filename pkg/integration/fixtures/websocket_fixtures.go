//go:build e2e
// +build e2e

package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// LeaderboardMessage is a pushed leaderboard frame
type LeaderboardMessage struct {
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Data      models.Leaderboard `json:"data"`
}

// TestWebSocketClient records every leaderboard pushed on one stream
type TestWebSocketClient struct {
	url      string
	conn     *websocket.Conn
	mu       sync.RWMutex
	messages []LeaderboardMessage
	closed   chan struct{}
}

// NewTestWebSocketClient creates a client for the leaderboard stream at url
func NewTestWebSocketClient(url string) *TestWebSocketClient {
	return &TestWebSocketClient{url: url, closed: make(chan struct{})}
}

// Connect dials the stream and starts recording messages
func (c *TestWebSocketClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, convertHTTPtoWS(c.url), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	c.conn = conn
	go c.listenForMessages()
	return nil
}

func (c *TestWebSocketClient) listenForMessages() {
	defer close(c.closed)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg LeaderboardMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "leaderboard" {
			continue
		}
		c.mu.Lock()
		c.messages = append(c.messages, msg)
		c.mu.Unlock()
	}
}

// WaitFor polls until a received leaderboard satisfies match or timeout elapses
func (c *TestWebSocketClient) WaitFor(timeout time.Duration, match func(models.Leaderboard) bool) (*models.Leaderboard, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.RLock()
		for i := len(c.messages) - 1; i >= 0; i-- {
			if match(c.messages[i].Data) {
				lb := c.messages[i].Data
				c.mu.RUnlock()
				return &lb, nil
			}
		}
		c.mu.RUnlock()

		if time.Now().After(deadline) {
			break
		}
	}
	return nil, fmt.Errorf("no matching leaderboard after %v", timeout)
}

// MessageCount returns the number of leaderboards received
func (c *TestWebSocketClient) MessageCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Close closes the connection and waits for the reader to stop
func (c *TestWebSocketClient) Close() {
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
	<-c.closed
}

func convertHTTPtoWS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	return "ws://" + strings.TrimPrefix(url, "http://")
}
