// Package websocket pushes cohort leaderboards to connected websocket clients
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/metrics"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// Message types
const (
	TypeLeaderboard = "leaderboard"
	TypePing        = "ping"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
}

// LeaderboardSource streams the rankings of a cohort
type LeaderboardSource interface {
	Subscribe(ctx context.Context, cohortID string) (<-chan *models.Leaderboard, func())
}

// Client represents a connected WebSocket client
type Client struct {
	ID       string
	CohortID string
	conn     *websocket.Conn
	lastSeen time.Time
	mu       sync.Mutex
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// LastSeen returns when the client last answered
func (c *Client) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Broadcaster serves leaderboard subscriptions over websocket connections
type Broadcaster struct {
	source    LeaderboardSource
	logger    *logging.Logger
	metrics   *metrics.Metrics
	heartbeat time.Duration
	pongWait  time.Duration

	clients map[*Client]bool
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
}

// Option configures a Broadcaster
type Option func(*Broadcaster)

// WithLogger sets the broadcaster logger
func WithLogger(l *logging.Logger) Option {
	return func(b *Broadcaster) { b.logger = l.Named("ws") }
}

// WithMetrics reports the connected client count on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broadcaster) { b.metrics = m }
}

// WithHeartbeat sets the ping interval; clients silent for pongWait are dropped
func WithHeartbeat(interval, pongWait time.Duration) Option {
	return func(b *Broadcaster) {
		b.heartbeat = interval
		b.pongWait = pongWait
	}
}

// NewBroadcaster creates a broadcaster over source
func NewBroadcaster(source LeaderboardSource, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		source:    source,
		logger:    logging.NewNop(),
		heartbeat: 10 * time.Second,
		pongWait:  60 * time.Second,
		clients:   make(map[*Client]bool),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Serve streams the cohort leaderboard to conn until the client disconnects, ctx is
// done or the broadcaster stops. It closes conn before returning.
func (b *Broadcaster) Serve(ctx context.Context, conn *websocket.Conn, cohortID string) {
	client := &Client{
		ID:       uuid.New().String(),
		CohortID: cohortID,
		conn:     conn,
		lastSeen: time.Now(),
	}
	b.register(client)
	defer b.unregister(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := b.source.Subscribe(ctx, cohortID)
	defer unsubscribe()

	readerDone := make(chan struct{})
	go b.readLoop(client, readerDone)

	heartbeat := time.NewTicker(b.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-b.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ctx.Done():
			return
		case <-readerDone:
			return
		case lb, ok := <-updates:
			if !ok {
				return
			}
			msg := Message{Type: TypeLeaderboard, Timestamp: time.Now(), Data: lb, ClientID: client.ID}
			if err := b.write(client, msg); err != nil {
				b.logger.Debug("leaderboard write failed", zap.String("client_id", client.ID), zap.Error(err))
				return
			}
		case <-heartbeat.C:
			if time.Since(client.LastSeen()) > b.pongWait {
				b.logger.Info("client timeout", zap.String("client_id", client.ID))
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(b.heartbeat)); err != nil {
				return
			}
		}
	}
}

func (b *Broadcaster) write(client *Client, msg Message) error {
	if err := client.conn.SetWriteDeadline(time.Now().Add(b.heartbeat)); err != nil {
		return err
	}
	return client.conn.WriteJSON(msg)
}

// readLoop consumes client frames so pongs and close frames are processed
func (b *Broadcaster) readLoop(client *Client, done chan<- struct{}) {
	defer close(done)

	_ = client.conn.SetReadDeadline(time.Now().Add(b.pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.touch()
		return client.conn.SetReadDeadline(time.Now().Add(b.pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				b.logger.Warn("client read error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		client.touch()
	}
}

func (b *Broadcaster) register(client *Client) {
	b.mu.Lock()
	b.clients[client] = true
	n := len(b.clients)
	b.mu.Unlock()

	b.metrics.WebsocketClients(n)
	b.logger.Info("client registered", zap.String("client_id", client.ID), zap.String("cohort_id", client.CohortID), zap.Int("total", n))
}

func (b *Broadcaster) unregister(client *Client) {
	b.mu.Lock()
	delete(b.clients, client)
	n := len(b.clients)
	b.mu.Unlock()

	_ = client.conn.Close()
	b.metrics.WebsocketClients(n)
	b.logger.Info("client unregistered", zap.String("client_id", client.ID), zap.Int("total", n))
}

// ClientCount returns the number of connected clients
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop ends every session
func (b *Broadcaster) Stop() {
	b.once.Do(func() { close(b.done) })
}
