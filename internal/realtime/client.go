package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/pixelblog/backend/internal/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer
	readWait = 60 * time.Second

	// Send pings to peer with this period (must be less than readWait)
	pingPeriod = (readWait * 9) / 10

	// Maximum message size allowed from peer; subscribe messages are tiny
	maxMessageSize = 4 * 1024

	// Send buffer size
	sendBufferSize = 256

	// Rate limiting for inbound messages
	maxMessagesPerSecond = 10
	burstSize            = 20
)

// Client represents a single WebSocket connection. Visitors connect without
// authenticating, so IdentityKey may name an anonymous session.
type Client struct {
	// The websocket connection
	conn *websocket.Conn

	// Hub reference
	hub *Hub

	// Stable identity key ("user:<id>" or "anon:<token>")
	IdentityKey string

	// Buffered channel of outbound messages
	send chan []byte

	// Logical channels this client holds, keyed by (table, filter)
	subs   map[string]*subscription
	subsMu sync.RWMutex

	// Connection metadata
	ConnectedAt time.Time
	RemoteAddr  string
	UserAgent   string

	// Rate limiting
	rateLimiter *RateLimiter

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Mutex for connection state
	mu sync.RWMutex

	// Closed flag
	closed bool
}

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxPerSecond int, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow checks if an action is allowed and consumes a token
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastTime).Seconds()
	r.lastTime = now

	r.tokens += elapsed * r.refill
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, identityKey string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		hub:         hub,
		conn:        conn,
		IdentityKey: identityKey,
		send:        make(chan []byte, sendBufferSize),
		subs:        make(map[string]*subscription),
		ConnectedAt: time.Now(),
		rateLimiter: NewRateLimiter(maxMessagesPerSecond, burstSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// wants reports whether any of the client's subscriptions match ev
func (c *Client) wants(ev *ChangeEvent) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	for _, sub := range c.subs {
		if sub.Matches(ev) {
			return true
		}
	}
	return false
}

func (c *Client) subscriptionCount() int {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return len(c.subs)
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		readCtx, readCancel := context.WithTimeout(c.ctx, readWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()

		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				logger.Log.Info("Client disconnected normally", logger.WithIdentity(c.IdentityKey))
			} else if c.ctx.Err() == nil {
				// Only log errors if we're not shutting down
				logger.Log.Error("Read error for client", logger.WithIdentity(c.IdentityKey), zap.Error(err))
				c.hub.metrics.Errors.Add(1)
			}
			return
		}

		if !c.rateLimiter.Allow() {
			c.SendError("rate_limited", "Too many messages, please slow down")
			c.hub.metrics.Errors.Add(1)
			continue
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			logger.Log.Warn("WebSocket JSON parse error",
				logger.WithIdentity(c.IdentityKey),
				zap.Error(err))
			c.SendError("invalid_json", "Failed to parse message")
			continue
		}

		c.handleMessage(&message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return

		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				c.conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}

			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()

			if err != nil {
				logger.Log.Error("Write error for client", logger.WithIdentity(c.IdentityKey), zap.Error(err))
				c.hub.metrics.Errors.Add(1)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()

			if err != nil {
				logger.Log.Warn("Ping failed for client", logger.WithIdentity(c.IdentityKey), zap.Error(err))
				return
			}
		}
	}
}

// handleMessage routes incoming messages to appropriate handlers
func (c *Client) handleMessage(message *Message) {
	if message.Timestamp.IsZero() {
		message.Timestamp = FlexibleTime{Time: time.Now().UTC()}
	}

	switch message.Type {
	case MessageTypePing, "heartbeat": // "heartbeat" is an alias for ping
		c.handlePing(message)

	case MessageTypeSubscribe:
		c.handleSubscribe(message)

	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(message)

	default:
		logger.Log.Warn("Unknown message type",
			logger.WithIdentity(c.IdentityKey),
			zap.String("type", message.Type))
		c.SendError("unknown_type", fmt.Sprintf("Unknown message type: %s", message.Type))
	}
}

// handlePing responds to ping messages with pong
func (c *Client) handlePing(message *Message) {
	var ping PingPayload
	if err := message.ParsePayload(&ping); err != nil {
		ping.ClientTime = 0
	}

	serverTime := time.Now().UnixMilli()
	latency := serverTime - ping.ClientTime

	pong := NewMessage(MessageTypePong, PongPayload{
		ClientTime: ping.ClientTime,
		ServerTime: serverTime,
		Latency:    latency,
	})

	if message.ID != "" {
		pong.ReplyTo = message.ID
	}

	// Best-effort pong response - connection may be closing
	_ = c.Send(pong)
}

// handleSubscribe opens or replaces a logical channel. Re-subscribing to the
// same (table, filter) pair replaces the event set instead of stacking.
func (c *Client) handleSubscribe(message *Message) {
	var payload SubscribePayload
	if err := message.ParsePayload(&payload); err != nil {
		c.SendError("invalid_payload", "Failed to parse subscribe payload")
		return
	}

	if payload.Table != TablePosts && payload.Table != TableComments {
		c.SendError("unknown_table", fmt.Sprintf("Cannot subscribe to table: %s", payload.Table))
		return
	}
	for _, ev := range payload.Events {
		if ev != EventInsert && ev != EventUpdate && ev != EventDelete {
			c.SendError("unknown_event", fmt.Sprintf("Unknown event kind: %s", ev))
			return
		}
	}

	sub := newSubscription(payload)

	c.subsMu.Lock()
	_, replaced := c.subs[sub.key()]
	c.subs[sub.key()] = sub
	c.subsMu.Unlock()

	if !replaced {
		c.hub.metrics.ActiveSubscriptions.Add(1)
	}

	ack := NewMessage(MessageTypeSubscribed, payload)
	if message.ID != "" {
		ack.ReplyTo = message.ID
	}
	_ = c.Send(ack)

	logger.Log.Debug("Client subscribed",
		logger.WithIdentity(c.IdentityKey),
		zap.String("table", payload.Table),
		zap.String("post_id", payload.PostID))
}

// handleUnsubscribe closes the logical channel for a (table, filter) pair
func (c *Client) handleUnsubscribe(message *Message) {
	var payload SubscribePayload
	if err := message.ParsePayload(&payload); err != nil {
		c.SendError("invalid_payload", "Failed to parse unsubscribe payload")
		return
	}

	sub := newSubscription(payload)

	c.subsMu.Lock()
	_, existed := c.subs[sub.key()]
	delete(c.subs, sub.key())
	c.subsMu.Unlock()

	if existed {
		c.hub.metrics.ActiveSubscriptions.Add(-1)
	}

	ack := NewMessage(MessageTypeUnsubscribed, payload)
	if message.ID != "" {
		ack.ReplyTo = message.ID
	}
	_ = c.Send(ack)
}

// Send sends a message to this client
func (c *Client) Send(message *Message) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("client connection closed")
	}
	c.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("client shutting down")
	default:
		return fmt.Errorf("send buffer full")
	}
}

// SendError sends an error message to the client
func (c *Client) SendError(code, message string) {
	c.Send(NewErrorMessage(code, message))
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "closing")
}

// IsClosed returns whether the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
