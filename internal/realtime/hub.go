// Package realtime provides the change-feed bridge: services publish
// insert/update/delete events for watched tables, and WebSocket clients hold
// one logical subscription per (table, filter) pair.
// Uses github.com/coder/websocket - the modern, context-aware WebSocket library for Go.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pixelblog/backend/internal/logger"
	appmetrics "github.com/pixelblog/backend/internal/metrics"
	"go.uber.org/zap"
)

// subscription is one logical channel: a watched table, an optional post
// filter, and the event kinds the client asked for.
type subscription struct {
	Table  string
	PostID string
	Events map[string]struct{}
}

// key identifies the (table, filter) pair; re-subscribing replaces the
// event set instead of stacking channels.
func (s *subscription) key() string {
	return s.Table + "|" + s.PostID
}

// Matches reports whether ev should be delivered on this channel
func (s *subscription) Matches(ev *ChangeEvent) bool {
	if s.Table != ev.Table {
		return false
	}
	if s.PostID != "" && s.PostID != ev.PostID {
		return false
	}
	if len(s.Events) == 0 {
		return true
	}
	_, ok := s.Events[ev.Event]
	return ok
}

// newSubscription builds a subscription from a subscribe payload
func newSubscription(p SubscribePayload) *subscription {
	sub := &subscription{Table: p.Table, PostID: p.PostID}
	if len(p.Events) > 0 {
		sub.Events = make(map[string]struct{}, len(p.Events))
		for _, ev := range p.Events {
			sub.Events[ev] = struct{}{}
		}
	}
	return sub
}

// Hub maintains the set of active clients and fans change events out to
// matching subscriptions.
type Hub struct {
	// All connected clients
	clients map[*Client]struct{}

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Change events published by services
	events chan *ChangeEvent

	// Mutex for client map access
	mu sync.RWMutex

	// Metrics
	metrics *Metrics

	// Shutdown handling
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Metrics tracks WebSocket statistics
type Metrics struct {
	TotalConnections    atomic.Int64
	ActiveConnections   atomic.Int64
	ActiveSubscriptions atomic.Int64
	EventsPublished     atomic.Int64
	EventsDelivered     atomic.Int64
	Errors              atomic.Int64
	ConnectionsDropped  atomic.Int64
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		events:     make(chan *ChangeEvent, 256),
		metrics:    &Metrics{},
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	logger.Log.Info("🔌 Realtime hub starting")

	for {
		select {
		case <-h.ctx.Done():
			logger.Log.Info("🔌 Realtime hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.events:
			h.dispatch(event)
		}
	}
}

// Publish hands a change event to the hub for fan-out. Safe to call from any
// goroutine; drops the event during shutdown.
func (h *Hub) Publish(event *ChangeEvent) {
	h.metrics.EventsPublished.Add(1)
	appmetrics.Get().RealtimeEvents.WithLabelValues(event.Table, event.Event).Inc()
	select {
	case h.events <- event:
	case <-h.ctx.Done():
	}
}

// PublishRow is a convenience wrapper for services publishing a table change
func (h *Hub) PublishRow(table, event, rowID, postID string, row interface{}) {
	h.Publish(&ChangeEvent{Table: table, Event: event, RowID: rowID, PostID: postID, Row: row})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub. All of the client's
// subscriptions are dropped with it; a dangling channel is a leak.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}

	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)
	appmetrics.Get().RealtimeConnections.WithLabelValues().Inc()

	logger.Log.Info("✅ Realtime client connected",
		logger.WithIdentity(client.IdentityKey),
		zap.Int64("active", h.metrics.ActiveConnections.Load()),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		h.metrics.ActiveSubscriptions.Add(-int64(client.subscriptionCount()))
		close(client.send)
		h.metrics.ActiveConnections.Add(-1)
		appmetrics.Get().RealtimeConnections.WithLabelValues().Dec()

		logger.Log.Info("❌ Realtime client disconnected",
			logger.WithIdentity(client.IdentityKey),
			zap.Int64("active", h.metrics.ActiveConnections.Load()),
		)
	}
}

// dispatch sends an event to every client with a matching subscription
func (h *Hub) dispatch(event *ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := NewMessage(MessageTypeChangeEvent, event)
	data, err := json.Marshal(msg)
	if err != nil {
		logger.ErrorWithError("Failed to marshal change event", err)
		return
	}

	for client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- data:
			h.metrics.EventsDelivered.Add(1)
		default:
			// Client's buffer is full, mark for removal
			h.metrics.ConnectionsDropped.Add(1)
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

// GetMetrics returns current hub metrics
func (h *Hub) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalConnections:    h.metrics.TotalConnections.Load(),
		ActiveConnections:   h.metrics.ActiveConnections.Load(),
		ActiveSubscriptions: h.metrics.ActiveSubscriptions.Load(),
		EventsPublished:     h.metrics.EventsPublished.Load(),
		EventsDelivered:     h.metrics.EventsDelivered.Load(),
		Errors:              h.metrics.Errors.Load(),
		ConnectionsDropped:  h.metrics.ConnectionsDropped.Load(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of hub metrics
type MetricsSnapshot struct {
	TotalConnections    int64 `json:"total_connections"`
	ActiveConnections   int64 `json:"active_connections"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	EventsPublished     int64 `json:"events_published"`
	EventsDelivered     int64 `json:"events_delivered"`
	Errors              int64 `json:"errors"`
	ConnectionsDropped  int64 `json:"connections_dropped"`
}

// String implements Stringer for MetricsSnapshot
func (m MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d subscriptions=%d events=pub:%d/del:%d errors=%d dropped=%d",
		m.ActiveConnections, m.TotalConnections, m.ActiveSubscriptions,
		m.EventsPublished, m.EventsDelivered,
		m.Errors, m.ConnectionsDropped,
	)
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("🔌 Realtime hub shutdown complete", zap.Stringer("stats", h.GetMetrics()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// shutdown closes all client connections
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	shutdownMsg := NewMessage(MessageTypeSystem, SystemPayload{Event: "server_shutdown"})
	data, _ := json.Marshal(shutdownMsg)

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
		close(client.send)
	}

	h.clients = make(map[*Client]struct{})
}
