package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	module = "HUB"

	clusterChannel = "cluster_events"
)

// Hub is the registry of live client sessions. Both lookup maps are guarded
// by one mutex so they never disagree.
type Hub struct {
	mu        sync.RWMutex
	byConn    map[Conn]*Client
	bySession map[string]*Client

	unregister chan *Client
	departures chan string
	done       chan struct{}
	doneOnce   sync.Once

	sendBuffer    int
	sweepInterval time.Duration
	instanceID    string

	// Redis connection for cross-instance broadcasts
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, sendBuffer int, sweepInterval time.Duration, log logger.ILogger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 1024
	}
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	return &Hub{
		byConn:        make(map[Conn]*Client),
		bySession:     make(map[string]*Client),
		unregister:    make(chan *Client),
		departures:    make(chan string, 256),
		done:          make(chan struct{}),
		sendBuffer:    sendBuffer,
		sweepInterval: sweepInterval,
		instanceID:    uuid.NewString(),
		rdb:           rdb,
		logger:        log,
	}
}

// Register allocates a session for conn and greets the client with its id.
func (h *Hub) Register(conn Conn, handler InboundHandler) *Client {
	client := &Client{
		hub:     h,
		conn:    conn,
		handler: handler,
		logger:  h.logger,
		Session: store.NewSession(uuid.NewString()),
		send:    make(chan []byte, h.sendBuffer),
	}

	h.mu.Lock()
	h.byConn[conn] = client
	h.bySession[client.ID()] = client
	h.mu.Unlock()

	h.logger.Info(module, "Client registered", map[string]interface{}{"session_id": client.ID()})
	h.SendTo(client.ID(), dto.EventConnected, dto.ConnectedPayload{SessionID: client.ID()})
	return client
}

// Serve pumps the connection until it closes. It blocks in the caller's
// goroutine, which websocket handlers require.
func (h *Hub) Serve(client *Client) {
	go client.writePump()
	client.readPump()
}

// Unregister hands a client back to the run loop for removal.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		h.remove(client)
	}
}

// Departures yields the id of every session whose client went away.
func (h *Hub) Departures() <-chan string {
	return h.departures
}

func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })

	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.unregister:
			h.remove(client)
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	current, ok := h.bySession[client.ID()]
	if ok && current == client {
		delete(h.bySession, client.ID())
		delete(h.byConn, client.conn)
	}
	h.mu.Unlock()

	client.close()
	if !ok || current != client {
		return
	}
	client.Session.MarkDisconnected()
	h.logger.Info(module, "Client unregistered", map[string]interface{}{"session_id": client.ID()})

	select {
	case h.departures <- client.ID():
	case <-h.done:
	}
}

// sweep drops clients whose connection is already closed.
func (h *Hub) sweep() {
	h.mu.RLock()
	var stale []*Client
	for _, c := range h.bySession {
		if c.Closed() || !c.Session.Connected() {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.remove(c)
	}
	if len(stale) > 0 {
		h.logger.Info(module, "Swept stale clients", map[string]interface{}{"count": len(stale)})
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	all := make([]*Client, 0, len(h.bySession))
	for _, c := range h.bySession {
		all = append(all, c)
	}
	h.byConn = make(map[Conn]*Client)
	h.bySession = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range all {
		c.close()
		c.Session.MarkDisconnected()
	}
}

func (h *Hub) FindByConnection(conn Conn) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byConn[conn]
}

func (h *Hub) FindBySessionID(sessionID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bySession[sessionID]
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bySession)
}

// LatestSnapshot returns the last screen a session shared.
func (h *Hub) LatestSnapshot(sessionID string) (store.Snapshot, bool) {
	c := h.FindBySessionID(sessionID)
	if c == nil {
		return store.Snapshot{}, false
	}
	return c.Session.Snapshot()
}

func encode(eventType string, payload interface{}) ([]byte, error) {
	return json.Marshal(dto.Envelope{Type: eventType, Data: payload, Timestamp: time.Now().UTC()})
}

// UpstreamLost marks a session as no longer connected to the voice backend.
func (h *Hub) UpstreamLost(sessionID string) {
	if client := h.FindBySessionID(sessionID); client != nil {
		client.Session.SetUpstreamConnected(false)
	}
}

// SendTo delivers one event to one session. Unknown or closed sessions are
// a no-op.
func (h *Hub) SendTo(sessionID, eventType string, payload interface{}) {
	client := h.FindBySessionID(sessionID)
	if client == nil {
		return
	}
	data, err := encode(eventType, payload)
	if err != nil {
		h.logger.Error(module, "Failed to encode event", map[string]interface{}{"type": eventType, "error": err.Error()})
		return
	}
	h.deliver(client, data)
}

func (h *Hub) deliver(client *Client, data []byte) {
	if _, full := client.enqueue(data); full {
		h.logger.Warn(module, "Client send buffer full, dropping client", map[string]interface{}{"session_id": client.ID()})
		client.close()
		go h.Unregister(client)
	}
}

// Broadcast sends an event to every local client and, with Redis, to the
// clients of every other instance.
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	data, err := encode(eventType, payload)
	if err != nil {
		h.logger.Error(module, "Failed to encode broadcast", map[string]interface{}{"type": eventType, "error": err.Error()})
		return
	}
	h.broadcastLocal(data)

	if h.rdb != nil {
		msg, _ := json.Marshal(clusterMessage{Origin: h.instanceID, Message: data})
		if err := h.rdb.Publish(context.Background(), clusterChannel, msg).Err(); err != nil {
			h.logger.Warn(module, "Cluster publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) broadcastLocal(data []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.bySession))
	for _, c := range h.bySession {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.deliver(c, data)
	}
}

type clusterMessage struct {
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn(module, "Cluster message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			h.broadcastLocal(payload.Message)
		}
	}
}
