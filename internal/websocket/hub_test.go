package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"meeting-agent-be/internal/dto"
	"meeting-agent-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	inbound chan []byte
	done    chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-c.inbound:
		return 1, b, nil
	case <-c.done:
		return 0, nil, errors.New("closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != 1 {
		return nil
	}
	c.mu.Lock()
	c.frames = append(c.frames, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SetReadLimit(int64) {}
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, f := range c.frames {
		var env dto.Envelope
		if json.Unmarshal(f, &env) == nil {
			out = append(out, env.Type)
		}
	}
	return out
}

type echoHandler struct {
	mu  sync.Mutex
	got []string
}

func (h *echoHandler) HandleMessage(client *Client, raw []byte) {
	h.mu.Lock()
	h.got = append(h.got, string(raw))
	h.mu.Unlock()
}

func (h *echoHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.got)
}

func drain(client *Client) []string {
	var out []string
	for {
		select {
		case b, ok := <-client.send:
			if !ok {
				return out
			}
			var env dto.Envelope
			if json.Unmarshal(b, &env) == nil {
				out = append(out, env.Type)
			}
		default:
			return out
		}
	}
}

func TestHub_RegisterGreetsAndIndexes(t *testing.T) {
	hub := NewHub(nil, 4, time.Minute, logger.NewNopLogger())
	conn := newFakeConn()

	client := hub.Register(conn, nil)

	assert.Equal(t, 1, hub.Count())
	assert.Same(t, client, hub.FindByConnection(conn))
	assert.Same(t, client, hub.FindBySessionID(client.ID()))
	assert.Nil(t, hub.FindBySessionID("missing"))

	first := <-client.send
	var env struct {
		Type string               `json:"type"`
		Data dto.ConnectedPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first, &env))
	assert.Equal(t, dto.EventConnected, env.Type)
	assert.Equal(t, client.ID(), env.Data.SessionID)
}

func TestHub_UpstreamLostClearsFlag(t *testing.T) {
	hub := NewHub(nil, 4, time.Minute, logger.NewNopLogger())
	client := hub.Register(newFakeConn(), nil)
	client.Session.SetUpstreamConnected(true)

	hub.UpstreamLost(client.ID())
	hub.UpstreamLost("missing")

	assert.False(t, client.Session.UpstreamConnected())
}

func TestHub_SendTo(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(hub *Hub, client *Client)
		target    func(client *Client) string
		wantTypes []string
	}{
		{
			name:      "delivers to live session",
			target:    func(c *Client) string { return c.ID() },
			wantTypes: []string{dto.EventThinking},
		},
		{
			name:   "unknown session is a no-op",
			target: func(c *Client) string { return "nobody" },
		},
		{
			name:   "closed session is a no-op",
			setup:  func(hub *Hub, c *Client) { c.close() },
			target: func(c *Client) string { return c.ID() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(nil, 4, time.Minute, logger.NewNopLogger())
			client := hub.Register(newFakeConn(), nil)
			<-client.send
			if tt.setup != nil {
				tt.setup(hub, client)
			}

			assert.NotPanics(t, func() {
				hub.SendTo(tt.target(client), dto.EventThinking, dto.ThinkingPayload{Status: "PM heard you"})
			})
			assert.Equal(t, tt.wantTypes, drain(client))
		})
	}
}

func TestHub_FullBufferDropsClient(t *testing.T) {
	hub := NewHub(nil, 1, time.Minute, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := hub.Register(newFakeConn(), nil)
	hub.SendTo(client.ID(), dto.EventThinking, dto.ThinkingPayload{Status: "overflow"})

	select {
	case id := <-hub.Departures():
		assert.Equal(t, client.ID(), id)
	case <-time.After(time.Second):
		t.Fatal("slow client was not dropped")
	}
	assert.True(t, client.Closed())
	assert.Equal(t, 0, hub.Count())
}

func TestHub_ServeUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil, 8, time.Minute, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := newFakeConn()
	handler := &echoHandler{}
	client := hub.Register(conn, handler)
	served := make(chan struct{})
	go func() {
		hub.Serve(client)
		close(served)
	}()

	conn.inbound <- []byte(`{"type":"trigger_response"}`)
	require.Eventually(t, func() bool { return handler.count() == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		types := conn.types()
		return len(types) == 1 && types[0] == dto.EventConnected
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	<-served

	select {
	case id := <-hub.Departures():
		assert.Equal(t, client.ID(), id)
	case <-time.After(time.Second):
		t.Fatal("departure not reported")
	}
	assert.False(t, client.Session.Connected())
	assert.Nil(t, hub.FindByConnection(conn))
}

func TestHub_SweepRemovesDisconnected(t *testing.T) {
	hub := NewHub(nil, 8, 20*time.Millisecond, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	stale := hub.Register(newFakeConn(), nil)
	live := hub.Register(newFakeConn(), nil)
	stale.Session.MarkDisconnected()

	select {
	case id := <-hub.Departures():
		assert.Equal(t, stale.ID(), id)
	case <-time.After(time.Second):
		t.Fatal("stale client not swept")
	}
	assert.Equal(t, 1, hub.Count())
	assert.NotNil(t, hub.FindBySessionID(live.ID()))
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(nil, 8, time.Minute, logger.NewNopLogger())
	a := hub.Register(newFakeConn(), nil)
	b := hub.Register(newFakeConn(), nil)
	drain(a)
	drain(b)

	hub.Broadcast(dto.EventThinking, dto.ThinkingPayload{Status: "Maintenance at 18:00"})

	assert.Equal(t, []string{dto.EventThinking}, drain(a))
	assert.Equal(t, []string{dto.EventThinking}, drain(b))
}
