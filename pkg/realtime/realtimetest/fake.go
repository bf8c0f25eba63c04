// Package realtimetest provides an in-memory stand-in for the upstream
// realtime backend.
package realtimetest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

var ErrClosed = errors.New("fake connection closed")

// Conn records every frame written to it and replays frames pushed with Emit.
type Conn struct {
	mu       sync.Mutex
	written  []map[string]interface{}
	incoming chan []byte
	done     chan struct{}
	once     sync.Once
}

func NewConn() *Conn {
	return &Conn{incoming: make(chan []byte, 256), done: make(chan struct{})}
}

func (c *Conn) WriteJSON(v interface{}) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	c.mu.Lock()
	c.written = append(c.written, decoded)
	c.mu.Unlock()
	return nil
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-c.incoming:
		return 1, b, nil
	case <-c.done:
		return 0, nil, ErrClosed
	}
}

func (c *Conn) SetWriteDeadline(time.Time) error { return nil }

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Emit queues a server event for the reader.
func (c *Conn) Emit(event map[string]interface{}) {
	raw, _ := json.Marshal(event)
	c.incoming <- raw
}

// Written returns a copy of all frames written so far.
func (c *Conn) Written() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]interface{}(nil), c.written...)
}

// Count returns how many written frames have the given type.
func (c *Conn) Count(msgType string) int {
	n := 0
	for _, w := range c.Written() {
		if w["type"] == msgType {
			n++
		}
	}
	return n
}

// Dialer hands out a fresh Conn per dial.
type Dialer struct {
	Delay time.Duration
	Err   error

	mu     sync.Mutex
	conns  []*Conn
	header http.Header
}

func (d *Dialer) Dial(ctx context.Context, _ string, header http.Header) (*Conn, error) {
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.header = header
	if d.Err != nil {
		return nil, d.Err
	}
	c := NewConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Last returns the most recent connection, nil before the first dial.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *Dialer) Header() http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.header
}
