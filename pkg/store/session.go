package store

import (
	"sync"
	"time"
)

// Snapshot is the most recent captured screen image for a session.
type Snapshot struct {
	Image      []byte    `json:"-"`
	MimeType   string    `json:"mime_type"`
	CapturedAt time.Time `json:"captured_at"`
}

type Metadata struct {
	DisplayName string `json:"display_name"`
	ContextHint string `json:"context_hint"`
}

// Session represents one live meeting conversation in memory.
// Fields behind mu are mutated by the owning connection's callbacks only.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	mu                sync.RWMutex
	lastActivity      time.Time
	connected         bool
	upstreamConnected bool
	snapshot          *Snapshot
	metadata          Metadata
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastActivity: now,
		connected:    true,
	}
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Session) MarkDisconnected() {
	s.mu.Lock()
	s.connected = false
	s.upstreamConnected = false
	s.mu.Unlock()
}

func (s *Session) UpstreamConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upstreamConnected
}

func (s *Session) SetUpstreamConnected(v bool) {
	s.mu.Lock()
	s.upstreamConnected = v
	s.mu.Unlock()
}

// SetSnapshot replaces the stored image; older snapshots are discarded.
func (s *Session) SetSnapshot(snap Snapshot) {
	s.mu.Lock()
	s.snapshot = &snap
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return Snapshot{}, false
	}
	return *s.snapshot, true
}

func (s *Session) SetMetadata(m Metadata) {
	s.mu.Lock()
	s.metadata = m
	s.mu.Unlock()
}

func (s *Session) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata
}
