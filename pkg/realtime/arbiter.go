package realtime

import (
	"sync"
	"time"
)

// Arbiter gates input audio while the bridge is speaking so synthesized
// speech never reaches the transcriber.
//
// Speaking becomes true on Begin and returns to false either after the
// settle delay following Settle, or immediately on ForceStop. notify runs
// once per transition, outside the lock.
type Arbiter struct {
	mu       sync.Mutex
	speaking bool
	settle   time.Duration
	timer    *time.Timer
	gen      uint64
	closed   bool
	notify   func(speaking bool)
}

func NewArbiter(settle time.Duration, notify func(speaking bool)) *Arbiter {
	if notify == nil {
		notify = func(bool) {}
	}
	return &Arbiter{settle: settle, notify: notify}
}

func (a *Arbiter) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking
}

func (a *Arbiter) cancelLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Begin marks the start of an utterance. A pending settle is cancelled.
func (a *Arbiter) Begin() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.cancelLocked()
	changed := !a.speaking
	a.speaking = true
	a.mu.Unlock()

	if changed {
		a.notify(true)
	}
}

// Settle schedules the return to listening once trailing audio has played out.
func (a *Arbiter) Settle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || !a.speaking {
		return
	}
	a.cancelLocked()
	gen := a.gen
	a.timer = time.AfterFunc(a.settle, func() { a.expire(gen) })
}

func (a *Arbiter) expire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.closed || !a.speaking {
		a.mu.Unlock()
		return
	}
	a.speaking = false
	a.timer = nil
	a.mu.Unlock()

	a.notify(false)
}

// ForceStop drops back to listening without waiting for the settle delay.
func (a *Arbiter) ForceStop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.cancelLocked()
	changed := a.speaking
	a.speaking = false
	a.mu.Unlock()

	if changed {
		a.notify(false)
	}
}

// Close cancels any pending settle. No notification is sent afterwards.
func (a *Arbiter) Close() {
	a.mu.Lock()
	a.cancelLocked()
	a.closed = true
	a.speaking = false
	a.mu.Unlock()
}
