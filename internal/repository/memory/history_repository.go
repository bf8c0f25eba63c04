package memory

import (
	"sync"
	"time"

	"meeting-agent-be/pkg/llm"

	"github.com/patrickmn/go-cache"
)

const DefaultHistoryLimit = 20

// HistoryRepository holds the assistant conversation per session, keeping
// only the most recent messages. Idle sessions expire.
type HistoryRepository struct {
	cache *cache.Cache
	limit int
	mu    sync.Mutex
}

func NewHistoryRepository(limit int, idle time.Duration) *HistoryRepository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryRepository{cache: cache.New(idle, 10*time.Minute), limit: limit}
}

// Get returns a copy safe for the caller to extend.
func (r *HistoryRepository) Get(sessionID string) []llm.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]llm.Message(nil), r.load(sessionID)...)
}

func (r *HistoryRepository) Append(sessionID string, msgs ...llm.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := append(append([]llm.Message(nil), r.load(sessionID)...), msgs...)
	if over := len(next) - r.limit; over > 0 {
		next = next[over:]
	}
	r.cache.Set(sessionID, next, cache.DefaultExpiration)
}

func (r *HistoryRepository) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(sessionID)
}

func (r *HistoryRepository) load(sessionID string) []llm.Message {
	if x, found := r.cache.Get(sessionID); found {
		return x.([]llm.Message)
	}
	return nil
}
