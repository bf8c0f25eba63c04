package reference

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"meeting-agent-be/internal/pkg/logger"
)

const module = "REFERENCE"

var ErrEmpty = errors.New("reference cache is empty")

// Item is one record of the externally maintained task list.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Requirement string `json:"requirement"`
	Status      string `json:"status"`
	Rank        int    `json:"rank"`
}

// Snapshot is immutable once published by the cache.
type Snapshot struct {
	Items       []Item
	RefreshedAt time.Time
}

func (s Snapshot) Empty() bool { return len(s.Items) == 0 }

// Describe renders the snapshot as plain lines for a system prompt.
func (s Snapshot) Describe() string {
	if s.Empty() {
		return "No reference records are available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Reference records as of %s:\n", s.RefreshedAt.UTC().Format(time.RFC3339))
	for _, it := range s.Items {
		fmt.Fprintf(&b, "- [%s] %s (status: %s)", it.ID, it.Title, it.Status)
		if it.Requirement != "" {
			fmt.Fprintf(&b, ": %s", it.Requirement)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

type Source interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// Cache keeps the latest snapshot behind an atomic pointer. Readers never
// wait on the refresher once a snapshot exists.
type Cache struct {
	source   Source
	interval time.Duration
	logger   logger.ILogger

	current atomic.Pointer[Snapshot]
	fetchMu sync.Mutex
	now     func() time.Time
}

func NewCache(source Source, interval time.Duration, log logger.ILogger) *Cache {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Cache{source: source, interval: interval, logger: log, now: time.Now}
}

// Refresh fetches a full list and swaps it in. A failed fetch keeps the
// previous snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	items, err := c.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch reference items: %w", err)
	}
	next := make([]Item, len(items))
	copy(next, items)
	sort.SliceStable(next, func(i, j int) bool { return next[i].Rank < next[j].Rank })

	c.current.Store(&Snapshot{Items: next, RefreshedAt: c.now()})
	return nil
}

// Load returns the latest snapshot, fetching synchronously only when the
// cache has never been populated.
func (c *Cache) Load(ctx context.Context) (Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return *s, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return Snapshot{}, err
	}
	if s := c.current.Load(); s != nil {
		return *s, nil
	}
	return Snapshot{}, ErrEmpty
}

// Snapshot is Load with failures logged and reported as an empty snapshot.
func (c *Cache) Snapshot(ctx context.Context) Snapshot {
	s, err := c.Load(ctx)
	if err != nil {
		c.logger.Warn(module, "Reference data unavailable", map[string]interface{}{"error": err.Error()})
	}
	return s
}

// Run loads once and then refreshes on the interval until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn(module, "Initial reference load failed", map[string]interface{}{"error": err.Error()})
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn(module, "Reference refresh failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			c.logger.Debug(module, "Reference refreshed", map[string]interface{}{"items": len(c.current.Load().Items)})
		}
	}
}

// StaticSource serves a fixed list. An empty one stands in when no
// reference backend is configured.
type StaticSource []Item

func (s StaticSource) Fetch(ctx context.Context) ([]Item, error) {
	return append([]Item(nil), s...), nil
}
