package reference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"meeting-agent-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceFunc func(ctx context.Context) ([]Item, error)

func (f sourceFunc) Fetch(ctx context.Context) ([]Item, error) { return f(ctx) }

func generation(n, size int) []Item {
	items := make([]Item, size)
	for i := range items {
		items[i] = Item{ID: fmt.Sprintf("%d-%d", n, i), Title: fmt.Sprintf("gen %d", n), Rank: size - i}
	}
	return items
}

func TestCache_LoadFetchesOnlyWhenEmpty(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(sourceFunc(func(ctx context.Context) ([]Item, error) {
		calls.Add(1)
		return []Item{{ID: "b", Rank: 2}, {ID: "a", Rank: 1}}, nil
	}), 0, logger.NewNopLogger())

	s, err := c.Load(context.Background())
	require.NoError(t, err)
	_, err = c.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "a", s.Items[0].ID, "items are ordered by rank")
}

func TestCache_FailedRefreshKeepsSnapshot(t *testing.T) {
	fail := false
	c := NewCache(sourceFunc(func(ctx context.Context) ([]Item, error) {
		if fail {
			return nil, errors.New("upstream down")
		}
		return generation(1, 3), nil
	}), 0, logger.NewNopLogger())

	require.NoError(t, c.Refresh(context.Background()))
	fail = true
	assert.Error(t, c.Refresh(context.Background()))

	s, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Items, 3)
}

func TestCache_EmptyAndUnavailable(t *testing.T) {
	c := NewCache(sourceFunc(func(ctx context.Context) ([]Item, error) {
		return nil, errors.New("no route")
	}), 0, logger.NewNopLogger())

	_, err := c.Load(context.Background())
	assert.Error(t, err)
	assert.True(t, c.Snapshot(context.Background()).Empty())
	assert.Equal(t, "No reference records are available.", c.Snapshot(context.Background()).Describe())
}

func TestCache_ReadersSeeWholeSnapshots(t *testing.T) {
	const size = 50
	var gen atomic.Int32
	c := NewCache(sourceFunc(func(ctx context.Context) ([]Item, error) {
		return generation(int(gen.Add(1)), size), nil
	}), 0, logger.NewNopLogger())
	require.NoError(t, c.Refresh(context.Background()))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = c.Refresh(context.Background())
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := c.Snapshot(context.Background())
				if !assert.Len(t, s.Items, size) {
					return
				}
				first := s.Items[0].Title
				for _, it := range s.Items {
					if !assert.Equal(t, first, it.Title, "snapshot mixes generations") {
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestHTTPSource(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "wrapped", body: `{"items":[{"id":"T-1","title":"Login","status":"open","rank":1}]}`, want: 1},
		{name: "bare array", body: `[{"id":"T-1"},{"id":"T-2"}]`, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "25", r.URL.Query().Get("limit"))
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			items, err := NewHTTPSource(srv.URL, 25).Fetch(context.Background())
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
		})
	}
}
