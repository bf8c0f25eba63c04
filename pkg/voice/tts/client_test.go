package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req synthesizeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello there", req.Text)
		assert.Equal(t, 24000, req.SampleRate)
		_, _ = w.Write([]byte{0x01, 0x02, 0x03, 0x04})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "alloy", 24000)
	c.Timeout = time.Second

	audio, err := c.Synthesize(context.Background(), "hello there")

	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, audio.Data)
	assert.Equal(t, "pcm16", audio.Format)
	assert.Equal(t, int32(2), calls.Load(), "a 5xx is retried once")
}

func TestSynthesize_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "client error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) },
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, "", "", 24000).Synthesize(context.Background(), "x")
			assert.Error(t, err)
		})
	}
}

func TestSynthesize_NotConfigured(t *testing.T) {
	var c *Client
	_, err := c.Synthesize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
