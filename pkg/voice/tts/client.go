package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrNotConfigured = errors.New("tts client not configured")

// Audio is synthesized speech in the bridge's wire format.
type Audio struct {
	Data       []byte
	Format     string
	SampleRate int
}

// Client posts text to a synthesis service and returns raw PCM16 audio.
type Client struct {
	URL        string
	AuthToken  string
	Voice      string
	SampleRate int
	Attempts   int
	Timeout    time.Duration
	HTTP       *http.Client
}

func NewClient(url, authToken, voice string, sampleRate int) *Client {
	return &Client{
		URL:        url,
		AuthToken:  authToken,
		Voice:      voice,
		SampleRate: sampleRate,
		Attempts:   2,
		Timeout:    20 * time.Second,
		HTTP:       &http.Client{},
	}
}

type synthesizeRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice,omitempty"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
}

func (c *Client) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if c == nil || c.URL == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: c.Voice, Format: "pcm16", SampleRate: c.SampleRate})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	resp, err := PostWithRetries(ctx, c.HTTP, c.URL, body, c.AuthToken, c.Timeout, c.Attempts)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("tts returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("tts returned no audio")
	}
	return &Audio{Data: data, Format: "pcm16", SampleRate: c.SampleRate}, nil
}

// PostWithRetries posts JSON with exponential backoff on transport errors
// and 5xx answers. Caller must close resp.Body.
func PostWithRetries(ctx context.Context, client *http.Client, url string, body []byte, authToken string, timeout time.Duration, attempts int) (*http.Response, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if client == nil {
		client = &http.Client{}
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(200*(1<<(i-1))) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			cancel()
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if authToken != "" {
			req.Header.Set("Authorization", "Bearer "+authToken)
		}

		resp, err := client.Do(req)
		if err != nil {
			cancel()
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 && i < attempts-1 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			cancel()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return nil, fmt.Errorf("no response after %d attempts: %w", attempts, lastErr)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
