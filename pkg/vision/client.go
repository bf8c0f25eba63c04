package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("vision client not configured")

const systemPrompt = "You describe screenshots shared during a meeting. " +
	"Answer the user's question about the image in at most four plain sentences. " +
	"Read out numbers, titles and labels exactly as shown. Say so when something is not legible."

// Client sends an image and a question to an OpenAI-compatible vision model.
type Client struct {
	URL    string // full chat completions URL
	APIKey string
	Model  string
	HTTP   *http.Client
}

func NewClient(url, apiKey, model string) *Client {
	return &Client{URL: url, APIKey: apiKey, Model: model, HTTP: &http.Client{Timeout: 45 * time.Second}}
}

type imageURL struct {
	URL string `json:"url"`
}

type part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze returns a short textual description answering question.
func (c *Client) Analyze(ctx context.Context, image []byte, mimeType, question string) (string, error) {
	if c == nil || c.URL == "" {
		return "", ErrNotConfigured
	}
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	if strings.TrimSpace(question) == "" {
		question = "What is on this screen?"
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	body, err := json.Marshal(request{
		Model: c.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []part{
				{Type: "text", Text: question},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			}},
		},
		MaxTokens: 400,
	})
	if err != nil {
		return "", fmt.Errorf("marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("api-key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision error: status %d, body: %s", resp.StatusCode, string(raw))
	}
	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("vision returned no description")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
