package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPSource reads ranked items from a JSON endpoint answering either
// {"items":[...]} or a bare array.
type HTTPSource struct {
	URL    string
	Limit  int
	Client *http.Client
}

func NewHTTPSource(rawURL string, limit int) *HTTPSource {
	return &HTTPSource{URL: rawURL, Limit: limit, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]Item, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("parse reference url: %w", err)
	}
	if s.Limit > 0 {
		q := u.Query()
		q.Set("limit", strconv.Itoa(s.Limit))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reference endpoint returned %d", resp.StatusCode)
	}

	var wrapped struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Items != nil {
		return wrapped.Items, nil
	}
	var bare []Item
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("decode reference items: %w", err)
	}
	return bare, nil
}
