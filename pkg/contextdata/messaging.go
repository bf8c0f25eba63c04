package contextdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	maxMessages    = 5
	maxMessageRune = 140
)

type Message struct {
	Channel string `json:"channel"`
	From    string `json:"from"`
	Text    string `json:"text"`
	Unread  bool   `json:"unread"`
}

type messagingResponse struct {
	Messages []Message `json:"messages"`
}

// MessagingSource summarises recent messages from the team workspace.
type MessagingSource struct {
	url    string
	client *http.Client
}

func NewMessagingSource(url string, client *http.Client) *MessagingSource {
	return &MessagingSource{url: url, client: client}
}

func (s *MessagingSource) Summary(ctx context.Context) (string, error) {
	if s == nil || s.url == "" {
		return "", ErrNotConfigured
	}
	var out messagingResponse
	if err := getJSON(ctx, s.client, s.url, &out); err != nil {
		return "", fmt.Errorf("messaging: %w", err)
	}
	return summarizeMessages(out.Messages), nil
}

func summarizeMessages(msgs []Message) string {
	if len(msgs) == 0 {
		return "Messages: no recent messages."
	}
	unread := 0
	for _, m := range msgs {
		if m.Unread {
			unread++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Messages: %d recent, %d unread.", len(msgs), unread)
	for i, m := range msgs {
		if i == maxMessages {
			break
		}
		text := []rune(strings.TrimSpace(m.Text))
		if len(text) == 0 {
			continue
		}
		if len(text) > maxMessageRune {
			text = append(text[:maxMessageRune], '…')
		}
		if m.Channel != "" {
			fmt.Fprintf(&b, " %s in #%s: %s", m.From, m.Channel, string(text))
		} else {
			fmt.Fprintf(&b, " %s: %s", m.From, string(text))
		}
		if !strings.ContainsAny(string(text[len(text)-1:]), ".!?…") {
			b.WriteString(".")
		}
	}
	return b.String()
}
