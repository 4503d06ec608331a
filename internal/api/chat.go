package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joebot/vyna/internal/chat"
)

// Chat sends text to the chat backend and returns the agent's replies in
// playback order.
func (c *Client) Chat(ctx context.Context, message string) ([]chat.Reply, error) {
	status, body, err := c.postJSON(ctx, "chat", c.chatURL, map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, fmt.Errorf("chat backend returned %d: %s", status, truncate(string(body), 200))
	}

	var resp struct {
		Messages []chat.Reply `json:"messages"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	return resp.Messages, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
