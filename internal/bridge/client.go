// Package bridge implements the HTTP client for the WhatsApp bridge, the
// companion process that owns the actual WhatsApp session. The backend only
// ever pushes outbound text through it; inbound traffic arrives through the
// webhook endpoints.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client sends outbound messages to the bridge process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a bridge client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// SendText delivers one text message to a chat. A non-2xx response or a
// transport failure is returned as an error; the caller decides whether the
// failure is fatal (operator sends) or best effort (bot replies).
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendRequest{ChatID: chatID, Message: text})
	if err != nil {
		return fmt.Errorf("bridge: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bridge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("bridge: send returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
