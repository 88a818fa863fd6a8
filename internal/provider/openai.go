package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sushiaki/sora-backend/internal/domain"
)

// OpenAIClient implements Completer against the OpenAI-compatible chat
// completions API. The system prompt travels as the first message and
// history roles are passed through unchanged ("user"/"assistant").
type OpenAIClient struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
}

// NewOpenAIClient creates an OpenAI-compatible client.
func NewOpenAIClient(apiKey, apiBase string, timeout time.Duration) *OpenAIClient {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns "openai".
func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends a chat completion request and returns the reply text.
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (string, error) {
	body := openAIRequest{
		Model:    req.Model,
		Messages: c.convertMessages(req),
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Provider: c.Name(), Detail: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", &Error{Provider: c.Name(), Detail: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{Provider: c.Name(), Detail: fmt.Sprintf("execute request: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Provider: c.Name(), Detail: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Provider: c.Name(), Status: resp.StatusCode, Detail: string(respBody)}
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &Error{Provider: c.Name(), Detail: fmt.Sprintf("parse response: %v", err)}
	}
	if len(apiResp.Choices) == 0 {
		return "", &Error{Provider: c.Name(), Detail: "no choices in response"}
	}
	return apiResp.Choices[0].Message.Content, nil
}

// convertMessages builds the OpenAI message list: system instruction first,
// then the bounded history, then the new user message.
func (c *OpenAIClient) convertMessages(req *Request) []openAIMessage {
	out := make([]openAIMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		out = append(out, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, t := range req.History {
		role := t.Role
		if role != domain.RoleUser {
			role = "assistant"
		}
		out = append(out, openAIMessage{Role: role, Content: t.Content})
	}
	out = append(out, openAIMessage{Role: "user", Content: req.Message})
	return out
}

// OpenAI API request/response types

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}
