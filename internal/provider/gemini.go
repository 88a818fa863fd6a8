package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sushiaki/sora-backend/internal/domain"
)

const geminiDefaultBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient implements Completer against the Gemini REST API. Unlike the
// OpenAI shape, the system prompt travels in a dedicated systemInstruction
// field and assistant turns are renamed to the "model" role.
type GeminiClient struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
}

// NewGeminiClient creates a Gemini client using a static API key.
func NewGeminiClient(apiKey string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		apiBase:    geminiDefaultBase,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns "gemini".
func (c *GeminiClient) Name() string { return "gemini" }

// Complete sends a generateContent request and returns the reply text.
func (c *GeminiClient) Complete(ctx context.Context, req *Request) (string, error) {
	gemReq := c.buildRequest(req)
	jsonBody, err := json.Marshal(gemReq)
	if err != nil {
		return "", &Error{Provider: c.Name(), Detail: fmt.Sprintf("marshal request: %v", err)}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.apiBase, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", &Error{Provider: c.Name(), Detail: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	q := httpReq.URL.Query()
	q.Set("key", c.apiKey)
	httpReq.URL.RawQuery = q.Encode()

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

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &Error{Provider: c.Name(), Detail: fmt.Sprintf("parse response: %v", err)}
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Provider: c.Name(), Detail: "no candidates in response"}
	}
	return apiResp.Candidates[0].Content.Parts[0].Text, nil
}

// buildRequest maps the generic turns onto Gemini contents: "assistant"
// becomes "model" and the persona goes into systemInstruction.
func (c *GeminiClient) buildRequest(req *Request) *geminiRequest {
	out := &geminiRequest{}
	if req.SystemPrompt != "" {
		out.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}
	for _, t := range req.History {
		role := "user"
		if t.Role != domain.RoleUser {
			role = "model"
		}
		out.Contents = append(out.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: t.Content}},
		})
	}
	out.Contents = append(out.Contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: req.Message}},
	})
	return out
}

// Gemini request/response types

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}
