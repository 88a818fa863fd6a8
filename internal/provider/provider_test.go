package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sushiaki/sora-backend/internal/domain"
)

func settingsFn(s domain.Settings) func() domain.Settings {
	return func() domain.Settings { return s }
}

func TestRegistryResolve(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.Settings
		wantName string
		wantErr  bool
	}{
		{
			name:     "gemini configured",
			settings: domain.Settings{SelectedProvider: "gemini", GeminiAPIKey: "k"},
			wantName: "gemini",
		},
		{
			name:     "openai configured",
			settings: domain.Settings{SelectedProvider: "openai", OpenAIAPIKey: "k"},
			wantName: "openai",
		},
		{
			name:     "gemini missing key",
			settings: domain.Settings{SelectedProvider: "gemini"},
			wantErr:  true,
		},
		{
			name:     "openai missing key",
			settings: domain.Settings{SelectedProvider: "openai"},
			wantErr:  true,
		},
		{
			name:     "unknown provider",
			settings: domain.Settings{SelectedProvider: "llama", GeminiAPIKey: "k"},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(settingsFn(tt.settings), time.Second)
			c, err := r.Resolve()
			if tt.wantErr {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("want *ConfigError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if c.Name() != tt.wantName {
				t.Fatalf("Name = %q, want %q", c.Name(), tt.wantName)
			}
		})
	}
}

func TestRegistryComplete_DefaultsModelFromSettings(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "oi"}}},
		})
	}))
	defer srv.Close()

	reg := NewRegistry(settingsFn(domain.Settings{
		SelectedProvider: "openai",
		SelectedModel:    "gpt-4o-mini",
		OpenAIAPIKey:     "k",
		OpenAIAPIBase:    srv.URL,
	}), time.Second)

	reply, err := reg.Complete(context.Background(), &Request{Message: "oi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "oi" {
		t.Fatalf("reply = %q", reply)
	}
	if gotModel != "gpt-4o-mini" {
		t.Fatalf("model = %q, want settings default", gotModel)
	}
}

func TestOpenAIComplete_WireShape(t *testing.T) {
	var (
		gotAuth string
		gotPath string
		gotReq  openAIRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "resposta"}}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, time.Second)
	reply, err := c.Complete(context.Background(), &Request{
		SystemPrompt: "persona",
		History: []domain.Turn{
			{Role: domain.RoleUser, Content: "u1"},
			{Role: domain.RoleAssistant, Content: "a1"},
		},
		Message: "nova",
		Model:   "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "resposta" {
		t.Fatalf("reply = %q", reply)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}

	want := []openAIMessage{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "u1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "nova"},
	}
	if len(gotReq.Messages) != len(want) {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	for i, m := range want {
		if gotReq.Messages[i] != m {
			t.Fatalf("message[%d] = %+v, want %+v", i, gotReq.Messages[i], m)
		}
	}
}

func TestOpenAIComplete_Errors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"rate limit"}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewOpenAIClient("k", srv.URL, time.Second)
		_, err := c.Complete(context.Background(), &Request{Message: "oi", Model: "m"})
		var pErr *Error
		if !errors.As(err, &pErr) {
			t.Fatalf("want *Error, got %v", err)
		}
		if pErr.Status != http.StatusTooManyRequests {
			t.Fatalf("status = %d", pErr.Status)
		}
		if !strings.Contains(pErr.Detail, "rate limit") {
			t.Fatalf("detail = %q", pErr.Detail)
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		c := NewOpenAIClient("k", srv.URL, time.Second)
		_, err := c.Complete(context.Background(), &Request{Message: "oi", Model: "m"})
		var pErr *Error
		if !errors.As(err, &pErr) {
			t.Fatalf("want *Error, got %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		c := NewOpenAIClient("k", "http://127.0.0.1:1", 200*time.Millisecond)
		_, err := c.Complete(context.Background(), &Request{Message: "oi", Model: "m"})
		var pErr *Error
		if !errors.As(err, &pErr) {
			t.Fatalf("want *Error, got %v", err)
		}
		if pErr.Status != 0 {
			t.Fatalf("transport error must carry no status, got %d", pErr.Status)
		}
	})
}

func TestGeminiComplete_WireShape(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotReq  geminiRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]string{{"text": "resposta"}}}},
			},
		})
	}))
	defer srv.Close()

	c := NewGeminiClient("AIza-test", time.Second)
	c.apiBase = srv.URL

	reply, err := c.Complete(context.Background(), &Request{
		SystemPrompt: "persona",
		History: []domain.Turn{
			{Role: domain.RoleUser, Content: "u1"},
			{Role: domain.RoleAssistant, Content: "a1"},
		},
		Message: "nova",
		Model:   "gemini-2.0-flash",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "resposta" {
		t.Fatalf("reply = %q", reply)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "AIza-test" {
		t.Fatalf("key = %q", gotKey)
	}

	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "persona" {
		t.Fatalf("systemInstruction = %+v", gotReq.SystemInstruction)
	}
	roles := make([]string, 0, len(gotReq.Contents))
	for _, c := range gotReq.Contents {
		roles = append(roles, c.Role)
	}
	want := []string{"user", "model", "user"}
	if len(roles) != len(want) {
		t.Fatalf("contents roles = %v", roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("contents roles = %v, want %v", roles, want)
		}
	}
	if last := gotReq.Contents[len(gotReq.Contents)-1]; last.Parts[0].Text != "nova" {
		t.Fatalf("last content = %+v", last)
	}
}

func TestGeminiComplete_Errors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		c := NewGeminiClient("bad", time.Second)
		c.apiBase = srv.URL
		_, err := c.Complete(context.Background(), &Request{Message: "oi", Model: "m"})
		var pErr *Error
		if !errors.As(err, &pErr) {
			t.Fatalf("want *Error, got %v", err)
		}
		if pErr.Status != http.StatusBadRequest {
			t.Fatalf("status = %d", pErr.Status)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}))
		defer srv.Close()

		c := NewGeminiClient("k", time.Second)
		c.apiBase = srv.URL
		_, err := c.Complete(context.Background(), &Request{Message: "oi", Model: "m"})
		var pErr *Error
		if !errors.As(err, &pErr) {
			t.Fatalf("want *Error, got %v", err)
		}
	})
}
