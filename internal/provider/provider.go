// Package provider implements the interchangeable text-generation backends.
// Each adapter translates the generic persona + history + message contract
// into one provider's wire format and failure modes; the registry builds the
// adapter for the currently selected provider on every call, so a settings
// change takes effect without a restart.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sushiaki/sora-backend/internal/domain"
)

// Request carries everything a backend needs to produce the next reply.
type Request struct {
	// SystemPrompt is the persona instruction (default or humanized).
	SystemPrompt string
	// History is the bounded prior context, oldest first. Roles are the
	// generic "user"/"assistant"; adapters rename as required.
	History []domain.Turn
	// Message is the new customer message.
	Message string
	// Model is the provider-specific model identifier.
	Model string
}

// Completer is the capability interface implemented by every backend.
type Completer interface {
	// Name returns the provider identifier (e.g. "gemini").
	Name() string
	// Complete returns the generated reply text or a *Error.
	Complete(ctx context.Context, req *Request) (string, error)
}

// Error is returned for any provider-side failure: transport errors,
// non-2xx responses and malformed payloads. Detail carries the provider's
// diagnostic text and is meant for logs and operator surfaces, never for
// customers.
type Error struct {
	Provider string
	Status   int // HTTP status when known, 0 otherwise
	Detail   string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.Status, e.Detail)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Detail)
}

// ConfigError is returned when the selected provider cannot be constructed,
// typically because its credential is absent. It is an administrative
// failure, surfaced to operators and never to customers.
type ConfigError struct {
	Provider string
	Hint     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Hint)
}

// Registry resolves the configured provider into a Completer. Settings are
// read through the getter on every Resolve, keeping provider and credential
// selection hot-reloadable.
type Registry struct {
	settings func() domain.Settings
	timeout  time.Duration
}

// NewRegistry builds a registry reading current settings via settings.
func NewRegistry(settings func() domain.Settings, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Registry{settings: settings, timeout: timeout}
}

// Resolve returns the adapter for the currently selected provider, failing
// fast with a *ConfigError when the provider is unknown or its credential is
// missing.
func (r *Registry) Resolve() (Completer, error) {
	s := r.settings()
	switch s.SelectedProvider {
	case "gemini":
		if s.GeminiAPIKey == "" {
			return nil, &ConfigError{Provider: "gemini", Hint: "set gemini_api_key in the bot settings"}
		}
		return NewGeminiClient(s.GeminiAPIKey, r.timeout), nil

	case "openai":
		if s.OpenAIAPIKey == "" {
			return nil, &ConfigError{Provider: "openai", Hint: "set openai_api_key in the bot settings"}
		}
		return NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIAPIBase, r.timeout), nil

	default:
		return nil, &ConfigError{Provider: s.SelectedProvider, Hint: "unknown provider, supported: gemini, openai"}
	}
}

// Complete resolves the configured provider and runs the request with the
// currently selected model (unless the request pins one).
func (r *Registry) Complete(ctx context.Context, req *Request) (string, error) {
	c, err := r.Resolve()
	if err != nil {
		return "", err
	}
	if req.Model == "" {
		req.Model = r.settings().SelectedModel
	}
	return c.Complete(ctx, req)
}
