package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8001" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.APIBasePath != "/api" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.BridgeURL != "http://localhost:3001" {
		t.Fatalf("BridgeURL = %q", cfg.BridgeURL)
	}
	if cfg.ProviderTimeout != 30*time.Second {
		t.Fatalf("ProviderTimeout = %v", cfg.ProviderTimeout)
	}
	if cfg.Bot.Provider != "gemini" || cfg.Bot.Model != "gemini-2.0-flash" {
		t.Fatalf("bot defaults: %+v", cfg.Bot)
	}
	if !cfg.Bot.AutoReply || cfg.Bot.TakeoverMinutes != 60 {
		t.Fatalf("bot defaults: %+v", cfg.Bot)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "warning") // normalized to warn
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("BOT_PROVIDER", "OPENAI")
	t.Setenv("BOT_AUTO_REPLY", "off")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example ,")
	t.Setenv("BRIDGE_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.Bot.Provider != "openai" {
		t.Fatalf("Bot.Provider = %q", cfg.Bot.Provider)
	}
	if cfg.Bot.AutoReply {
		t.Fatal("BOT_AUTO_REPLY=off must disable")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Fatalf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.BridgeTimeout != 3*time.Second {
		t.Fatalf("BridgeTimeout = %v", cfg.BridgeTimeout)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad provider", "BOT_PROVIDER", "llama"},
		{"zero takeover minutes", "BOT_TAKEOVER_MINUTES", "0"},
		{"negative rate", "RATE_RPS", "-1"},
		{"zero burst", "RATE_BURST", "0"},
		{"sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s must fail validation", tt.key, tt.val)
			}
		})
	}
}

func TestNormalizeBasePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"api", "/api"},
		{"/api/", "/api"},
		{"/api/v1", "/api/v1"},
	}
	for _, tt := range tests {
		if got := normalizeBasePath(tt.in); got != tt.want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
