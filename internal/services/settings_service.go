package services

import (
	"context"
	"strconv"
	"sync"

	"gorm.io/gorm"

	"github.com/sushiaki/sora-backend/internal/config"
	"github.com/sushiaki/sora-backend/internal/domain"
	"github.com/sushiaki/sora-backend/internal/repo"
)

// Persisted setting keys. Values are stored as strings; unknown keys found
// in the store are ignored on load so older rows never break startup.
const (
	keySelectedProvider = "selected_provider"
	keySelectedModel    = "selected_model"
	keyGeminiAPIKey     = "gemini_api_key"
	keyOpenAIAPIKey     = "openai_api_key"
	keyOpenAIAPIBase    = "openai_api_base"
	keyAutoReply        = "auto_reply"
	keyTakeoverMinutes  = "human_takeover_minutes"
	keyBusinessName     = "business_name"
	keyOrderSiteURL     = "order_site_url"
)

// SettingsService owns the process-wide runtime settings: defaults from the
// environment, overridden by the durable store at startup, mutated by the
// admin endpoint and persisted immediately after every successful change.
type SettingsService struct {
	DB  *gorm.DB
	Hub Broadcaster

	mu  sync.RWMutex
	cur domain.Settings
}

// NewSettingsService builds the service with environment defaults applied.
func NewSettingsService(db *gorm.DB, hub Broadcaster, def config.BotDefaults) *SettingsService {
	if hub == nil {
		hub = NopBroadcaster{}
	}
	return &SettingsService{
		DB:  db,
		Hub: hub,
		cur: domain.Settings{
			SelectedProvider:     def.Provider,
			SelectedModel:        def.Model,
			GeminiAPIKey:         def.GeminiAPIKey,
			OpenAIAPIKey:         def.OpenAIAPIKey,
			OpenAIAPIBase:        def.OpenAIAPIBase,
			AutoReply:            def.AutoReply,
			HumanTakeoverMinutes: def.TakeoverMinutes,
			BusinessName:         def.BusinessName,
			OrderSiteURL:         def.OrderSiteURL,
		},
	}
}

// Load overlays persisted values on top of the defaults. Call once at
// startup, before the service is shared.
func (s *SettingsService) Load(ctx context.Context) error {
	values, err := repo.LoadSettings(ctx, s.DB)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.applyValue(k, v)
	}
	return nil
}

// Get returns a copy of the current settings.
func (s *SettingsService) Get() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update merges a partial mutation, persists the full settings document and
// broadcasts a configuration-change event. A no-op update is not persisted.
func (s *SettingsService) Update(ctx context.Context, u domain.SettingsUpdate) (domain.Settings, error) {
	s.mu.Lock()
	next := s.cur
	if !next.Apply(u) {
		s.mu.Unlock()
		return next, nil
	}
	if err := repo.SaveSettings(ctx, s.DB, settingsValues(next)); err != nil {
		s.mu.Unlock()
		return s.cur, err
	}
	s.cur = next
	s.mu.Unlock()

	s.Hub.Broadcast(map[string]any{
		"type":   EventConfigUpdated,
		"config": next.Redacted(),
	})
	return next, nil
}

// applyValue sets one field from its persisted string form. Unknown keys
// and unparsable values are skipped.
func (s *SettingsService) applyValue(key, val string) {
	switch key {
	case keySelectedProvider:
		s.cur.SelectedProvider = val
	case keySelectedModel:
		s.cur.SelectedModel = val
	case keyGeminiAPIKey:
		s.cur.GeminiAPIKey = val
	case keyOpenAIAPIKey:
		s.cur.OpenAIAPIKey = val
	case keyOpenAIAPIBase:
		s.cur.OpenAIAPIBase = val
	case keyAutoReply:
		if b, err := strconv.ParseBool(val); err == nil {
			s.cur.AutoReply = b
		}
	case keyTakeoverMinutes:
		if n, err := strconv.Atoi(val); err == nil && n >= 1 {
			s.cur.HumanTakeoverMinutes = n
		}
	case keyBusinessName:
		s.cur.BusinessName = val
	case keyOrderSiteURL:
		s.cur.OrderSiteURL = val
	}
}

// settingsValues flattens settings into the persisted key-value form.
func settingsValues(s domain.Settings) map[string]string {
	return map[string]string{
		keySelectedProvider: s.SelectedProvider,
		keySelectedModel:    s.SelectedModel,
		keyGeminiAPIKey:     s.GeminiAPIKey,
		keyOpenAIAPIKey:     s.OpenAIAPIKey,
		keyOpenAIAPIBase:    s.OpenAIAPIBase,
		keyAutoReply:        strconv.FormatBool(s.AutoReply),
		keyTakeoverMinutes:  strconv.Itoa(s.HumanTakeoverMinutes),
		keyBusinessName:     s.BusinessName,
		keyOrderSiteURL:     s.OrderSiteURL,
	}
}
