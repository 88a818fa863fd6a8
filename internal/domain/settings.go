package domain

// Settings is the process-wide runtime configuration of the bot. It is held
// in memory by the settings service and persisted to the durable store on
// every successful mutation.
type Settings struct {
	SelectedProvider string `json:"selected_provider"` // gemini|openai
	SelectedModel    string `json:"selected_model"`
	GeminiAPIKey     string `json:"gemini_api_key"`
	OpenAIAPIKey     string `json:"openai_api_key"`
	OpenAIAPIBase    string `json:"openai_api_base"`

	AutoReply            bool   `json:"auto_reply"`
	HumanTakeoverMinutes int    `json:"human_takeover_minutes"`
	BusinessName         string `json:"business_name"`
	OrderSiteURL         string `json:"order_site_url"`
}

// SettingsUpdate is a partial settings mutation; nil fields are left as-is.
type SettingsUpdate struct {
	SelectedProvider *string `json:"selected_provider,omitempty"`
	SelectedModel    *string `json:"selected_model,omitempty"`
	GeminiAPIKey     *string `json:"gemini_api_key,omitempty"`
	OpenAIAPIKey     *string `json:"openai_api_key,omitempty"`
	OpenAIAPIBase    *string `json:"openai_api_base,omitempty"`

	AutoReply            *bool   `json:"auto_reply,omitempty"`
	HumanTakeoverMinutes *int    `json:"human_takeover_minutes,omitempty"`
	BusinessName         *string `json:"business_name,omitempty"`
	OrderSiteURL         *string `json:"order_site_url,omitempty"`
}

// Apply merges the non-nil fields of u into s and reports whether anything
// changed.
func (s *Settings) Apply(u SettingsUpdate) bool {
	changed := false
	setStr := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setStr(&s.SelectedProvider, u.SelectedProvider)
	setStr(&s.SelectedModel, u.SelectedModel)
	setStr(&s.GeminiAPIKey, u.GeminiAPIKey)
	setStr(&s.OpenAIAPIKey, u.OpenAIAPIKey)
	setStr(&s.OpenAIAPIBase, u.OpenAIAPIBase)
	setStr(&s.BusinessName, u.BusinessName)
	setStr(&s.OrderSiteURL, u.OrderSiteURL)
	if u.AutoReply != nil && s.AutoReply != *u.AutoReply {
		s.AutoReply = *u.AutoReply
		changed = true
	}
	if u.HumanTakeoverMinutes != nil && *u.HumanTakeoverMinutes >= 1 && s.HumanTakeoverMinutes != *u.HumanTakeoverMinutes {
		s.HumanTakeoverMinutes = *u.HumanTakeoverMinutes
		changed = true
	}
	return changed
}

// Redacted returns a copy with API keys masked, for surfaces that display
// the configuration without editing it.
func (s Settings) Redacted() Settings {
	s.GeminiAPIKey = maskKey(s.GeminiAPIKey)
	s.OpenAIAPIKey = maskKey(s.OpenAIAPIKey)
	return s
}

// ProviderConfigured reports whether a credential exists for the selected
// provider.
func (s Settings) ProviderConfigured() bool {
	switch s.SelectedProvider {
	case "gemini":
		return s.GeminiAPIKey != ""
	case "openai":
		return s.OpenAIAPIKey != ""
	}
	return false
}

func maskKey(k string) string {
	if k == "" {
		return ""
	}
	if len(k) <= 8 {
		return "****"
	}
	return k[:4] + "…" + k[len(k)-4:]
}
