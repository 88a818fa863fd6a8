// Package handlers defines the HTTP-layer error codes shared by all API
// endpoints. Codes are lowercase snake_case and stable: clients branch on
// them programmatically, messages are for humans.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeProviderFailed   = "provider_failed"
	ErrCodeProviderConfig   = "provider_not_configured"
	ErrCodeDeliveryFailed   = "delivery_failed"
	ErrCodeConfigSaveFailed = "config_save_failed"
	ErrCodeUpgradeFailed    = "upgrade_failed"
)
