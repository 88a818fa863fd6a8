// Package services implements the business logic of the order-assistance
// backend: runtime settings, channel status, and the conversation turn
// pipeline (handover policy, trigger classification, response generation and
// outbound delivery). This file centralizes service-level error values so
// handlers can map them to HTTP results consistently.
package services

import "errors"

var (
	// ErrConversationNotFound indicates the chat identifier is unknown.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyMessage is returned when an inbound or operator message has
	// no text after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrDeliveryFailed wraps a failed outbound delivery to the WhatsApp
	// bridge. Operator-facing callers receive it so they can retry; the
	// message is not recorded as sent.
	ErrDeliveryFailed = errors.New("delivery to channel failed")
)
