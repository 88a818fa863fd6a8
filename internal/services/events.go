package services

import (
	"github.com/sushiaki/sora-backend/internal/domain"
)

// Broadcaster pushes state-change events to every connected dashboard
// observer. Implementations must never fail the caller; dead observers are
// pruned silently.
type Broadcaster interface {
	Broadcast(event map[string]any)
}

// NopBroadcaster discards events; useful in tests.
type NopBroadcaster struct{}

// Broadcast drops the event.
func (NopBroadcaster) Broadcast(map[string]any) {}

// Event type names pushed to the dashboard.
const (
	EventMessageReceived     = "message_received"
	EventMessageSent         = "message_sent"
	EventModeChanged         = "mode_changed"
	EventStatusUpdate        = "status_update"
	EventConfigUpdated       = "config_updated"
	EventConversationDeleted = "conversation_deleted"
)

func messageEvent(typ, chatID string, m domain.Message) map[string]any {
	return map[string]any{
		"type":    typ,
		"chat_id": chatID,
		"message": m,
	}
}

func modeChangedEvent(chatID string, mode domain.Mode) map[string]any {
	return map[string]any{
		"type":    EventModeChanged,
		"chat_id": chatID,
		"mode":    mode,
	}
}

func conversationDeletedEvent(chatID string) map[string]any {
	return map[string]any{
		"type":    EventConversationDeleted,
		"chat_id": chatID,
	}
}
