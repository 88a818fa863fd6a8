package services

import (
	"sync"

	"github.com/sushiaki/sora-backend/internal/domain"
)

// StatusService tracks the WhatsApp channel connection state as reported by
// the bridge. State is in-memory only: on restart the bridge re-reports.
type StatusService struct {
	Hub Broadcaster

	mu  sync.RWMutex
	cur domain.ChannelStatus
}

// NewStatusService starts with a disconnected channel.
func NewStatusService(hub Broadcaster) *StatusService {
	if hub == nil {
		hub = NopBroadcaster{}
	}
	return &StatusService{
		Hub: hub,
		cur: domain.ChannelStatus{StatusText: "disconnected"},
	}
}

// Get returns the current channel status.
func (s *StatusService) Get() domain.ChannelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Merge applies a partial status report and, if anything changed, pushes the
// full status to the dashboard.
func (s *StatusService) Merge(u domain.StatusUpdate) domain.ChannelStatus {
	s.mu.Lock()
	changed := s.cur.Merge(u)
	cur := s.cur
	s.mu.Unlock()

	if changed {
		s.Hub.Broadcast(map[string]any{
			"type":   EventStatusUpdate,
			"status": cur,
		})
	}
	return cur
}
