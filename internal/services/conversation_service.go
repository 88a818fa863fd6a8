// Package services – ConversationService
//
// This file implements ConversationService, the component that owns the
// inbound-message turn pipeline: record the customer message, apply the
// handover policy (human takeover, timeout reversion, humanized persona),
// classify cheap keyword triggers, generate a reply through the configured
// provider, and hand the reply to the outbound channel. It also exposes the
// operator surface: takeover, release, send-as-operator, listing and
// deletion.
//
// Observability: public methods are OpenTelemetry-instrumented; provider
// failures are logged with provider and model context and replaced by a
// fixed fallback reply, never surfaced to the customer.

package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sushiaki/sora-backend/internal/classify"
	"github.com/sushiaki/sora-backend/internal/domain"
	"github.com/sushiaki/sora-backend/internal/provider"
	"github.com/sushiaki/sora-backend/internal/store"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Deliverer sends outbound text to the WhatsApp bridge.
type Deliverer interface {
	SendText(ctx context.Context, chatID, text string) error
}

// Reply skip reasons reported by HandleInbound when no reply is generated.
const (
	SkipHumanActive       = "human_active"
	SkipAutoReplyDisabled = "auto_reply_disabled"
)

// ConversationService coordinates conversation state, response generation and
// outbound delivery.
type ConversationService struct {
	Store    *store.ConversationStore
	Settings *SettingsService
	Registry *provider.Registry
	Hub      Broadcaster
	Bridge   Deliverer

	// Now is the clock for timestamps and takeover expiry; replaceable in
	// tests.
	Now func() time.Time
}

// NewConversationService wires the turn pipeline.
func NewConversationService(st *store.ConversationStore, settings *SettingsService, reg *provider.Registry, hub Broadcaster, bridge Deliverer) *ConversationService {
	if hub == nil {
		hub = NopBroadcaster{}
	}
	return &ConversationService{
		Store:    st,
		Settings: settings,
		Registry: reg,
		Hub:      hub,
		Bridge:   bridge,
		Now:      time.Now,
	}
}

// InboundResult reports the outcome of one inbound turn.
type InboundResult struct {
	// Reply is the generated response text, empty when none was produced.
	Reply string `json:"reply,omitempty"`
	// Skipped carries the reason when no reply was generated.
	Skipped string `json:"skipped,omitempty"`
	// Mode is the conversation mode after the turn.
	Mode domain.Mode `json:"mode"`
}

// HandleInbound processes one customer message end to end. Turns for the same
// chat run strictly one at a time; turns for different chats run freely in
// parallel.
func (s *ConversationService) HandleInbound(ctx context.Context, chatID, text string) (*InboundResult, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "HandleInbound",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if chatID == "" || text == "" {
		return nil, ErrEmptyMessage
	}

	unlock := s.Store.LockTurn(chatID)
	defer unlock()

	now := s.Now()
	timeout := s.takeoverTimeout()

	// Record the inbound message and evaluate the gates in one locked pass.
	var (
		reverted    bool
		humanActive bool
	)
	conv := s.Store.Update(chatID, func(c *domain.Conversation) {
		c.Append(domain.Message{
			ID:        uuid.NewString(),
			From:      domain.SenderCustomer,
			Text:      text,
			Timestamp: now,
		})
		reverted = c.RevertIfExpired(now, timeout)
		humanActive = c.HumanActive(now, timeout)
	})
	s.Hub.Broadcast(messageEvent(EventMessageReceived, chatID, lastMessage(conv)))
	if reverted {
		s.Hub.Broadcast(modeChangedEvent(chatID, conv.Mode))
	}

	if humanActive {
		return &InboundResult{Skipped: SkipHumanActive, Mode: conv.Mode}, nil
	}

	settings := s.Settings.Get()
	if !settings.AutoReply {
		return &InboundResult{Skipped: SkipAutoReplyDisabled, Mode: conv.Mode}, nil
	}

	reply, mode := s.generate(ctx, chatID, text, settings)

	sent := s.Store.Update(chatID, func(c *domain.Conversation) {
		c.Append(domain.Message{
			ID:        uuid.NewString(),
			From:      domain.SenderBot,
			Text:      reply,
			Timestamp: s.Now(),
		})
	})
	s.deliver(ctx, chatID, reply)
	s.Hub.Broadcast(messageEvent(EventMessageSent, chatID, lastMessage(sent)))

	return &InboundResult{Reply: reply, Mode: mode}, nil
}

// generate produces the reply text for one customer message. Precedence:
// explicit human request, first-contact welcome, first distrust objection,
// then the provider with the persona of the current mode. Only provider
// exchanges enter the model-facing history; canned responses do not.
func (s *ConversationService) generate(ctx context.Context, chatID, text string, settings domain.Settings) (string, domain.Mode) {
	if classify.IsHumanRequestSignal(text) {
		return s.generateHumanized(ctx, chatID, text, settings)
	}

	var (
		welcome  bool
		distrust bool
		mode     domain.Mode
		history  []domain.Turn
	)
	s.Store.Update(chatID, func(c *domain.Conversation) {
		welcome = c.MarkWelcomed()
		if !welcome && classify.IsDistrustSignal(text) {
			distrust = c.MarkObjection(domain.ObjectionDistrust)
		}
		mode = c.Mode
		history = c.HistorySnapshot()
	})

	if welcome {
		return welcomeMessage(settings), mode
	}
	if distrust {
		return distrustReassurance(settings), mode
	}

	persona := defaultPersona(settings)
	if mode == domain.ModeHumanizedBot {
		persona = humanizedPersona(settings)
	}
	return s.complete(ctx, chatID, persona, history, text, settings), mode
}

// generateHumanized handles an explicit request for a person: switch to the
// humanized persona (sticky) and answer with it immediately. The welcome
// flag is consumed so the greeting is never sent after this point.
func (s *ConversationService) generateHumanized(ctx context.Context, chatID, text string, settings domain.Settings) (string, domain.Mode) {
	var (
		switched bool
		mode     domain.Mode
		history  []domain.Turn
	)
	s.Store.Update(chatID, func(c *domain.Conversation) {
		switched = c.Humanize()
		c.MarkWelcomed()
		mode = c.Mode
		history = c.HistorySnapshot()
	})
	if switched {
		s.Hub.Broadcast(modeChangedEvent(chatID, mode))
	}
	return s.complete(ctx, chatID, humanizedPersona(settings), history, text, settings), mode
}

// complete calls the configured provider and appends the exchange to the
// model-facing history on success. Any failure yields the fixed fallback.
func (s *ConversationService) complete(ctx context.Context, chatID, persona string, history []domain.Turn, text string, settings domain.Settings) string {
	reply, err := s.Registry.Complete(ctx, &provider.Request{
		SystemPrompt: persona,
		History:      history,
		Message:      text,
	})
	if err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Str("chat_id", chatID).
			Str("provider", settings.SelectedProvider).
			Str("model", settings.SelectedModel).
			Msg("response generation failed; sending fallback")
		return fallbackReply(settings)
	}

	s.Store.Update(chatID, func(c *domain.Conversation) {
		c.PushTurn(domain.RoleUser, text)
		c.PushTurn(domain.RoleAssistant, reply)
	})
	return reply
}

// Takeover puts an operator in control of the conversation.
func (s *ConversationService) Takeover(ctx context.Context, chatID string) (domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	_, span := tr.Start(ctx, "Takeover",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	if _, ok := s.Store.Snapshot(chatID); !ok {
		return domain.Conversation{}, ErrConversationNotFound
	}
	now := s.Now()
	conv := s.Store.Update(chatID, func(c *domain.Conversation) {
		c.Takeover(now)
	})
	s.Hub.Broadcast(modeChangedEvent(chatID, conv.Mode))
	return conv, nil
}

// Release hands the conversation back to the bot with the default persona.
func (s *ConversationService) Release(ctx context.Context, chatID string) (domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	_, span := tr.Start(ctx, "Release",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	if _, ok := s.Store.Snapshot(chatID); !ok {
		return domain.Conversation{}, ErrConversationNotFound
	}
	conv := s.Store.Update(chatID, func(c *domain.Conversation) {
		c.Release()
	})
	s.Hub.Broadcast(modeChangedEvent(chatID, conv.Mode))
	return conv, nil
}

// SendOperatorMessage delivers an operator-authored message to the customer.
// Delivery comes first: a bridge failure returns ErrDeliveryFailed and leaves
// the transcript untouched. A successful send also counts as a takeover, so
// the bot stays quiet while the operator is active.
func (s *ConversationService) SendOperatorMessage(ctx context.Context, chatID, text string) (domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "SendOperatorMessage",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if chatID == "" || text == "" {
		return domain.Conversation{}, ErrEmptyMessage
	}

	if s.Bridge != nil {
		if err := s.Bridge.SendText(ctx, chatID, text); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("chat_id", chatID).Msg("bridge delivery failed")
			return domain.Conversation{}, ErrDeliveryFailed
		}
	}

	now := s.Now()
	conv := s.Store.Update(chatID, func(c *domain.Conversation) {
		c.Append(domain.Message{
			ID:        uuid.NewString(),
			From:      domain.SenderOperator,
			Text:      text,
			Timestamp: now,
		})
		c.Takeover(now)
	})
	s.Hub.Broadcast(messageEvent(EventMessageSent, chatID, lastMessage(conv)))
	s.Hub.Broadcast(modeChangedEvent(chatID, conv.Mode))
	return conv, nil
}

// List returns all conversations, oldest first.
func (s *ConversationService) List() []domain.Conversation {
	return s.Store.List()
}

// Get returns one conversation by chat identifier.
func (s *ConversationService) Get(chatID string) (domain.Conversation, error) {
	conv, ok := s.Store.Snapshot(chatID)
	if !ok {
		return domain.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// Delete removes one conversation.
func (s *ConversationService) Delete(chatID string) error {
	if !s.Store.Delete(chatID) {
		return ErrConversationNotFound
	}
	s.Hub.Broadcast(conversationDeletedEvent(chatID))
	return nil
}

// ClearAll removes every conversation and returns how many were dropped.
func (s *ConversationService) ClearAll() int {
	n := s.Store.ClearAll()
	s.Hub.Broadcast(map[string]any{"type": EventConversationDeleted, "chat_id": "*"})
	return n
}

// TestProvider runs a minimal probe against the configured provider and
// returns its raw reply. History and transcripts are untouched.
func (s *ConversationService) TestProvider(ctx context.Context) (string, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "TestProvider")
	defer span.End()

	settings := s.Settings.Get()
	return s.Registry.Complete(ctx, &provider.Request{
		SystemPrompt: defaultPersona(settings),
		Message:      "Diga apenas: OK",
	})
}

func (s *ConversationService) takeoverTimeout() time.Duration {
	m := s.Settings.Get().HumanTakeoverMinutes
	if m < 1 {
		m = 60
	}
	return time.Duration(m) * time.Minute
}

// deliver pushes a bot reply out through the bridge. Failure is logged only;
// the reply stays in the transcript and the dashboard still sees it.
func (s *ConversationService) deliver(ctx context.Context, chatID, text string) {
	if s.Bridge == nil {
		return
	}
	if err := s.Bridge.SendText(ctx, chatID, text); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("chat_id", chatID).Msg("bridge delivery failed for bot reply")
	}
}

func lastMessage(c domain.Conversation) domain.Message {
	if len(c.Messages) == 0 {
		return domain.Message{}
	}
	return c.Messages[len(c.Messages)-1]
}
