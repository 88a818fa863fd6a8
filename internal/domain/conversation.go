// Package domain defines the core types of the order-assistance backend: the
// per-chat Conversation with its transcript, model-facing history and
// responder mode, the runtime Settings, and the WhatsApp channel status.
//
// Conversation values are owned by the store and must only be mutated while
// holding the store's per-chat lock; the methods here do no locking of their
// own.
package domain

import (
	"time"
)

// Mode identifies which responder currently owns a conversation.
type Mode string

const (
	// ModeBot is the initial mode: the default assistant persona replies.
	ModeBot Mode = "bot"
	// ModeHuman means an operator took the conversation over; the generator
	// is suppressed until release or timeout.
	ModeHuman Mode = "human"
	// ModeHumanizedBot is entered when the customer asks for a human: the
	// bot keeps replying, but with the named, more personal persona. Sticky
	// until an operator takes over and releases.
	ModeHumanizedBot Mode = "humanized_bot"
)

// Message sender roles as stored in the transcript.
const (
	SenderCustomer = "customer"
	SenderBot      = "bot"
	SenderOperator = "operator"
)

// Turn roles as sent to providers. Adapters translate RoleAssistant to the
// provider-specific name ("assistant" or "model").
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxHistoryTurns bounds the model-facing history (10 exchanges).
const MaxHistoryTurns = 20

// ObjectionDistrust marks the payment-fraud reassurance as already delivered.
const ObjectionDistrust = "distrust"

// Message is one transcript entry. The transcript is append-only and
// chronological; it is never truncated while the conversation exists.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"` // customer|bot|operator
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Turn is one model-facing history entry.
type Turn struct {
	Role    string `json:"role"` // user|assistant
	Content string `json:"content"`
}

// Conversation is the complete state associated with one chat identifier.
type Conversation struct {
	ChatID            string     `json:"chat_id"`
	Messages          []Message  `json:"messages"`
	Mode              Mode       `json:"mode"`
	LastHumanActivity *time.Time `json:"last_human_activity,omitempty"`
	Welcomed          bool       `json:"welcomed"`
	HandledObjections []string   `json:"handled_objections"`
	CreatedAt         time.Time  `json:"created_at"`

	// History is the bounded provider context, distinct from Messages.
	History []Turn `json:"-"`
}

// NewConversation returns a fresh conversation in bot mode.
func NewConversation(chatID string, now time.Time) *Conversation {
	return &Conversation{
		ChatID:            chatID,
		Messages:          []Message{},
		Mode:              ModeBot,
		HandledObjections: []string{},
		CreatedAt:         now,
	}
}

// Append adds a message to the transcript.
func (c *Conversation) Append(m Message) {
	c.Messages = append(c.Messages, m)
}

// Takeover moves the conversation under operator control and stamps the
// operator activity time.
func (c *Conversation) Takeover(now time.Time) {
	c.Mode = ModeHuman
	c.LastHumanActivity = &now
}

// Release hands the conversation back to the bot. It also clears a previous
// humanized persona: after an explicit operator release the default persona
// replies again.
func (c *Conversation) Release() {
	c.Mode = ModeBot
}

// Humanize switches a bot-controlled conversation to the humanized persona.
// It reports whether the mode changed; human-controlled conversations are
// left untouched.
func (c *Conversation) Humanize() bool {
	if c.Mode != ModeBot {
		return false
	}
	c.Mode = ModeHumanizedBot
	return true
}

// RevertIfExpired reverts human mode back to bot when the operator has been
// idle longer than timeout. It reports whether a reversion happened.
func (c *Conversation) RevertIfExpired(now time.Time, timeout time.Duration) bool {
	if c.Mode != ModeHuman || c.LastHumanActivity == nil {
		return false
	}
	if now.Sub(*c.LastHumanActivity) <= timeout {
		return false
	}
	c.Mode = ModeBot
	return true
}

// HumanActive reports whether an operator currently owns the conversation
// and the takeover has not timed out.
func (c *Conversation) HumanActive(now time.Time, timeout time.Duration) bool {
	if c.Mode != ModeHuman {
		return false
	}
	if c.LastHumanActivity == nil {
		return true
	}
	return now.Sub(*c.LastHumanActivity) <= timeout
}

// MarkWelcomed flips the welcomed flag. It reports whether this call was the
// transition, so the greeting is sent at most once.
func (c *Conversation) MarkWelcomed() bool {
	if c.Welcomed {
		return false
	}
	c.Welcomed = true
	return true
}

// HasObjection reports whether the given objection category was already
// answered with its canned response.
func (c *Conversation) HasObjection(category string) bool {
	for _, o := range c.HandledObjections {
		if o == category {
			return true
		}
	}
	return false
}

// MarkObjection records an objection category as handled. It reports whether
// the category was newly added.
func (c *Conversation) MarkObjection(category string) bool {
	if c.HasObjection(category) {
		return false
	}
	c.HandledObjections = append(c.HandledObjections, category)
	return true
}

// PushTurn appends a model-facing turn and evicts the oldest entries beyond
// MaxHistoryTurns (FIFO).
func (c *Conversation) PushTurn(role, content string) {
	c.History = append(c.History, Turn{Role: role, Content: content})
	if n := len(c.History); n > MaxHistoryTurns {
		c.History = append(c.History[:0], c.History[n-MaxHistoryTurns:]...)
	}
}

// HistorySnapshot returns a copy of the bounded history, safe to hand to a
// provider adapter after the per-chat lock is released.
func (c *Conversation) HistorySnapshot() []Turn {
	out := make([]Turn, len(c.History))
	copy(out, c.History)
	return out
}
