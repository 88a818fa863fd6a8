package domain

import (
	"strconv"
	"testing"
	"time"
)

func TestNewConversation_Defaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewConversation("chat-1", now)

	if c.ChatID != "chat-1" {
		t.Fatalf("ChatID = %q", c.ChatID)
	}
	if c.Mode != ModeBot {
		t.Fatalf("new conversation mode = %q, want %q", c.Mode, ModeBot)
	}
	if c.Welcomed {
		t.Fatal("new conversation must not be welcomed")
	}
	if c.LastHumanActivity != nil {
		t.Fatal("LastHumanActivity must start nil")
	}
	if !c.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", c.CreatedAt, now)
	}
}

func TestTakeoverReleaseCycle(t *testing.T) {
	now := time.Now()
	c := NewConversation("c", now)

	c.Takeover(now)
	if c.Mode != ModeHuman {
		t.Fatalf("after takeover mode = %q", c.Mode)
	}
	if c.LastHumanActivity == nil || !c.LastHumanActivity.Equal(now) {
		t.Fatalf("LastHumanActivity = %v, want %v", c.LastHumanActivity, now)
	}

	c.Release()
	if c.Mode != ModeBot {
		t.Fatalf("after release mode = %q", c.Mode)
	}
}

func TestHumanize_OnlyFromBotMode(t *testing.T) {
	now := time.Now()

	c := NewConversation("c", now)
	if !c.Humanize() {
		t.Fatal("humanize from bot mode must succeed")
	}
	if c.Mode != ModeHumanizedBot {
		t.Fatalf("mode = %q", c.Mode)
	}

	// Sticky: a second request is a no-op, mode stays humanized.
	if c.Humanize() {
		t.Fatal("humanize must not report a change twice")
	}
	if c.Mode != ModeHumanizedBot {
		t.Fatalf("mode = %q", c.Mode)
	}

	// Never from human mode.
	c.Takeover(now)
	if c.Humanize() {
		t.Fatal("humanize must not fire while an operator is active")
	}
	if c.Mode != ModeHuman {
		t.Fatalf("mode = %q", c.Mode)
	}
}

func TestReleaseClearsHumanizedPersona(t *testing.T) {
	now := time.Now()
	c := NewConversation("c", now)
	c.Humanize()
	c.Takeover(now)
	c.Release()
	if c.Mode != ModeBot {
		t.Fatalf("release must restore bot mode, got %q", c.Mode)
	}
}

func TestRevertIfExpired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	timeout := 60 * time.Minute

	tests := []struct {
		name  string
		setup func(*Conversation)
		at    time.Time
		want  bool
		mode  Mode
	}{
		{
			name:  "bot mode untouched",
			setup: func(c *Conversation) {},
			at:    base.Add(24 * time.Hour),
			want:  false,
			mode:  ModeBot,
		},
		{
			name:  "within timeout",
			setup: func(c *Conversation) { c.Takeover(base) },
			at:    base.Add(timeout),
			want:  false,
			mode:  ModeHuman,
		},
		{
			name:  "expired",
			setup: func(c *Conversation) { c.Takeover(base) },
			at:    base.Add(timeout + time.Second),
			want:  true,
			mode:  ModeBot,
		},
		{
			name:  "humanized never reverts",
			setup: func(c *Conversation) { c.Humanize() },
			at:    base.Add(24 * time.Hour),
			want:  false,
			mode:  ModeHumanizedBot,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConversation("c", base)
			tt.setup(c)
			if got := c.RevertIfExpired(tt.at, timeout); got != tt.want {
				t.Fatalf("RevertIfExpired = %v, want %v", got, tt.want)
			}
			if c.Mode != tt.mode {
				t.Fatalf("mode = %q, want %q", c.Mode, tt.mode)
			}
		})
	}
}

func TestHumanActive(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	timeout := 30 * time.Minute

	c := NewConversation("c", base)
	if c.HumanActive(base, timeout) {
		t.Fatal("bot mode is never human-active")
	}

	c.Takeover(base)
	if !c.HumanActive(base.Add(timeout), timeout) {
		t.Fatal("takeover within timeout must be active")
	}
	if c.HumanActive(base.Add(timeout+time.Second), timeout) {
		t.Fatal("takeover past timeout must be inactive")
	}
}

func TestMarkWelcomed_Once(t *testing.T) {
	c := NewConversation("c", time.Now())
	if !c.MarkWelcomed() {
		t.Fatal("first MarkWelcomed must report the transition")
	}
	if c.MarkWelcomed() {
		t.Fatal("second MarkWelcomed must be a no-op")
	}
}

func TestObjections(t *testing.T) {
	c := NewConversation("c", time.Now())
	if c.HasObjection(ObjectionDistrust) {
		t.Fatal("fresh conversation has no objections")
	}
	if !c.MarkObjection(ObjectionDistrust) {
		t.Fatal("first mark must report newly added")
	}
	if c.MarkObjection(ObjectionDistrust) {
		t.Fatal("second mark must be a no-op")
	}
	if !c.HasObjection(ObjectionDistrust) {
		t.Fatal("objection must be recorded")
	}
}

func TestPushTurn_FIFOEviction(t *testing.T) {
	c := NewConversation("c", time.Now())
	for i := 0; i < MaxHistoryTurns+6; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		c.PushTurn(role, "m"+strconv.Itoa(i))
	}

	if len(c.History) != MaxHistoryTurns {
		t.Fatalf("history len = %d, want %d", len(c.History), MaxHistoryTurns)
	}
	// Oldest entries evicted: the first surviving turn is m6.
	if c.History[0].Content != "m6" {
		t.Fatalf("oldest turn = %q, want m6", c.History[0].Content)
	}
	if last := c.History[len(c.History)-1].Content; last != "m"+strconv.Itoa(MaxHistoryTurns+5) {
		t.Fatalf("newest turn = %q", last)
	}
}

func TestHistorySnapshot_Isolated(t *testing.T) {
	c := NewConversation("c", time.Now())
	c.PushTurn(RoleUser, "hi")
	snap := c.HistorySnapshot()
	snap[0].Content = "mutated"
	if c.History[0].Content != "hi" {
		t.Fatal("snapshot must not alias the live history")
	}
}
