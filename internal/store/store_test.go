package store

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sushiaki/sora-backend/internal/domain"
)

func TestUpdate_CreatesLazily(t *testing.T) {
	s := NewConversationStore()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return fixed }

	conv := s.Update("chat-1", func(c *domain.Conversation) {
		c.Append(domain.Message{ID: "m1", From: domain.SenderCustomer, Text: "oi"})
	})

	if conv.ChatID != "chat-1" {
		t.Fatalf("ChatID = %q", conv.ChatID)
	}
	if !conv.CreatedAt.Equal(fixed) {
		t.Fatalf("CreatedAt = %v", conv.CreatedAt)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Text != "oi" {
		t.Fatalf("messages: %+v", conv.Messages)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}

	// Second update reuses the same conversation.
	conv = s.Update("chat-1", func(c *domain.Conversation) {
		c.Append(domain.Message{ID: "m2", From: domain.SenderBot, Text: "olá"})
	})
	if len(conv.Messages) != 2 {
		t.Fatalf("messages after second update: %d", len(conv.Messages))
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestSnapshot_DeepCopy(t *testing.T) {
	s := NewConversationStore()
	now := time.Now()
	s.Update("c", func(c *domain.Conversation) {
		c.Append(domain.Message{ID: "m1", Text: "original"})
		c.Takeover(now)
	})

	snap, ok := s.Snapshot("c")
	if !ok {
		t.Fatal("snapshot must exist")
	}
	snap.Messages[0].Text = "mutated"
	*snap.LastHumanActivity = snap.LastHumanActivity.Add(time.Hour)

	again, _ := s.Snapshot("c")
	if again.Messages[0].Text != "original" {
		t.Fatal("snapshot must not alias stored messages")
	}
	if !again.LastHumanActivity.Equal(now) {
		t.Fatal("snapshot must not alias the takeover timestamp")
	}

	if _, ok := s.Snapshot("missing"); ok {
		t.Fatal("unknown chat must not snapshot")
	}
}

func TestList_InsertionOrder(t *testing.T) {
	s := NewConversationStore()
	for _, id := range []string{"c3", "c1", "c2"} {
		s.Update(id, func(*domain.Conversation) {})
	}

	got := s.List()
	if len(got) != 3 {
		t.Fatalf("List len = %d", len(got))
	}
	for i, want := range []string{"c3", "c1", "c2"} {
		if got[i].ChatID != want {
			t.Fatalf("List[%d] = %q, want %q", i, got[i].ChatID, want)
		}
	}
}

func TestDeleteAndClear(t *testing.T) {
	s := NewConversationStore()
	s.Update("a", func(*domain.Conversation) {})
	s.Update("b", func(*domain.Conversation) {})

	if !s.Delete("a") {
		t.Fatal("delete existing must report true")
	}
	if s.Delete("a") {
		t.Fatal("delete again must report false")
	}
	if got := s.List(); len(got) != 1 || got[0].ChatID != "b" {
		t.Fatalf("List after delete: %+v", got)
	}

	s.Update("c", func(*domain.Conversation) {})
	if n := s.ClearAll(); n != 2 {
		t.Fatalf("ClearAll = %d, want 2", n)
	}
	if s.Len() != 0 {
		t.Fatalf("Len after clear = %d", s.Len())
	}
}

func TestLockTurn_SerializesPerChat(t *testing.T) {
	s := NewConversationStore()
	const turns = 50

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unlock := s.LockTurn("chat")
			defer unlock()
			// Read-modify-write across two separate Update calls; only the
			// turn lock keeps the pair atomic.
			var n int
			s.Update("chat", func(c *domain.Conversation) { n = len(c.Messages) })
			s.Update("chat", func(c *domain.Conversation) {
				c.Append(domain.Message{ID: strconv.Itoa(n), Text: strconv.Itoa(i)})
			})
		}(i)
	}
	wg.Wait()

	conv, _ := s.Snapshot("chat")
	if len(conv.Messages) != turns {
		t.Fatalf("messages = %d, want %d", len(conv.Messages), turns)
	}
	// Each turn observed a distinct length, proving mutual exclusion.
	seen := make(map[string]bool, turns)
	for _, m := range conv.Messages {
		if seen[m.ID] {
			t.Fatalf("duplicate observed length %q: turns interleaved", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestSnapshotDoesNotBlockOnTurnLock(t *testing.T) {
	s := NewConversationStore()
	s.Update("c", func(*domain.Conversation) {})

	unlock := s.LockTurn("c")
	defer unlock()

	done := make(chan struct{})
	go func() {
		s.Snapshot("c")
		s.List()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot blocked behind an in-flight turn")
	}
}
